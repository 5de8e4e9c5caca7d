// Package main loads a local catalog CSV export into the game store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"game-recommendation-engine/internal/config"
	"game-recommendation-engine/internal/services/database"
	"game-recommendation-engine/internal/services/ingest"
	"game-recommendation-engine/internal/utils"
)

func main() {
	file := flag.String("file", "", "path to the catalog CSV export")
	appendMode := flag.Bool("append", false, "upsert into the existing catalog instead of replacing it")
	dryRun := flag.Bool("dry-run", false, "validate the CSV structure without touching the database")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall ingestion timeout")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()
	logger := utils.Component("ingest-cli")

	content, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal("Failed to read catalog file", utils.String("file", *file), utils.Error(err))
	}

	if *dryRun {
		result, err := utils.ValidateCSVStructure(string(content))
		if err != nil {
			logger.Fatal("Failed to validate catalog", utils.Error(err))
		}
		fmt.Printf("valid=%t rows=%d missing=%v\n", result.Valid, result.RowCount, result.MissingColumns)
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
		if !result.Valid {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", utils.Error(err))
	}
	defer db.Close()

	svc := ingest.NewService(database.NewGameRepository(db))

	result, err := svc.Ingest(ctx, content, ingest.Options{Source: *file, Append: *appendMode})
	if result != nil {
		fmt.Printf("batch:     %s\n", result.BatchID)
		fmt.Printf("rows:      %d\n", result.TotalRows)
		fmt.Printf("loaded:    %d\n", result.Loaded)
		fmt.Printf("skipped:   %d\n", result.Skipped)
		fmt.Printf("elapsed:   %s\n", result.ProcessingTime)
		for i, f := range result.Failures {
			if i == 10 {
				fmt.Printf("  ... and %d more\n", len(result.Failures)-10)
				break
			}
			if f.Title != "" {
				fmt.Printf("  - %s: %s\n", f.Title, f.Reason)
			} else {
				fmt.Printf("  - %s\n", f.Reason)
			}
		}
	}
	if err != nil {
		logger.Error("Catalog ingestion failed", utils.Error(err))
		os.Exit(1)
	}
}
