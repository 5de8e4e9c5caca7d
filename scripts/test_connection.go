//go:build ignore
// +build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"game-recommendation-engine/internal/config"
	"game-recommendation-engine/internal/services/database"
	s3service "game-recommendation-engine/internal/services/s3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("🔍 Checking game catalog dependencies...")
	fmt.Println()

	fmt.Println("1️⃣  Settings:")
	show("AWS_REGION", cfg.AWSRegion)
	show("S3_BUCKET", cfg.S3Bucket)
	show("SES_SENDER_EMAIL", cfg.SESSenderEmail)
	show("REPORT_RECIPIENT_EMAIL", cfg.ReportRecipientEmail)
	show("RELOAD_WEBHOOK_URL", cfg.ReloadWebhookURL)
	show("DATABASE", maskDSN(cfg.DatabaseURL()))
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	fmt.Println("2️⃣  Catalog store:")
	checkCatalog(ctx, cfg)
	fmt.Println()

	fmt.Println("3️⃣  Upload bucket:")
	checkPresign(ctx, cfg)
	fmt.Println()

	fmt.Println("✅ Checks complete")
}

func show(name, value string) {
	if value == "" {
		fmt.Printf("   ❌ %s: NOT SET\n", name)
		return
	}
	fmt.Printf("   ✅ %s: %s\n", name, value)
}

func maskDSN(dsn string) string {
	if len(dsn) <= 16 {
		return dsn
	}
	return dsn[:11] + "..." + dsn[len(dsn)-12:]
}

func checkCatalog(ctx context.Context, cfg *config.Config) {
	db, err := database.New(cfg)
	if err != nil {
		fmt.Printf("   ❌ Connection failed: %v\n", err)
		return
	}
	defer db.Close()
	fmt.Println("   ✅ Connected")

	repo := database.NewGameRepository(db)
	stats, err := repo.Stats(ctx, 5)
	if err != nil {
		fmt.Printf("   ⚠️  Table 'games' not readable, run scripts/init_db.go: %v\n", err)
		return
	}

	fmt.Printf("   📊 Games: %d (free: %d)\n", stats.TotalGames, stats.FreeGames)
	fmt.Printf("   💲 Price range: $%.2f - $%.2f (avg $%.2f)\n", stats.MinPrice, stats.MaxPrice, stats.AvgPrice)
	for _, tc := range stats.TopTags {
		fmt.Printf("      #%s x%d\n", tc.Tag, tc.Count)
	}
}

func checkPresign(ctx context.Context, cfg *config.Config) {
	svc, err := s3service.NewService(ctx, cfg.S3Bucket, cfg.AWSRegion)
	if err != nil {
		fmt.Printf("   ❌ S3 client failed: %v\n", err)
		return
	}

	key := s3service.UploadKey("connection-check.csv", time.Now())
	result, err := svc.GeneratePresignedUploadURL(ctx, key, "text/csv", 5)
	if err != nil {
		fmt.Printf("   ❌ Presign failed: %v\n", err)
		return
	}
	fmt.Printf("   ✅ Presigned upload for %s (expires %s)\n", result.Key, result.ExpiresAt.Format(time.RFC3339))
}
