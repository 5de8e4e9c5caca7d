// Package main provides the HTTP API server for the game recommendation
// engine. It serves preference and similarity recommendations over the
// catalog held in PostgreSQL, plus catalog browsing and CSV uploads.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"game-recommendation-engine/internal/config"
	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/database"
	"game-recommendation-engine/internal/services/recommender"
	s3service "game-recommendation-engine/internal/services/s3"
	"game-recommendation-engine/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()
	logger := utils.Component("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store CatalogStore = unavailableStore{}
	db, err := database.New(cfg)
	if err != nil {
		logger.Warn("Could not connect to database, serving in degraded mode", utils.Error(err))
	} else {
		defer db.Close()
		store = database.NewGameRepository(db)
	}

	var presigner URLPresigner
	if os.Getenv("S3_BUCKET") != "" {
		s3Svc, err := s3service.NewService(ctx, cfg.S3Bucket, cfg.AWSRegion)
		if err != nil {
			logger.Warn("S3 uploads disabled", utils.Error(err))
		} else {
			presigner = s3Svc
		}
	}

	server := NewServer(store, recommender.Options{
		MaxFeatures:  cfg.VocabularySize,
		ScoreWorkers: cfg.ScoreWorkers,
	}, presigner)

	warmCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	server.Warm(warmCtx)
	cancel()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%s", cfg.Port),
		Handler:           c.Handler(server.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", utils.Error(err))
		}
	}()

	logger.Info("Game Recommendation API listening",
		utils.String("addr", httpServer.Addr),
		utils.String("stage", cfg.Stage),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", utils.Error(err))
	}
	logger.Info("Server stopped")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// unavailableStore stands in for the database when it cannot be reached at
// startup. Every call fails with models.ErrCatalogUnavailable.
type unavailableStore struct{}

func (unavailableStore) HealthCheck(context.Context) error {
	return models.ErrCatalogUnavailable
}

func (unavailableStore) GetAll(context.Context) ([]*models.GameRecord, error) {
	return nil, models.ErrCatalogUnavailable
}

func (unavailableStore) ReplaceAll(context.Context, []*models.GameRecord) (*models.BulkUpsertResult, error) {
	return nil, models.ErrCatalogUnavailable
}

func (unavailableStore) BulkUpsert(context.Context, []*models.GameRecord) (*models.BulkUpsertResult, error) {
	return nil, models.ErrCatalogUnavailable
}

func (unavailableStore) Stats(context.Context, int) (*models.CatalogStats, error) {
	return nil, models.ErrCatalogUnavailable
}

func (unavailableStore) DistinctTags(context.Context) ([]string, error) {
	return nil, models.ErrCatalogUnavailable
}

func (unavailableStore) DistinctCategories(context.Context) ([]string, error) {
	return nil, models.ErrCatalogUnavailable
}

func (unavailableStore) List(context.Context, models.ListOptions) ([]*models.GameRecord, int, error) {
	return nil, 0, models.ErrCatalogUnavailable
}

func (unavailableStore) Search(context.Context, string, int) ([]*models.GameRecord, error) {
	return nil, models.ErrCatalogUnavailable
}

func (unavailableStore) Filter(context.Context, models.GameFilter) ([]*models.GameRecord, error) {
	return nil, models.ErrCatalogUnavailable
}
