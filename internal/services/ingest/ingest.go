// Package ingest turns catalog CSV exports into stored game records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/features"
	"game-recommendation-engine/internal/utils"
)

// Store is the write side of the game catalog.
type Store interface {
	ReplaceAll(ctx context.Context, games []*models.GameRecord) (*models.BulkUpsertResult, error)
	BulkUpsert(ctx context.Context, games []*models.GameRecord) (*models.BulkUpsertResult, error)
}

// Options controls a single ingestion run.
type Options struct {
	// Source names where the content came from, e.g. an S3 key or file path.
	Source string
	// Append upserts into the existing catalog instead of replacing it.
	Append bool
}

// Service parses, derives and stores catalog batches.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a new ingestion service.
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		logger: utils.Component("ingest"),
	}
}

// Ingest parses content as a catalog CSV, derives a record for every usable
// row and writes the batch to the store. Row-level problems are reported in
// the result; an error is returned only when nothing could be stored.
func (s *Service) Ingest(ctx context.Context, content []byte, opts Options) (*models.IngestResult, error) {
	startTime := time.Now()

	result := &models.IngestResult{
		BatchID:  uuid.New().String(),
		Source:   opts.Source,
		Failures: []models.RowFailure{},
	}

	logger := s.logger.With(
		utils.String("batch_id", result.BatchID),
		utils.String("source", opts.Source),
	)
	logger.Info("Starting catalog ingestion", utils.Bool("append", opts.Append))

	parser := utils.NewCatalogCSVParser()
	rows, parseErrors := parser.ParseGames(string(content))

	for _, perr := range parseErrors {
		var lineErr *utils.LineError
		if errors.As(perr, &lineErr) {
			result.Failures = append(result.Failures, models.RowFailure{
				Index:  lineErr.Line,
				Reason: fmt.Sprintf("line %d: %s", lineErr.Line, features.RowFailureReason(lineErr.Err)),
			})
			continue
		}
		if errors.Is(perr, utils.ErrNoDataRows) {
			continue
		}
		result.ProcessingTime = time.Since(startTime)
		logger.Error("Catalog CSV rejected", utils.Error(perr))
		return result, fmt.Errorf("failed to parse catalog: %w", perr)
	}

	result.ParsedRows = len(rows)
	result.TotalRows = len(rows) + len(result.Failures)

	records, buildFailures := features.BuildCatalog(rows)
	result.Failures = append(result.Failures, buildFailures...)

	if len(records) == 0 {
		result.Skipped = len(result.Failures)
		result.ProcessingTime = time.Since(startTime)
		logger.Warn("No usable rows in catalog", utils.Int("failures", result.Skipped))
		return result, utils.ErrNoDataRows
	}

	write := s.store.ReplaceAll
	if opts.Append {
		write = s.store.BulkUpsert
	}

	stored, err := write(ctx, records)
	if err != nil {
		result.Skipped = len(result.Failures) + len(records)
		result.ProcessingTime = time.Since(startTime)
		logger.Error("Failed to store catalog", utils.Error(err))
		return result, fmt.Errorf("%w: %w", models.ErrCatalogUnavailable, err)
	}

	for _, e := range stored.Errors {
		result.Failures = append(result.Failures, models.RowFailure{Index: -1, Reason: e})
	}
	result.Loaded = stored.InsertedCount
	result.Skipped = len(result.Failures)
	result.ProcessingTime = time.Since(startTime)

	logger.Info("Catalog ingestion complete",
		utils.Int("total_rows", result.TotalRows),
		utils.Int("loaded", result.Loaded),
		utils.Int("skipped", result.Skipped),
		utils.Duration("processing_time", result.ProcessingTime),
	)

	return result, nil
}
