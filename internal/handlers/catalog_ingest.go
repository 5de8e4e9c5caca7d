package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-lambda-go/events"

	appConfig "game-recommendation-engine/internal/config"
	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/database"
	"game-recommendation-engine/internal/services/ingest"
	s3service "game-recommendation-engine/internal/services/s3"
	"game-recommendation-engine/internal/services/ses"
	"game-recommendation-engine/internal/utils"
)

const maxResponseErrors = 10

// ObjectStore reads and archives uploaded catalog files and stores their
// ingest reports.
type ObjectStore interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	UploadFile(ctx context.Context, key string, data []byte, contentType string) error
	MoveFile(ctx context.Context, sourceKey, destKey string) error
}

// Ingester loads catalog CSV content into the game store.
type Ingester interface {
	Ingest(ctx context.Context, content []byte, opts ingest.Options) (*models.IngestResult, error)
}

// ReportSender emails ingestion reports.
type ReportSender interface {
	SendIngestReport(ctx context.Context, params ses.IngestReportParams) (*ses.SendEmailResult, error)
}

// CatalogIngestHandler handles S3 upload events for catalog CSV files.
type CatalogIngestHandler struct {
	objects   ObjectStore
	ingester  Ingester
	reporter  ReportSender
	recipient string
	reload    *WebhookClient
	close     func()
}

// CatalogIngestDeps are the collaborators of a CatalogIngestHandler.
// Reporter and Reload are optional.
type CatalogIngestDeps struct {
	Objects   ObjectStore
	Ingester  Ingester
	Reporter  ReportSender
	Recipient string
	Reload    *WebhookClient
}

// NewCatalogIngestHandler creates a catalog ingest handler from the
// environment configuration.
func NewCatalogIngestHandler(ctx context.Context) (*CatalogIngestHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}

	objects, err := s3service.NewService(ctx, cfg.S3Bucket, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	deps := CatalogIngestDeps{
		Objects:   objects,
		Ingester:  ingest.NewService(database.NewGameRepository(db)),
		Recipient: cfg.ReportRecipientEmail,
		Reload:    NewWebhookClient(cfg.ReloadWebhookURL),
	}

	if cfg.SESSenderEmail != "" && cfg.ReportRecipientEmail != "" {
		reporter, err := ses.NewService(ctx, cfg.SESSenderEmail, cfg.AWSRegion)
		if err != nil {
			db.Close()
			return nil, err
		}
		deps.Reporter = reporter
	}

	h := NewCatalogIngestHandlerWith(deps)
	h.close = db.Close
	return h, nil
}

// NewCatalogIngestHandlerWith creates a handler over explicit collaborators.
func NewCatalogIngestHandlerWith(deps CatalogIngestDeps) *CatalogIngestHandler {
	return &CatalogIngestHandler{
		objects:   deps.Objects,
		ingester:  deps.Ingester,
		reporter:  deps.Reporter,
		recipient: deps.Recipient,
		reload:    deps.Reload,
	}
}

// CatalogIngestResult is the result of processing one uploaded catalog.
type CatalogIngestResult struct {
	Message string   `json:"message"`
	Key     string   `json:"key,omitempty"`
	BatchID string   `json:"batch_id,omitempty"`
	Loaded  int      `json:"loaded"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Handle processes S3 events for uploaded catalog files. A rejected file is
// moved under failed/ and does not return an error; a store outage does, so
// the event is retried.
func (h *CatalogIngestHandler) Handle(ctx context.Context, s3Event events.S3Event) (CatalogIngestResult, error) {
	logger := utils.Component("catalog-ingest")

	if len(s3Event.Records) == 0 {
		return CatalogIngestResult{Message: "No records to process"}, nil
	}

	key, err := url.QueryUnescape(s3Event.Records[0].S3.Object.Key)
	if err != nil {
		return CatalogIngestResult{}, fmt.Errorf("failed to decode S3 key: %w", err)
	}

	if !s3service.IsCatalogUpload(key) {
		logger.Info("Ignoring object outside uploads", utils.String("key", key))
		return CatalogIngestResult{Message: "Not a catalog upload", Key: key}, nil
	}

	logger.Info("Processing catalog file", utils.String("key", key))

	content, err := h.objects.DownloadFile(ctx, key)
	if err != nil {
		return CatalogIngestResult{Key: key}, fmt.Errorf("failed to download catalog: %w", err)
	}

	result, err := h.ingester.Ingest(ctx, content, ingest.Options{Source: key})
	if errors.Is(err, models.ErrCatalogUnavailable) {
		logger.Error("Catalog store unavailable", utils.Error(err))
		return CatalogIngestResult{Key: key}, err
	}

	response := CatalogIngestResult{Key: key}
	if result != nil {
		response.BatchID = result.BatchID
		response.Loaded = result.Loaded
		response.Skipped = result.Skipped
		response.Errors = failureMessages(result.Failures)
	}

	if err != nil {
		logger.Warn("Catalog rejected", utils.String("key", key), utils.Error(err))
		response.Message = "Catalog rejected"
		response.Errors = append([]string{err.Error()}, response.Errors...)
		h.archive(ctx, key, s3service.FailedPrefix, response)
		h.report(ctx, ses.IngestReportParams{Result: result, Failed: true, Error: err.Error()})
		return response, nil
	}

	response.Message = "Catalog processed successfully"
	h.archive(ctx, key, s3service.ProcessedPrefix, response)

	if h.reload.Configured() {
		payload := map[string]any{
			"batch_id":     result.BatchID,
			"loaded":       result.Loaded,
			"trigger_type": "catalog_upload",
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
		}
		if _, err := h.reload.Post(ctx, payload); err != nil {
			logger.Warn("Failed to trigger catalog reload", utils.Error(err))
		}
	}

	h.report(ctx, ses.IngestReportParams{Result: result})

	return response, nil
}

// archive moves the upload under prefix and writes the ingest result as a
// JSON report beside it.
func (h *CatalogIngestHandler) archive(ctx context.Context, key, prefix string, result CatalogIngestResult) {
	logger := utils.Component("catalog-ingest")
	dest := s3service.ArchiveKey(key, prefix)
	if err := h.objects.MoveFile(ctx, key, dest); err != nil {
		logger.Warn("Failed to archive file",
			utils.String("key", key),
			utils.String("destination", dest),
			utils.Error(err),
		)
	}

	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Warn("Failed to encode ingest report", utils.Error(err))
		return
	}
	reportKey := s3service.ReportKey(dest)
	if err := h.objects.UploadFile(ctx, reportKey, body, "application/json"); err != nil {
		logger.Warn("Failed to store ingest report",
			utils.String("key", reportKey),
			utils.Error(err),
		)
	}
}

func (h *CatalogIngestHandler) report(ctx context.Context, params ses.IngestReportParams) {
	if h.reporter == nil || h.recipient == "" {
		return
	}
	params.Recipient = h.recipient
	if _, err := h.reporter.SendIngestReport(ctx, params); err != nil {
		utils.Component("catalog-ingest").Warn("Failed to send ingest report", utils.Error(err))
	}
}

// Close cleans up resources.
func (h *CatalogIngestHandler) Close() {
	if h.close != nil {
		h.close()
	}
}

func failureMessages(failures []models.RowFailure) []string {
	if len(failures) == 0 {
		return nil
	}
	n := min(len(failures), maxResponseErrors)
	messages := make([]string, 0, n)
	for _, f := range failures[:n] {
		if f.Title != "" {
			messages = append(messages, f.Title+": "+f.Reason)
		} else {
			messages = append(messages, f.Reason)
		}
	}
	return messages
}
