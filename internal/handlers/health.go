package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"

	appConfig "game-recommendation-engine/internal/config"
	"game-recommendation-engine/internal/services/database"
)

// ServiceName identifies this service in health responses.
const ServiceName = "game-recommendation-engine"

// HealthChecker reports catalog store connectivity and size.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db    HealthChecker
	close func()
}

// NewHealthHandler creates a new health handler. A database that cannot be
// reached is reported as not configured rather than failing startup.
func NewHealthHandler() (*HealthHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return &HealthHandler{}, nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return &HealthHandler{}, nil
	}

	return &HealthHandler{db: database.NewGameRepository(db), close: db.Close}, nil
}

// NewHealthHandlerWith creates a health handler over checker.
func NewHealthHandlerWith(checker HealthChecker) *HealthHandler {
	return &HealthHandler{db: checker}
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Stage     string `json:"stage"`
	Database  string `json:"database,omitempty"`
	Games     *int   `json:"games,omitempty"`
}

// Handle processes health check requests.
func (h *HealthHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Content-Type":                "application/json",
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   ServiceName,
		Version:   getEnvOrDefault("SERVICE_VERSION", "1.0.0"),
		Stage:     getEnvOrDefault("STAGE", "unknown"),
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			response.Database = "disconnected"
			response.Status = "degraded"
		} else {
			response.Database = "connected"
			if count, err := h.db.Count(ctx); err == nil {
				response.Games = &count
			}
		}
	} else {
		response.Database = "not configured"
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return jsonResponse(headers, statusCode, response)
}

// Close cleans up resources.
func (h *HealthHandler) Close() {
	if h.close != nil {
		h.close()
	}
}

// getEnvOrDefault returns environment variable or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
