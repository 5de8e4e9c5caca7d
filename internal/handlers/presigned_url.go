package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"

	appConfig "game-recommendation-engine/internal/config"
	s3service "game-recommendation-engine/internal/services/s3"
	"game-recommendation-engine/internal/utils"
)

const uploadURLExpiryMinutes = 60

// URLPresigner issues presigned upload URLs.
type URLPresigner interface {
	GeneratePresignedUploadURL(ctx context.Context, key, contentType string, expiryMinutes int) (*s3service.PresignedURLResult, error)
}

// PresignedURLHandler handles requests for catalog upload URLs.
type PresignedURLHandler struct {
	presigner URLPresigner
	now       func() time.Time
}

// NewPresignedURLHandler creates a new presigned URL handler.
func NewPresignedURLHandler(ctx context.Context) (*PresignedURLHandler, error) {
	cfg, err := appConfig.Load()
	if err != nil {
		return nil, err
	}

	svc, err := s3service.NewService(ctx, cfg.S3Bucket, cfg.AWSRegion)
	if err != nil {
		return nil, err
	}

	return NewPresignedURLHandlerWith(svc), nil
}

// NewPresignedURLHandlerWith creates a handler over presigner.
func NewPresignedURLHandlerWith(presigner URLPresigner) *PresignedURLHandler {
	return &PresignedURLHandler{presigner: presigner, now: time.Now}
}

// PresignedURLResponse is the response structure for presigned URL requests.
type PresignedURLResponse struct {
	UploadURL string `json:"uploadUrl"`
	S3Key     string `json:"s3Key"`
	ExpiresIn int    `json:"expiresIn"`
}

// Handle processes the API Gateway request for generating presigned URLs.
func (h *PresignedURLHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := utils.Component("presigned-url")
	headers := corsHeaders("GET,OPTIONS")

	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    headers,
		}, nil
	}

	filename := request.QueryStringParameters["filename"]
	if filename == "" {
		filename = "catalog.csv"
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return errorResponse(headers, http.StatusBadRequest, "Only CSV files are allowed")
	}

	key := s3service.UploadKey(filename, h.now())

	presigned, err := h.presigner.GeneratePresignedUploadURL(ctx, key, "text/csv", uploadURLExpiryMinutes)
	if err != nil {
		logger.Error("Failed to generate presigned URL", utils.Error(err))
		return errorResponse(headers, http.StatusInternalServerError, "Failed to generate upload URL")
	}

	logger.Info("Generated presigned URL", utils.String("s3Key", key))

	return jsonResponse(headers, http.StatusOK, PresignedURLResponse{
		UploadURL: presigned.URL,
		S3Key:     presigned.Key,
		ExpiresIn: uploadURLExpiryMinutes * 60,
	})
}
