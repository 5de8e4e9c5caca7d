package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"game-recommendation-engine/internal/utils"
)

// ReloadTriggerHandler forwards catalog reload requests to the serving
// instance's reload webhook.
type ReloadTriggerHandler struct {
	webhook *WebhookClient
}

// NewReloadTriggerHandler creates a handler posting to webhookURL.
func NewReloadTriggerHandler(webhookURL string) *ReloadTriggerHandler {
	return &ReloadTriggerHandler{webhook: NewWebhookClient(webhookURL)}
}

// ReloadRequest is the request body for triggering a reload.
type ReloadRequest struct {
	BatchID     string         `json:"batch_id,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	ExtraParams map[string]any `json:"extra_params,omitempty"`
}

// ReloadResponse is the response for a reload trigger request.
type ReloadResponse struct {
	Message         string `json:"message"`
	BatchID         string `json:"batch_id,omitempty"`
	WebhookResponse any    `json:"webhook_response,omitempty"`
}

// Handle processes API Gateway requests to trigger a catalog reload.
func (h *ReloadTriggerHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := utils.Component("reload-trigger")
	headers := corsHeaders("POST,OPTIONS")

	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusOK,
			Headers:    headers,
		}, nil
	}

	if !h.webhook.Configured() {
		return errorResponse(headers, http.StatusServiceUnavailable, "Reload webhook is not configured")
	}

	var req ReloadRequest
	if request.Body != "" {
		if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
			return errorResponse(headers, http.StatusBadRequest, "Invalid JSON in request body")
		}
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}

	payload := map[string]any{
		"reason":       req.Reason,
		"trigger_type": "lambda_trigger",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
	if req.BatchID != "" {
		payload["batch_id"] = req.BatchID
	}
	for k, v := range req.ExtraParams {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}

	webhookResp, err := h.webhook.Post(ctx, payload)
	if err != nil {
		logger.Error("Failed to trigger catalog reload", utils.Error(err))
		return errorResponse(headers, http.StatusBadGateway, fmt.Sprintf("Failed to trigger reload: %v", err))
	}

	logger.Info("Triggered catalog reload",
		utils.String("reason", req.Reason),
		utils.String("batchID", req.BatchID))

	return jsonResponse(headers, http.StatusOK, ReloadResponse{
		Message:         "Catalog reload triggered",
		BatchID:         req.BatchID,
		WebhookResponse: webhookResp,
	})
}
