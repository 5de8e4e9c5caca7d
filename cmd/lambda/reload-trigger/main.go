// Reload Trigger Lambda entry point
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"game-recommendation-engine/internal/config"
	"game-recommendation-engine/internal/handlers"
	"game-recommendation-engine/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize logger
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	// Create handler
	handler := handlers.NewReloadTriggerHandler(cfg.ReloadWebhookURL)

	// Start Lambda
	lambda.Start(handler.Handle)
}
