// Health Check Lambda entry point
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"game-recommendation-engine/internal/handlers"
	"game-recommendation-engine/internal/utils"
)

func main() {
	// Initialize logger
	_ = utils.InitLogger(os.Getenv("LOG_LEVEL"))
	defer utils.Sync()

	// Create handler
	handler, err := handlers.NewHealthHandler()
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}

	// Start Lambda
	lambda.Start(handler.Handle)
}
