// Catalog Ingest Lambda entry point, triggered by S3 uploads
package main

import (
	"context"
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
	handler, err := handlers.NewCatalogIngestHandler(context.Background())
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}
	defer handler.Close()

	// Start Lambda
	lambda.Start(handler.Handle)
}
