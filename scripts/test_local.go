//go:build ignore
// +build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/ingest"
	"game-recommendation-engine/internal/services/recommender"
	"game-recommendation-engine/internal/utils"
)

// memoryStore keeps the catalog in process so the pipeline can run without
// PostgreSQL.
type memoryStore struct {
	games []*models.GameRecord
}

func (m *memoryStore) GetAll(ctx context.Context) ([]*models.GameRecord, error) {
	return m.games, nil
}

func (m *memoryStore) ReplaceAll(ctx context.Context, games []*models.GameRecord) (*models.BulkUpsertResult, error) {
	m.games = games
	return &models.BulkUpsertResult{InsertedCount: len(games)}, nil
}

func (m *memoryStore) BulkUpsert(ctx context.Context, games []*models.GameRecord) (*models.BulkUpsertResult, error) {
	m.games = append(m.games, games...)
	return &models.BulkUpsertResult{InsertedCount: len(games)}, nil
}

func main() {
	fmt.Println("=== Game Recommendation Engine - Local Test ===")
	fmt.Println()

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  Warning: Could not load .env file: %v\n", err)
	}
	if err := utils.InitLogger(os.Getenv("LOG_LEVEL")); err != nil {
		fmt.Printf("❌ Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	path := "data/games.csv"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fmt.Printf("📖 Reading %s...\n", path)
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("❌ Failed to read CSV: %v\n", err)
		os.Exit(1)
	}

	store := &memoryStore{}
	result, err := ingest.NewService(store).Ingest(ctx, content, ingest.Options{Source: path})
	if err != nil {
		fmt.Printf("❌ Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Ingested %d of %d rows (%d skipped) in %s\n",
		result.Loaded, result.TotalRows, result.Skipped, result.ProcessingTime)

	fmt.Println()
	fmt.Println("🧮 Building feature vectors...")
	svc := recommender.NewService(store, recommender.Options{})
	games, dims, err := svc.Reload(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to prepare catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✅ %d games, %d dimensions\n", games, dims)

	fmt.Println()
	fmt.Println("🎯 Top picks for an RPG fan on a $30 budget:")
	profile := models.DefaultPreferenceProfile()
	profile.PreferredTags = []string{"rpg", "open world", "story rich"}
	profile.MaxPrice = 30

	recs, err := svc.RecommendByPreferences(ctx, &profile, 5)
	if err != nil {
		fmt.Printf("❌ Preference query failed: %v\n", err)
		os.Exit(1)
	}
	if len(recs) == 0 {
		fmt.Println("   (no games cleared the score threshold)")
	}
	for i, rec := range recs {
		fmt.Printf("   %d. %s  score=%.3f  $%.2f  [%s]\n", i+1, rec.Game.Title,
			rec.Breakdown.TotalScore, rec.Game.OriginalPrice, strings.Join(rec.Explanations, "; "))
	}

	snap := svc.Snapshot()
	if snap.Len() == 0 {
		return
	}
	seed := snap.Games()[0].Title

	fmt.Println()
	fmt.Printf("🔗 Games similar to %s:\n", seed)
	similar, err := svc.Similar(ctx, seed, 5)
	if err != nil {
		fmt.Printf("❌ Similarity query failed: %v\n", err)
		os.Exit(1)
	}
	for i, sg := range similar {
		marker := ""
		if sg.Fallback {
			marker = " (tag overlap)"
		}
		fmt.Printf("   %d. %s  similarity=%.3f%s\n", i+1, sg.Game.Title, sg.SimilarityScore, marker)
	}

	fmt.Println()
	fmt.Println("=== Local test complete ===")
}
