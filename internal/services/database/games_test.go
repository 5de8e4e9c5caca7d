package database_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/database"
	"game-recommendation-engine/internal/services/features"
)

var testDB *database.DB

// These tests replace the contents of the games table; point DATABASE_URL at
// a scratch database.
func TestMain(m *testing.M) {
	if os.Getenv("DATABASE_URL") == "" {
		os.Exit(0)
	}

	var err error
	testDB, err = database.NewFromURL(os.Getenv("DATABASE_URL"))
	if err != nil {
		panic("Failed to connect to test database: " + err.Error())
	}

	schema, err := os.ReadFile("../../../scripts/init_database.sql")
	if err != nil {
		panic("Failed to read schema: " + err.Error())
	}
	if err := testDB.ApplySchema(context.Background(), string(schema)); err != nil {
		panic(err.Error())
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

func buildGames(t *testing.T, rows ...*models.RawGameRow) []*models.GameRecord {
	t.Helper()
	games := make([]*models.GameRecord, 0, len(rows))
	for _, row := range rows {
		g, err := features.BuildRecord(row)
		require.NoError(t, err)
		games = append(games, g)
	}
	return games
}

func sampleCatalog(t *testing.T) []*models.GameRecord {
	return buildGames(t,
		&models.RawGameRow{
			Title:                "Baldur's Gate 3",
			OriginalPrice:        "$59.99",
			DiscountedPrice:      "$47.99",
			ReleaseDate:          "Aug 3, 2023",
			Description:          "Gather your party and return to the Forgotten Realms.",
			AllReviewsSummary:    "Overwhelmingly Positive",
			AllReviewsNumber:     "(500,000)",
			RecentReviewsSummary: "Very Positive",
			RecentReviewsNumber:  "(12,345)",
			Developer:            "Larian Studios",
			PopularTags:          "['RPG', 'Co-op', 'Strategy']",
			GameFeatures:         "['Single-player', 'Online Co-op']",
			MinimumRequirements:  "OS: Windows 10 64-bit Memory: 8 GB RAM Graphics: Nvidia GTX 970 Storage: 150 GB available space",
		},
		&models.RawGameRow{
			Title:             "Stardew Valley",
			OriginalPrice:     "$14.99",
			AllReviewsSummary: "Overwhelmingly Positive",
			AllReviewsNumber:  "(300,000)",
			PopularTags:       "['Farming Sim', 'Indie', 'Co-op']",
		},
		&models.RawGameRow{
			Title:             "Free Arena",
			OriginalPrice:     "Free to Play",
			AllReviewsSummary: "Mixed",
			AllReviewsNumber:  "(2,000)",
			PopularTags:       "['Action', 'PvP']",
		},
	)
}

func TestGameRepository_ReplaceAllRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	repo := database.NewGameRepository(testDB)

	games := sampleCatalog(t)
	result, err := repo.ReplaceAll(ctx, games)
	require.NoError(t, err)
	assert.Equal(t, 3, result.InsertedCount)

	loaded, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	for i, g := range loaded {
		assert.Equal(t, games[i].Title, g.Title, "load order is insertion order")
		assert.Equal(t, games[i].Tags, g.Tags)
		assert.Equal(t, games[i].HardwareSpec, g.HardwareSpec)
		assert.InDelta(t, games[i].PopularityScore, g.PopularityScore, 1e-9)

		rederived := features.Rederive(g)
		assert.InDelta(t, g.PopularityScore, rederived.PopularityScore, 1e-9)
		assert.Equal(t, g.Categories, rederived.Categories)
	}

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	result, err = repo.ReplaceAll(ctx, games[:1])
	require.NoError(t, err)
	assert.Equal(t, 1, result.InsertedCount)
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGameRepository_BulkUpsert(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	repo := database.NewGameRepository(testDB)

	games := sampleCatalog(t)
	_, err := repo.ReplaceAll(ctx, games[:2])
	require.NoError(t, err)

	updated := *games[1]
	updated.OriginalPrice = 9.99
	result, err := repo.BulkUpsert(ctx, []*models.GameRecord{&updated, games[2]})
	require.NoError(t, err)
	assert.Equal(t, 2, result.InsertedCount)
	assert.Equal(t, 0, result.FailedCount)

	got, err := repo.GetByTitleKey(ctx, "stardew valley")
	require.NoError(t, err)
	assert.Equal(t, 9.99, got.OriginalPrice)

	_, err = repo.GetByTitleKey(ctx, "missing game")
	assert.ErrorIs(t, err, models.ErrGameNotFound)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestGameRepository_Queries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	repo := database.NewGameRepository(testDB)

	_, err := repo.ReplaceAll(ctx, sampleCatalog(t))
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalGames)
	assert.Equal(t, 1, stats.FreeGames)
	assert.Equal(t, 59.99, stats.MaxPrice)
	assert.Equal(t, 0.0, stats.MinPrice)
	require.Len(t, stats.TopTags, 2)
	assert.Equal(t, models.TagCount{Tag: "co-op", Count: 2}, stats.TopTags[0])
	assert.NotEmpty(t, stats.SentimentDistribution)

	tags, err := repo.DistinctTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"action", "co-op", "farming sim", "indie", "pvp", "rpg", "strategy"}, tags)

	categories, err := repo.DistinctCategories(ctx)
	require.NoError(t, err)
	assert.Contains(t, categories, "free")
	assert.Contains(t, categories, "multiplayer")

	found, err := repo.Search(ctx, "GATE", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Baldur's Gate 3", found[0].Title)

	filter := models.DefaultGameFilter()
	filter.Tags = []string{"co-op"}
	filter.MaxPrice = 20
	filtered, err := repo.Filter(ctx, filter)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Stardew Valley", filtered[0].Title)

	page, total, err := repo.List(ctx, models.ListOptions{Page: 1, Limit: 2, SortBy: models.SortByPrice, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "Baldur's Gate 3", page[0].Title)
	assert.Equal(t, "Stardew Valley", page[1].Title)
}

func TestDB_WithTransactionRollsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	repo := database.NewGameRepository(testDB)

	_, err := repo.ReplaceAll(ctx, sampleCatalog(t))
	require.NoError(t, err)

	errAbort := errors.New("abort")
	err = testDB.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM games"); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
