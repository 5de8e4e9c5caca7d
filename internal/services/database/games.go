package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"game-recommendation-engine/internal/models"
)

// gameColumns is the persisted layout of a GameRecord, in scan order.
var gameColumns = []string{
	"title", "title_key", "link", "description", "developer", "publisher",
	"original_price", "discounted_price", "discount_percentage", "price_category",
	"release_date", "release_year",
	"recent_reviews_summary", "recent_reviews_count", "recent_sentiment_score", "recent_sentiment_category",
	"all_reviews_summary", "all_reviews_count", "all_sentiment_score", "all_sentiment_category",
	"overall_sentiment_score", "overall_sentiment_category", "popularity_score",
	"tags", "features", "languages", "categories", "keywords", "description_keywords",
	"minimum_requirements",
	"memory_gb", "storage_gb", "vram_gb", "directx_version", "ssd_required",
	"os_type", "os_version", "architecture", "gpu_brand", "cpu_brand",
	"indexed_at",
}

var (
	selectGamesSQL = "SELECT " + strings.Join(gameColumns, ", ") + " FROM games"
	upsertGameSQL  = buildUpsertSQL()
)

func buildUpsertSQL() string {
	placeholders := make([]string, len(gameColumns))
	updates := make([]string, 0, len(gameColumns))
	for i, col := range gameColumns {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		if col != "title_key" {
			updates = append(updates, col+" = EXCLUDED."+col)
		}
	}
	return "INSERT INTO games (" + strings.Join(gameColumns, ", ") + ") VALUES (" +
		strings.Join(placeholders, ", ") + ") ON CONFLICT (title_key) DO UPDATE SET " +
		strings.Join(updates, ", ")
}

// GameRepository handles game catalog database operations.
type GameRepository struct {
	db *DB
}

// NewGameRepository creates a new game repository.
func NewGameRepository(db *DB) *GameRepository {
	return &GameRepository{db: db}
}

// HealthCheck verifies the underlying connection.
func (r *GameRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// GetAll returns the whole catalog in insertion order.
func (r *GameRepository) GetAll(ctx context.Context) ([]*models.GameRecord, error) {
	return r.queryGames(ctx, selectGamesSQL+" ORDER BY id")
}

// GetByTitleKey retrieves a game by its lowercase title key.
func (r *GameRepository) GetByTitleKey(ctx context.Context, titleKey string) (*models.GameRecord, error) {
	game, err := scanGame(r.db.QueryRowContext(ctx, selectGamesSQL+" WHERE title_key = $1", titleKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return game, nil
}

// ReplaceAll swaps the whole catalog for games in one transaction. On
// failure the previous catalog is left intact.
func (r *GameRepository) ReplaceAll(ctx context.Context, games []*models.GameRecord) (*models.BulkUpsertResult, error) {
	result := &models.BulkUpsertResult{Errors: []string{}}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DELETE FROM games"); err != nil {
			return fmt.Errorf("failed to clear games: %w", err)
		}

		rows := make([][]any, len(games))
		for i, g := range games {
			rows[i] = gameValues(g)
		}

		copied, err := tx.CopyFrom(ctx, pgx.Identifier{"games"}, gameColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy games: %w", err)
		}
		result.InsertedCount = int(copied)
		return nil
	})

	if err != nil {
		result.FailedCount = len(games)
		result.InsertedCount = 0
		return result, fmt.Errorf("replace catalog failed: %w", err)
	}

	return result, nil
}

// BulkUpsert inserts or updates games keyed by title. Each row runs in its
// own savepoint so one bad row does not abort the rest.
func (r *GameRepository) BulkUpsert(ctx context.Context, games []*models.GameRecord) (*models.BulkUpsertResult, error) {
	result := &models.BulkUpsertResult{Errors: []string{}}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, game := range games {
			sp, err := tx.Begin(ctx)
			if err != nil {
				return fmt.Errorf("failed to open savepoint: %w", err)
			}

			if _, err := sp.Exec(ctx, upsertGameSQL, gameValues(game)...); err != nil {
				_ = sp.Rollback(ctx)
				result.FailedCount++
				result.Errors = append(result.Errors, fmt.Sprintf("game %s: %v", game.Title, err))
				continue
			}
			if err := sp.Commit(ctx); err != nil {
				return fmt.Errorf("failed to release savepoint: %w", err)
			}
			result.InsertedCount++
		}
		return nil
	})

	if err != nil {
		return result, fmt.Errorf("bulk upsert failed: %w", err)
	}

	return result, nil
}

// Count returns the number of games in the catalog.
func (r *GameRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}
	return count, nil
}

// Stats aggregates price, popularity and sentiment over the catalog along
// with the topTags most common tags.
func (r *GameRepository) Stats(ctx context.Context, topTags int) (*models.CatalogStats, error) {
	stats := &models.CatalogStats{}

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE original_price = 0),
			COALESCE(AVG(original_price), 0),
			COALESCE(MIN(original_price), 0),
			COALESCE(MAX(original_price), 0),
			COALESCE(AVG(popularity_score), 0),
			COALESCE(AVG(overall_sentiment_score), 0)
		FROM games`,
	).Scan(
		&stats.TotalGames,
		&stats.FreeGames,
		&stats.AvgPrice,
		&stats.MinPrice,
		&stats.MaxPrice,
		&stats.AvgPopularity,
		&stats.AvgSentiment,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate games: %w", err)
	}

	tags, err := r.TopTags(ctx, topTags)
	if err != nil {
		return nil, err
	}
	stats.TopTags = tags

	buckets, err := r.sentimentDistribution(ctx)
	if err != nil {
		return nil, err
	}
	stats.SentimentDistribution = buckets

	return stats, nil
}

// TopTags returns the limit most common tags with their game counts, ties
// broken by tag.
func (r *GameRepository) TopTags(ctx context.Context, limit int) ([]models.TagCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT tag, COUNT(*) AS n
		FROM games, unnest(tags) AS tag
		GROUP BY tag
		ORDER BY n DESC, tag COLLATE "C"
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top tags: %w", err)
	}

	tags, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TagCount, error) {
		var tc models.TagCount
		err := row.Scan(&tc.Tag, &tc.Count)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read top tags: %w", err)
	}
	return tags, nil
}

func (r *GameRepository) sentimentDistribution(ctx context.Context) ([]models.SentimentBucket, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bucket, COUNT(*)
		FROM (
			SELECT CASE
				WHEN overall_sentiment_score < 0 THEN 'other'
				WHEN overall_sentiment_score < 0.3 THEN '0-0.3'
				WHEN overall_sentiment_score < 0.5 THEN '0.3-0.5'
				WHEN overall_sentiment_score < 0.7 THEN '0.5-0.7'
				WHEN overall_sentiment_score < 0.9 THEN '0.7-0.9'
				WHEN overall_sentiment_score < 1.0 THEN '0.9-1.0'
				ELSE 'other'
			END AS bucket
			FROM games
		) b
		GROUP BY bucket
		ORDER BY bucket = 'other', MIN(overall_sentiment_score)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment distribution: %w", err)
	}

	buckets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SentimentBucket, error) {
		var b models.SentimentBucket
		err := row.Scan(&b.Range, &b.Count)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sentiment distribution: %w", err)
	}
	return buckets, nil
}

// List returns one page of the catalog sorted by opts.SortBy, along with the
// total number of games.
func (r *GameRepository) List(ctx context.Context, opts models.ListOptions) ([]*models.GameRecord, int, error) {
	if !opts.SortBy.IsValid() {
		opts.SortBy = models.SortByPopularity
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Page < 1 {
		opts.Page = 1
	}

	direction := "ASC NULLS LAST"
	if opts.Descending {
		direction = "DESC NULLS LAST"
	}

	total, err := r.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	games, err := r.queryGames(ctx,
		selectGamesSQL+" ORDER BY "+string(opts.SortBy)+" "+direction+", id LIMIT $1 OFFSET $2",
		opts.Limit, (opts.Page-1)*opts.Limit)
	if err != nil {
		return nil, 0, err
	}
	return games, total, nil
}

// Search returns games whose title contains query, case-insensitively.
func (r *GameRepository) Search(ctx context.Context, query string, limit int) ([]*models.GameRecord, error) {
	return r.queryGames(ctx,
		selectGamesSQL+" WHERE strpos(title_key, $1) > 0 ORDER BY popularity_score DESC, id LIMIT $2",
		models.TitleKey(query), limit)
}

// Filter returns the most popular games matching every criterion of f. Tag
// and category criteria match when the game shares at least one value.
func (r *GameRepository) Filter(ctx context.Context, f models.GameFilter) ([]*models.GameRecord, error) {
	conditions := []string{"original_price >= $1", "original_price <= $2"}
	args := []any{f.MinPrice, f.MaxPrice}

	if f.MinSentiment > 0 {
		args = append(args, f.MinSentiment)
		conditions = append(conditions, "overall_sentiment_score >= $"+strconv.Itoa(len(args)))
	}
	if f.MinPopularity > 0 {
		args = append(args, f.MinPopularity)
		conditions = append(conditions, "popularity_score >= $"+strconv.Itoa(len(args)))
	}
	if len(f.Tags) > 0 {
		args = append(args, f.Tags)
		conditions = append(conditions, "tags && $"+strconv.Itoa(len(args)))
	}
	if len(f.Categories) > 0 {
		args = append(args, f.Categories)
		conditions = append(conditions, "categories && $"+strconv.Itoa(len(args)))
	}

	args = append(args, f.Limit)
	sql := selectGamesSQL + " WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY popularity_score DESC, id LIMIT $" + strconv.Itoa(len(args))

	return r.queryGames(ctx, sql, args...)
}

func (r *GameRepository) queryGames(ctx context.Context, sql string, args ...any) ([]*models.GameRecord, error) {
	rows, err := r.db.QueryContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}
	defer rows.Close()

	games := make([]*models.GameRecord, 0)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read games: %w", err)
	}

	return games, nil
}

// DistinctTags returns every tag in the catalog, sorted.
func (r *GameRepository) DistinctTags(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "tags")
}

// DistinctCategories returns every category in the catalog, sorted.
func (r *GameRepository) DistinctCategories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "categories")
}

func (r *GameRepository) distinct(ctx context.Context, column string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT v FROM games, unnest("+column+") AS v ORDER BY v COLLATE \"C\"")
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s: %w", column, err)
	}

	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read distinct %s: %w", column, err)
	}
	return values, nil
}

// gameValues flattens a record into gameColumns order.
func gameValues(g *models.GameRecord) []any {
	indexedAt := g.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now().UTC()
	}

	return []any{
		g.Title, models.TitleKey(g.Title), g.Link, g.Description, g.Developer, g.Publisher,
		g.OriginalPrice, g.DiscountedPrice, g.DiscountPercentage, string(g.PriceCategory),
		g.ReleaseDate, g.ReleaseYear,
		g.RecentReviewsSummary, g.RecentReviewCount, g.RecentSentiment, string(g.RecentSentimentCategory),
		g.AllReviewsSummary, g.AllReviewCount, g.AllSentiment, string(g.AllSentimentCategory),
		g.OverallSentiment, string(g.SentimentCategory), g.PopularityScore,
		nonNil(g.Tags), nonNil(g.Features), nonNil(g.Languages), nonNil(g.Categories), nonNil(g.Keywords), nonNil(g.DescriptionKeywords),
		g.MinimumRequirements,
		g.MemoryGB, g.StorageGB, g.VRAMGB, g.DirectXVersion, g.SSDRequired,
		enumValue(g.OSType), g.OSVersion, g.Architecture, enumValue(g.GPUBrand), enumValue(g.CPUBrand),
		indexedAt,
	}
}

// scanGame reads one row in gameColumns order.
func scanGame(row pgx.Row) (*models.GameRecord, error) {
	var g models.GameRecord
	var priceCategory, recentCategory, allCategory, overallCategory string
	var osType, gpuBrand, cpuBrand *string

	err := row.Scan(
		&g.Title, &g.TitleKey, &g.Link, &g.Description, &g.Developer, &g.Publisher,
		&g.OriginalPrice, &g.DiscountedPrice, &g.DiscountPercentage, &priceCategory,
		&g.ReleaseDate, &g.ReleaseYear,
		&g.RecentReviewsSummary, &g.RecentReviewCount, &g.RecentSentiment, &recentCategory,
		&g.AllReviewsSummary, &g.AllReviewCount, &g.AllSentiment, &allCategory,
		&g.OverallSentiment, &overallCategory, &g.PopularityScore,
		&g.Tags, &g.Features, &g.Languages, &g.Categories, &g.Keywords, &g.DescriptionKeywords,
		&g.MinimumRequirements,
		&g.MemoryGB, &g.StorageGB, &g.VRAMGB, &g.DirectXVersion, &g.SSDRequired,
		&osType, &g.OSVersion, &g.Architecture, &gpuBrand, &cpuBrand,
		&g.IndexedAt,
	)
	if err != nil {
		return nil, err
	}

	g.PriceCategory = models.PriceCategory(priceCategory)
	g.RecentSentimentCategory = models.SentimentCategory(recentCategory)
	g.AllSentimentCategory = models.SentimentCategory(allCategory)
	g.SentimentCategory = models.SentimentCategory(overallCategory)

	if osType != nil {
		o := models.OSType(*osType)
		g.OSType = &o
	}
	g.GPUBrand = brandFrom(gpuBrand)
	g.CPUBrand = brandFrom(cpuBrand)

	return &g, nil
}

func brandFrom(s *string) *models.HardwareBrand {
	if s == nil {
		return nil
	}
	b := models.HardwareBrand(*s)
	return &b
}

func enumValue[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
