// Package models defines the data structures for the game recommendation engine.
package models

import (
	"time"
)

// RawGameRow represents a row from the catalog CSV export, fields untouched.
type RawGameRow struct {
	Title                string `csv:"title"`
	OriginalPrice        string `csv:"original_price"`
	DiscountedPrice      string `csv:"discounted_price"`
	ReleaseDate          string `csv:"release_date"`
	Link                 string `csv:"link"`
	Description          string `csv:"game_description"`
	RecentReviewsSummary string `csv:"recent_reviews_summary"`
	AllReviewsSummary    string `csv:"all_reviews_summary"`
	RecentReviewsNumber  string `csv:"recent_reviews_number"`
	AllReviewsNumber     string `csv:"all_reviews_number"`
	Developer            string `csv:"developer"`
	Publisher            string `csv:"publisher"`
	SupportedLanguages   string `csv:"supported_languages"`
	PopularTags          string `csv:"popular_tags"`
	GameFeatures         string `csv:"game_features"`
	MinimumRequirements  string `csv:"minimum_requirements"`
}

// RowFailure records a catalog row that could not be turned into a record.
type RowFailure struct {
	Index  int    `json:"index"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

// BulkUpsertResult contains the results of a bulk write to the game store.
type BulkUpsertResult struct {
	InsertedCount int      `json:"inserted_count"`
	FailedCount   int      `json:"failed_count"`
	Errors        []string `json:"errors,omitempty"`
}

// IngestResult summarizes one catalog ingestion run.
type IngestResult struct {
	BatchID        string        `json:"batch_id"`
	Source         string        `json:"source"`
	TotalRows      int           `json:"total_rows"`
	ParsedRows     int           `json:"parsed_rows"`
	Loaded         int           `json:"loaded"`
	Skipped        int           `json:"skipped"`
	Failures       []RowFailure  `json:"failures,omitempty"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// TagCount is a tag and the number of games carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CatalogStats provides aggregate statistics over the stored catalog.
type CatalogStats struct {
	TotalGames    int        `json:"total_games"`
	FreeGames     int        `json:"free_games"`
	AvgPrice      float64    `json:"avg_price"`
	MinPrice      float64    `json:"min_price"`
	MaxPrice      float64    `json:"max_price"`
	AvgPopularity float64    `json:"avg_popularity"`
	AvgSentiment  float64    `json:"avg_sentiment"`
	TopTags       []TagCount `json:"top_tags"`

	SentimentDistribution []SentimentBucket `json:"sentiment_distribution"`
}

// SentimentBucket counts games whose overall sentiment falls in a range.
// Ranges are half-open; scores outside [0, 1) land in the "other" bucket.
type SentimentBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// GameSortField names a column the catalog can be browsed by.
type GameSortField string

const (
	SortByPopularity  GameSortField = "popularity_score"
	SortBySentiment   GameSortField = "overall_sentiment_score"
	SortByPrice       GameSortField = "original_price"
	SortByReviewCount GameSortField = "all_reviews_count"
	SortByReleaseYear GameSortField = "release_year"
)

// IsValid checks if the sort field is supported.
func (f GameSortField) IsValid() bool {
	switch f {
	case SortByPopularity, SortBySentiment, SortByPrice, SortByReviewCount, SortByReleaseYear:
		return true
	}
	return false
}

// ListOptions pages through the catalog.
type ListOptions struct {
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	SortBy     GameSortField `json:"sort_by"`
	Descending bool          `json:"descending"`
}

// GameFilter selects games by price range, quality floors and tag overlap.
type GameFilter struct {
	Tags          []string `json:"tags"`
	Categories    []string `json:"categories"`
	MinPrice      float64  `json:"min_price"`
	MaxPrice      float64  `json:"max_price"`
	MinSentiment  float64  `json:"min_sentiment"`
	MinPopularity float64  `json:"min_popularity"`
	Limit         int      `json:"limit"`
}

// DefaultGameFilter returns a filter that matches every game priced up to 1000.
func DefaultGameFilter() GameFilter {
	return GameFilter{
		Tags:       []string{},
		Categories: []string{},
		MaxPrice:   1000,
		Limit:      20,
	}
}

// Normalize lowercases and dedupes the tag and category sets.
func (f *GameFilter) Normalize() {
	f.Tags = normalizeSet(f.Tags)
	f.Categories = normalizeSet(f.Categories)
}
