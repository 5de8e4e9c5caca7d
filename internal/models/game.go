// Package models defines the data structures for the game recommendation engine.
package models

import (
	"time"
)

// SentimentCategory is a monotone bucketing of a sentiment score.
type SentimentCategory string

const (
	SentimentOverwhelminglyPositive SentimentCategory = "overwhelmingly_positive"
	SentimentVeryPositive           SentimentCategory = "very_positive"
	SentimentMostlyPositive         SentimentCategory = "mostly_positive"
	SentimentPositive               SentimentCategory = "positive"
	SentimentMixed                  SentimentCategory = "mixed"
	SentimentMostlyNegative         SentimentCategory = "mostly_negative"
	SentimentNegative               SentimentCategory = "negative"
	SentimentOverwhelminglyNegative SentimentCategory = "overwhelmingly_negative"
)

// ValidSentimentCategories returns all sentiment categories, best first.
func ValidSentimentCategories() []SentimentCategory {
	return []SentimentCategory{
		SentimentOverwhelminglyPositive,
		SentimentVeryPositive,
		SentimentMostlyPositive,
		SentimentPositive,
		SentimentMixed,
		SentimentMostlyNegative,
		SentimentNegative,
		SentimentOverwhelminglyNegative,
	}
}

// IsValid checks if the sentiment category is valid.
func (c SentimentCategory) IsValid() bool {
	for _, valid := range ValidSentimentCategories() {
		if c == valid {
			return true
		}
	}
	return false
}

// PriceCategory is the price tier of a game, derived from its original price.
type PriceCategory string

const (
	PriceCategoryFree     PriceCategory = "free"
	PriceCategoryBudget   PriceCategory = "budget"
	PriceCategoryMidPrice PriceCategory = "mid_price"
	PriceCategoryPremium  PriceCategory = "premium"
)

// IsValid checks if the price category is valid.
func (c PriceCategory) IsValid() bool {
	switch c {
	case PriceCategoryFree, PriceCategoryBudget, PriceCategoryMidPrice, PriceCategoryPremium:
		return true
	}
	return false
}

// OSType is the operating system family named by a requirement block.
type OSType string

const (
	OSWindows OSType = "windows"
	OSMac     OSType = "mac"
	OSLinux   OSType = "linux"
)

// IsValid checks if the OS type is valid.
func (o OSType) IsValid() bool {
	switch o {
	case OSWindows, OSMac, OSLinux:
		return true
	}
	return false
}

// HardwareBrand is a GPU or CPU vendor.
type HardwareBrand string

const (
	BrandNvidia HardwareBrand = "nvidia"
	BrandAMD    HardwareBrand = "amd"
	BrandIntel  HardwareBrand = "intel"
)

// HardwareSpec holds the minimum hardware requirements extracted from a
// requirement block. Every field is optional; nil means "not stated".
type HardwareSpec struct {
	MemoryGB       *int           `json:"memory_gb,omitempty" db:"memory_gb"`
	StorageGB      *int           `json:"storage_gb,omitempty" db:"storage_gb"`
	VRAMGB         *int           `json:"vram_gb,omitempty" db:"vram_gb"`
	DirectXVersion *int           `json:"directx_version,omitempty" db:"directx_version"`
	SSDRequired    bool           `json:"ssd_required" db:"ssd_required"`
	OSType         *OSType        `json:"os_type,omitempty" db:"os_type"`
	OSVersion      *int           `json:"os_version,omitempty" db:"os_version"`
	Architecture   *string        `json:"architecture,omitempty" db:"architecture"`
	GPUBrand       *HardwareBrand `json:"gpu_brand,omitempty" db:"gpu_brand"`
	CPUBrand       *HardwareBrand `json:"cpu_brand,omitempty" db:"cpu_brand"`
}

// GameRecord is a finalized catalog entry: raw descriptive fields plus every
// signal derived from them.
type GameRecord struct {
	Title       string `json:"title" db:"title"`
	TitleKey    string `json:"title_key" db:"title_key"`
	Link        string `json:"link,omitempty" db:"link"`
	Description string `json:"description,omitempty" db:"description"`
	Developer   string `json:"developer,omitempty" db:"developer"`
	Publisher   string `json:"publisher,omitempty" db:"publisher"`

	OriginalPrice      float64       `json:"original_price" db:"original_price"`
	DiscountedPrice    float64       `json:"discounted_price" db:"discounted_price"`
	DiscountPercentage float64       `json:"discount_percentage" db:"discount_percentage"`
	PriceCategory      PriceCategory `json:"price_category" db:"price_category"`

	ReleaseDate string `json:"release_date,omitempty" db:"release_date"`
	ReleaseYear *int   `json:"release_year,omitempty" db:"release_year"`

	RecentReviewsSummary    string            `json:"recent_reviews_summary,omitempty" db:"recent_reviews_summary"`
	RecentReviewCount       int               `json:"recent_reviews_count" db:"recent_reviews_count"`
	RecentSentiment         float64           `json:"recent_sentiment_score" db:"recent_sentiment_score"`
	RecentSentimentCategory SentimentCategory `json:"recent_sentiment_category" db:"recent_sentiment_category"`
	AllReviewsSummary       string            `json:"all_reviews_summary,omitempty" db:"all_reviews_summary"`
	AllReviewCount          int               `json:"all_reviews_count" db:"all_reviews_count"`
	AllSentiment            float64           `json:"all_sentiment_score" db:"all_sentiment_score"`
	AllSentimentCategory    SentimentCategory `json:"all_sentiment_category" db:"all_sentiment_category"`
	OverallSentiment        float64           `json:"overall_sentiment_score" db:"overall_sentiment_score"`
	SentimentCategory       SentimentCategory `json:"overall_sentiment_category" db:"overall_sentiment_category"`
	PopularityScore         float64           `json:"popularity_score" db:"popularity_score"`

	Tags                []string `json:"tags" db:"tags"`
	Features            []string `json:"features" db:"features"`
	Languages           []string `json:"languages" db:"languages"`
	Categories          []string `json:"categories" db:"categories"`
	Keywords            []string `json:"keywords" db:"keywords"`
	DescriptionKeywords []string `json:"description_keywords" db:"description_keywords"`

	MinimumRequirements string `json:"minimum_requirements,omitempty" db:"minimum_requirements"`
	HardwareSpec

	IndexedAt time.Time `json:"indexed_at" db:"indexed_at"`
}

// HasTag reports whether the game carries the given lowercase tag.
func (g *GameRecord) HasTag(tag string) bool {
	for _, t := range g.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GameSummary is a lightweight view for API responses.
type GameSummary struct {
	Title       string   `json:"title"`
	Price       float64  `json:"price"`
	Sentiment   float64  `json:"sentiment"`
	Popularity  float64  `json:"popularity"`
	Tags        []string `json:"tags"`
	Categories  []string `json:"categories,omitempty"`
	Developer   string   `json:"developer,omitempty"`
	ReleaseYear *int     `json:"release_year,omitempty"`
}

// ToSummary converts a GameRecord to GameSummary, keeping the first five tags.
func (g *GameRecord) ToSummary() GameSummary {
	tags := g.Tags
	if len(tags) > 5 {
		tags = tags[:5]
	}
	developer := g.Developer
	if developer == "" {
		developer = "unknown"
	}
	return GameSummary{
		Title:       g.Title,
		Price:       g.OriginalPrice,
		Sentiment:   g.OverallSentiment,
		Popularity:  g.PopularityScore,
		Tags:        tags,
		Categories:  g.Categories,
		Developer:   developer,
		ReleaseYear: g.ReleaseYear,
	}
}
