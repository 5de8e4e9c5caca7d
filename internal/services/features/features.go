// Package features assembles finalized game records from raw catalog rows,
// deriving popularity, sentiment buckets, price tiers and category tags from
// the signals package.
package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/signals"
	"game-recommendation-engine/internal/utils"
)

// Popularity tuning constants.
const (
	popularityReviewCeiling = 1_000_000
	activityRatioScale      = 10
	activityBonusWeight     = 0.1
)

// Price tier boundaries, exclusive upper bounds.
const (
	budgetPriceLimit   = 10.0
	midPricePriceLimit = 30.0
)

var errNilRow = errors.New("row is nil")

type genreRule struct {
	category string
	keywords []string
}

// genreTable maps a category to the tag substrings that imply it.
var genreTable = []genreRule{
	{"action", []string{"action", "fps", "shooter", "platformer", "hack and slash"}},
	{"rpg", []string{"rpg", "jrpg", "crpg", "roguelike", "roguelite"}},
	{"strategy", []string{"strategy", "rts", "turn-based", "tower defense", "grand strategy"}},
	{"adventure", []string{"adventure", "exploration", "walking simulator", "narrative"}},
	{"simulation", []string{"simulation", "sim", "management", "building", "city builder"}},
	{"sports", []string{"sports", "racing", "football", "soccer", "basketball"}},
	{"puzzle", []string{"puzzle", "logic", "match"}},
	{"horror", []string{"horror", "survival horror", "psychological horror"}},
	{"indie", []string{"indie", "casual"}},
}

var multiplayerKeywords = []string{"multiplayer", "co-op", "online", "pvp", "mmo"}

// CalculatePopularity blends log-scaled review volume, a recent-activity
// bonus and average sentiment into a [0,1] score rounded to 3 decimals.
func CalculatePopularity(allCount, recentCount int, allSentiment, recentSentiment float64) float64 {
	if allCount <= 0 {
		return 0
	}

	reviewScore := math.Min(1, math.Log10(float64(allCount)+1)/math.Log10(popularityReviewCeiling))

	recentRatio := math.Min(1, float64(max(recentCount, 0))/float64(allCount)*activityRatioScale)
	activityBonus := recentRatio * activityBonusWeight

	avgSentiment := (allSentiment + recentSentiment) / 2
	sentimentMultiplier := 0.5 + avgSentiment*0.5

	score := math.Min(1, reviewScore*sentimentMultiplier+activityBonus)
	return round(math.Max(0, score), 3)
}

// ClassifyPrice returns the price tier of an original price.
func ClassifyPrice(price float64) models.PriceCategory {
	switch {
	case price <= 0:
		return models.PriceCategoryFree
	case price < budgetPriceLimit:
		return models.PriceCategoryBudget
	case price < midPricePriceLimit:
		return models.PriceCategoryMidPrice
	default:
		return models.PriceCategoryPremium
	}
}

// Categorize derives high-level category tags from a game's tags, features
// and price. The result is sorted and free of duplicates. The description
// is accepted but unused.
func Categorize(tags, features []string, price float64, description string) []string {
	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(t)
	}

	set := make(map[string]struct{})
	for _, rule := range genreTable {
		if anyTagContains(lowered, rule.keywords) {
			set[rule.category] = struct{}{}
		}
	}
	if anyTagContains(lowered, multiplayerKeywords) {
		set["multiplayer"] = struct{}{}
	}
	if strings.Contains(strings.ToLower(strings.Join(features, " ")), "single-player") {
		set["singleplayer"] = struct{}{}
	}
	set[string(ClassifyPrice(price))] = struct{}{}

	categories := make([]string, 0, len(set))
	for c := range set {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// BuildRecord turns one raw catalog row into a finalized GameRecord.
func BuildRecord(row *models.RawGameRow) (*models.GameRecord, error) {
	if row == nil {
		return nil, errNilRow
	}
	title := strings.TrimSpace(row.Title)
	if title == "" {
		return nil, models.ErrEmptyTitle
	}

	description := strings.TrimSpace(row.Description)
	releaseDate := strings.TrimSpace(row.ReleaseDate)

	recentSummary := strings.TrimSpace(row.RecentReviewsSummary)
	allSummary := strings.TrimSpace(row.AllReviewsSummary)

	tags := signals.ParseListField(row.PopularTags)
	descriptionKeywords := signals.ExtractKeywords(description, signals.DefaultKeywordMinLength, signals.DefaultKeywordLimit)

	record := &models.GameRecord{
		Title:       title,
		TitleKey:    models.TitleKey(title),
		Link:        strings.TrimSpace(row.Link),
		Description: description,
		Developer:   strings.ToLower(strings.TrimSpace(row.Developer)),
		Publisher:   strings.ToLower(strings.TrimSpace(row.Publisher)),

		OriginalPrice:   signals.ParsePrice(row.OriginalPrice),
		DiscountedPrice: signals.ParsePrice(row.DiscountedPrice),

		ReleaseDate: releaseDate,
		ReleaseYear: signals.ExtractYear(releaseDate),

		RecentReviewsSummary: recentSummary,
		RecentReviewCount:    signals.ParseReviewCount(row.RecentReviewsNumber),
		RecentSentiment:      signals.ParseSentiment(recentSummary),
		AllReviewsSummary:    allSummary,
		AllReviewCount:       signals.ParseReviewCount(row.AllReviewsNumber),
		AllSentiment:         signals.ParseSentiment(allSummary),

		Tags:                tags,
		Features:            signals.ParseListField(row.GameFeatures),
		Languages:           signals.ParseListField(row.SupportedLanguages),
		DescriptionKeywords: descriptionKeywords,

		MinimumRequirements: signals.TruncateRequirements(row.MinimumRequirements),
		HardwareSpec:        signals.ExtractHardwareSpecs(row.MinimumRequirements),

		IndexedAt: time.Now().UTC(),
	}

	derive(record)
	return record, nil
}

// Rederive returns a copy of record with every derived field recomputed from
// its persisted primary fields. A record loaded back from the store must
// rederive to the same scores it was written with.
func Rederive(record *models.GameRecord) *models.GameRecord {
	if record == nil {
		return nil
	}
	clone := *record
	derive(&clone)
	return &clone
}

// derive fills the fields that are pure functions of the primary ones.
func derive(r *models.GameRecord) {
	r.TitleKey = models.TitleKey(r.Title)

	r.DiscountPercentage = 0
	if r.OriginalPrice > 0 {
		r.DiscountPercentage = round((1-r.DiscountedPrice/r.OriginalPrice)*100, 1)
	}
	r.PriceCategory = ClassifyPrice(r.OriginalPrice)

	r.RecentSentimentCategory = signals.SentimentCategoryFor(r.RecentSentiment)
	r.AllSentimentCategory = signals.SentimentCategoryFor(r.AllSentiment)
	r.OverallSentiment = round((r.RecentSentiment+r.AllSentiment)/2, 2)
	r.SentimentCategory = signals.SentimentCategoryFor(r.OverallSentiment)

	r.PopularityScore = CalculatePopularity(r.AllReviewCount, r.RecentReviewCount, r.AllSentiment, r.RecentSentiment)
	r.Categories = Categorize(r.Tags, r.Features, r.OriginalPrice, r.Description)
	r.Keywords = union(r.Tags, r.DescriptionKeywords)
}

// RowFailureReason renders a build error for a RowFailure.
func RowFailureReason(err error) string {
	if errors.Is(err, models.ErrEmptyTitle) {
		return "missing title"
	}
	return err.Error()
}

// BuildCatalog folds raw rows into finalized records. A row that fails,
// including one whose processing panics, is recorded in the failure list and
// skipped; the batch always completes. When two rows share a title key the
// first one wins.
func BuildCatalog(rows []*models.RawGameRow) ([]*models.GameRecord, []models.RowFailure) {
	logger := utils.Component("features")

	records := make([]*models.GameRecord, 0, len(rows))
	failures := make([]models.RowFailure, 0)
	seen := make(map[string]int, len(rows))

	for i, row := range rows {
		record, err := buildSafely(row)
		if err != nil {
			title := ""
			if row != nil {
				title = strings.TrimSpace(row.Title)
			}
			failures = append(failures, models.RowFailure{Index: i, Title: title, Reason: RowFailureReason(err)})
			logger.Warn("Skipping catalog row",
				utils.Int("index", i),
				utils.String("title", title),
				utils.Error(err),
			)
			continue
		}

		if first, dup := seen[record.TitleKey]; dup {
			failures = append(failures, models.RowFailure{
				Index:  i,
				Title:  record.Title,
				Reason: fmt.Sprintf("duplicate title, first seen at row %d", first),
			})
			logger.Warn("Skipping duplicate title",
				utils.Int("index", i),
				utils.Int("first_index", first),
				utils.String("title", record.Title),
			)
			continue
		}
		seen[record.TitleKey] = i
		records = append(records, record)
	}

	logger.Info("Catalog built",
		utils.Int("rows", len(rows)),
		utils.Int("records", len(records)),
		utils.Int("skipped", len(failures)),
	)

	return records, failures
}

func buildSafely(row *models.RawGameRow) (record *models.GameRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			record = nil
			err = fmt.Errorf("panic while building record: %v", r)
		}
	}()
	return BuildRecord(row)
}

func anyTagContains(tags, keywords []string) bool {
	for _, tag := range tags {
		for _, kw := range keywords {
			if strings.Contains(tag, kw) {
				return true
			}
		}
	}
	return false
}

// union merges two sets preserving first-seen order.
func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
