// Package scorer computes the weighted multi-criteria match between a game
// and a user preference profile, and explains the match in plain words.
package scorer

import (
	"math"
	"strings"

	"game-recommendation-engine/internal/models"
)

// Component weights. They sum to 1.
const (
	WeightTagMatch   = 0.35
	WeightPriceMatch = 0.25
	WeightSystem     = 0.15
	WeightSentiment  = 0.15
	WeightPopularity = 0.10
)

// MaxExplanations caps the explanation list.
const MaxExplanations = 3

// Explanation texts.
const (
	ExplainPerfectMatch = "Perfect match for your interests"
	ExplainSomeMatch    = "Matches some of your interests"
	ExplainGreatValue   = "Great value for money"
	ExplainFreeToPlay   = "Free to play"
	ExplainHighlyRated  = "Highly rated by players"
	ExplainWellReceived = "Well received by players"
	ExplainPopular      = "Very popular choice"
)

// Score computes the breakdown of game against profile. It has no side
// effects and never divides by zero.
func Score(game *models.GameRecord, profile *models.UserPreferenceProfile) models.ScoreBreakdown {
	var b models.ScoreBreakdown
	if game == nil || profile == nil {
		return b
	}

	b.TagMatch = tagMatch(game.Tags, profile.PreferredTags)
	b.PriceMatch = priceMatch(game.OriginalPrice, profile.MaxPrice)

	if !profile.SystemSpecs.IsEmpty() && CheckSystemCompatibility(game, profile.SystemSpecs) {
		b.SystemMatch = 1
	}

	if game.OverallSentiment >= profile.MinSentiment {
		b.SentimentScore = clamp01(game.OverallSentiment)
	}
	if game.PopularityScore >= profile.MinPopularity {
		b.PopularityScore = clamp01(game.PopularityScore)
	}

	total := WeightTagMatch*b.TagMatch +
		WeightPriceMatch*b.PriceMatch +
		WeightSystem*b.SystemMatch +
		WeightSentiment*b.SentimentScore +
		WeightPopularity*b.PopularityScore
	b.TotalScore = math.Min(1, total)

	return b
}

func tagMatch(gameTags, preferred []string) float64 {
	if len(preferred) == 0 {
		return 0
	}

	have := make(map[string]struct{}, len(gameTags))
	for _, t := range gameTags {
		have[strings.ToLower(t)] = struct{}{}
	}

	wanted := make(map[string]struct{}, len(preferred))
	for _, t := range preferred {
		wanted[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	shared := 0
	for t := range wanted {
		if _, ok := have[t]; ok {
			shared++
		}
	}
	return math.Min(1, float64(shared)/float64(max(len(wanted), 1)))
}

// priceMatch rewards cheaper games within budget. A zero budget matches
// only free games.
func priceMatch(price, maxPrice float64) float64 {
	if price > maxPrice {
		return 0
	}
	if maxPrice <= 0 {
		return 1
	}
	return clamp01(1 - price/maxPrice)
}

// CheckSystemCompatibility reports whether the user's system meets the
// game's stated minimums. A requirement missing on either side does not
// constrain. The OS rule is one-way: a windows user needs a windows game,
// every other pairing passes.
func CheckSystemCompatibility(game *models.GameRecord, specs *models.SystemSpecs) bool {
	if specs == nil || game == nil {
		return true
	}

	if specs.MemoryGB != nil && game.MemoryGB != nil && *game.MemoryGB > 0 {
		if *game.MemoryGB > *specs.MemoryGB {
			return false
		}
	}

	if specs.OSType != nil && game.OSType != nil {
		if *specs.OSType == models.OSWindows && *game.OSType != models.OSWindows {
			return false
		}
	}

	if specs.StorageGB != nil && game.StorageGB != nil && *game.StorageGB > 0 {
		if *game.StorageGB > *specs.StorageGB {
			return false
		}
	}

	return true
}

// Explain evaluates the explanation rules in priority order and keeps the
// first MaxExplanations that fire.
func Explain(game *models.GameRecord, breakdown models.ScoreBreakdown) []string {
	explanations := make([]string, 0, MaxExplanations)
	if game == nil {
		return explanations
	}

	switch {
	case breakdown.TagMatch > 0.7:
		explanations = append(explanations, ExplainPerfectMatch)
	case breakdown.TagMatch > 0.4:
		explanations = append(explanations, ExplainSomeMatch)
	}

	switch {
	case breakdown.PriceMatch > 0.8:
		explanations = append(explanations, ExplainGreatValue)
	case game.OriginalPrice == 0:
		explanations = append(explanations, ExplainFreeToPlay)
	}

	switch {
	case game.OverallSentiment > 0.8:
		explanations = append(explanations, ExplainHighlyRated)
	case game.OverallSentiment > 0.7:
		explanations = append(explanations, ExplainWellReceived)
	}

	if game.PopularityScore > 0.7 {
		explanations = append(explanations, ExplainPopular)
	}

	if len(explanations) > MaxExplanations {
		explanations = explanations[:MaxExplanations]
	}
	return explanations
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
