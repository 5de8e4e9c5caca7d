// Package models defines the data structures for the game recommendation engine.
package models

// ScoreBreakdown holds the five component scores of a preference match and
// their weighted total. Each component is in [0,1].
type ScoreBreakdown struct {
	TagMatch        float64 `json:"tag_match"`
	PriceMatch      float64 `json:"price_match"`
	SystemMatch     float64 `json:"system_match"`
	SentimentScore  float64 `json:"sentiment_score"`
	PopularityScore float64 `json:"popularity_score"`
	TotalScore      float64 `json:"total_score"`
}

// PreferenceRecommendation is one ranked result of a preference query.
type PreferenceRecommendation struct {
	Game         *GameRecord    `json:"game"`
	Breakdown    ScoreBreakdown `json:"score_breakdown"`
	Explanations []string       `json:"explanations"`
}

// SimilarGame is one ranked result of a similarity query.
type SimilarGame struct {
	Game            *GameRecord `json:"game"`
	SimilarityScore float64     `json:"similarity_score"`
	// Fallback is set when the result came from tag overlap rather than the
	// vector space.
	Fallback bool `json:"fallback,omitempty"`
}
