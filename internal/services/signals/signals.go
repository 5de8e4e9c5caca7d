// Package signals turns raw catalog strings (prices, review summaries,
// requirement blocks, free text) into normalized numeric and categorical
// signals. Every function here is pure and resolves unparsable input to a
// neutral default instead of failing.
package signals

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"game-recommendation-engine/internal/models"
)

// NeutralSentiment is returned when no sentiment can be read from a summary.
const NeutralSentiment = 0.5

// Defaults for ExtractKeywords.
const (
	DefaultKeywordMinLength = 4
	DefaultKeywordLimit     = 20
)

// MaxRequirementsLength caps the raw requirement text kept on a record.
const MaxRequirementsLength = 500

var (
	digitsPattern      = regexp.MustCompile(`\d+`)
	percentPattern     = regexp.MustCompile(`(\d+)%`)
	yearPattern        = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	punctuationPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// sentimentRule maps a review-summary phrase to a sentiment score.
type sentimentRule struct {
	phrase string
	score  float64
}

// sentimentLadder is evaluated top to bottom and the first contained phrase
// wins. The order is intentional: "mostly positive" must precede "positive".
// "negative" precedes "overwhelmingly negative", so "Overwhelmingly Negative"
// scores 0.25 and the last rule is unreachable.
var sentimentLadder = []sentimentRule{
	{"overwhelmingly positive", 0.95},
	{"very positive", 0.85},
	{"mostly positive", 0.70},
	{"positive", 0.75},
	{"mixed", 0.50},
	{"mostly negative", 0.35},
	{"negative", 0.25},
	{"overwhelmingly negative", 0.10},
}

// sentimentThresholds partitions [0,1]; a score belongs to the first bucket
// whose floor it reaches.
var sentimentThresholds = []struct {
	floor    float64
	category models.SentimentCategory
}{
	{0.95, models.SentimentOverwhelminglyPositive},
	{0.80, models.SentimentVeryPositive},
	{0.70, models.SentimentMostlyPositive},
	{0.60, models.SentimentPositive},
	{0.40, models.SentimentMixed},
	{0.30, models.SentimentMostlyNegative},
	{0.20, models.SentimentNegative},
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "your": {}, "you": {}, "are": {}, "can": {}, "will": {},
	"this": {}, "that": {}, "from": {}, "have": {}, "has": {}, "was": {}, "were": {}, "been": {},
	"their": {}, "they": {}, "them": {}, "there": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "how": {}, "into": {}, "through": {}, "about": {}, "after": {}, "before": {}, "other": {},
}

// ParsePrice extracts a numeric price. "Free", empty and unparsable text all
// yield 0.
func ParsePrice(text string) float64 {
	s := strings.ReplaceAll(text, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "free") {
		return 0
	}

	price, err := strconv.ParseFloat(s, 64)
	if err != nil || price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0
	}
	return price
}

// ParseReviewCount returns the first run of digits in text, after removing
// thousands separators.
func ParseReviewCount(text string) int {
	match := digitsPattern.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt
	}
	if err != nil {
		return 0
	}
	return n
}

// ParseSentiment reads a [0,1] sentiment score from a review summary such as
// "Very Positive - 80% of the 701,597 user reviews". A percentage wins over
// the keyword ladder.
func ParseSentiment(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return NeutralSentiment
	}

	if m := percentPattern.FindStringSubmatch(text); m != nil {
		pct, err := strconv.Atoi(m[1])
		if err == nil {
			return clamp01(float64(pct) / 100)
		}
	}

	lower := strings.ToLower(text)
	for _, rule := range sentimentLadder {
		if strings.Contains(lower, rule.phrase) {
			return rule.score
		}
	}
	return NeutralSentiment
}

// SentimentCategoryFor buckets a sentiment score.
func SentimentCategoryFor(score float64) models.SentimentCategory {
	for _, t := range sentimentThresholds {
		if score >= t.floor {
			return t.category
		}
	}
	return models.SentimentOverwhelminglyNegative
}

// ParseListField parses a bracketed, quoted, comma-separated list such as
// "['Action', 'Co-op']" into a lowercase set in first-seen order.
func ParseListField(text string) []string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("'", "", `"`, "").Replace(s)

	items := make([]string, 0)
	seen := make(map[string]struct{})
	for _, part := range strings.Split(s, ",") {
		item := strings.ToLower(strings.TrimSpace(part))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		items = append(items, item)
	}
	return items
}

// ExtractKeywords returns up to limit distinct keywords of at least
// minLength characters, in first-seen order. Stop words and pure numbers are
// dropped.
func ExtractKeywords(text string, minLength, limit int) []string {
	keywords := make([]string, 0)
	if strings.TrimSpace(text) == "" || limit <= 0 {
		return keywords
	}

	cleaned := punctuationPattern.ReplaceAllString(strings.ToLower(text), " ")
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(cleaned) {
		if utf8.RuneCountInString(word) < minLength {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if isDigits(word) {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == limit {
			break
		}
	}
	return keywords
}

// ExtractYear returns the first 19xx or 20xx token in text.
func ExtractYear(text string) *int {
	match := yearPattern.FindString(text)
	if match == "" {
		return nil
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &year
}

// TruncateRequirements keeps the trimmed raw requirement text, capped at
// MaxRequirementsLength runes.
func TruncateRequirements(text string) string {
	s := strings.TrimSpace(text)
	if utf8.RuneCountInString(s) <= MaxRequirementsLength {
		return s
	}
	return string([]rune(s)[:MaxRequirementsLength])
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
