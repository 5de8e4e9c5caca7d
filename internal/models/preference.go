// Package models defines the data structures for the game recommendation engine.
package models

import (
	"strings"
)

// Default preference values applied when a profile field is omitted.
const (
	DefaultMaxPrice      = 100.0
	DefaultMinSentiment  = 0.6
	DefaultMinPopularity = 0.3
)

// SystemSpecs is the partial hardware description a user can supply.
type SystemSpecs struct {
	MemoryGB  *int    `json:"memory_gb,omitempty"`
	OSType    *OSType `json:"os_type,omitempty"`
	StorageGB *int    `json:"storage_gb,omitempty"`
}

// IsEmpty reports whether no hardware field was supplied.
func (s *SystemSpecs) IsEmpty() bool {
	return s == nil || (s.MemoryGB == nil && s.OSType == nil && s.StorageGB == nil)
}

// UserPreferenceProfile holds the criteria a user scores candidate games with.
type UserPreferenceProfile struct {
	MaxPrice            float64      `json:"max_price"`
	PreferredTags       []string     `json:"preferred_tags"`
	PreferredCategories []string     `json:"preferred_categories"` // reserved, not scored
	MinSentiment        float64      `json:"min_sentiment"`
	MinPopularity       float64      `json:"min_popularity"`
	SystemSpecs         *SystemSpecs `json:"system_specs,omitempty"`
}

// DefaultPreferenceProfile returns a profile carrying every default value.
func DefaultPreferenceProfile() UserPreferenceProfile {
	return UserPreferenceProfile{
		MaxPrice:            DefaultMaxPrice,
		PreferredTags:       []string{},
		PreferredCategories: []string{},
		MinSentiment:        DefaultMinSentiment,
		MinPopularity:       DefaultMinPopularity,
	}
}

// Normalize lowercases and deduplicates the tag and category sets and
// lowercases the OS type.
func (p *UserPreferenceProfile) Normalize() {
	p.PreferredTags = normalizeSet(p.PreferredTags)
	p.PreferredCategories = normalizeSet(p.PreferredCategories)
	if p.SystemSpecs != nil && p.SystemSpecs.OSType != nil {
		os := OSType(strings.ToLower(strings.TrimSpace(string(*p.SystemSpecs.OSType))))
		p.SystemSpecs.OSType = &os
	}
}

// ValidatePreferenceProfile validates profile ranges.
func ValidatePreferenceProfile(p *UserPreferenceProfile) error {
	if p.MaxPrice < 0 {
		return ErrInvalidMaxPrice
	}
	if p.MinSentiment < 0 || p.MinSentiment > 1 {
		return ErrInvalidMinSentiment
	}
	if p.MinPopularity < 0 || p.MinPopularity > 1 {
		return ErrInvalidMinPopularity
	}
	if p.SystemSpecs != nil && p.SystemSpecs.OSType != nil && !p.SystemSpecs.OSType.IsValid() {
		return ErrInvalidOSType
	}
	return nil
}

func normalizeSet(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
