// Package models defines the data structures for the game recommendation engine.
package models

import (
	"errors"
	"strings"
)

// Common errors
var (
	ErrGameNotFound         = errors.New("game not found")
	ErrCatalogUnavailable   = errors.New("catalog store unavailable")
	ErrEmptyTitle           = errors.New("title cannot be empty")
	ErrInvalidMaxPrice      = errors.New("max_price cannot be negative")
	ErrInvalidMinSentiment  = errors.New("min_sentiment must be between 0 and 1")
	ErrInvalidMinPopularity = errors.New("min_popularity must be between 0 and 1")
	ErrInvalidOSType        = errors.New("os_type must be one of windows, mac, linux")
)

// TitleKey returns the lookup key for a title.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// IsValidationError reports whether err is caused by invalid user input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidMaxPrice) ||
		errors.Is(err, ErrInvalidMinSentiment) ||
		errors.Is(err, ErrInvalidMinPopularity) ||
		errors.Is(err, ErrInvalidOSType) ||
		errors.Is(err, ErrEmptyTitle)
}
