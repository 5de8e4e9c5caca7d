package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"game-recommendation-engine/internal/models"
)

// CSVParser errors
var (
	ErrEmptyCSV       = errors.New("CSV content is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("CSV file contains no data rows")
)

// LineError ties a parse failure to its 1-based CSV line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// RequiredColumns defines the columns that must be present in the CSV.
var RequiredColumns = []string{
	"title",
}

// ColumnAliases maps the catalog export headers, and a few common variants,
// to standard names.
var ColumnAliases = map[string]string{
	"name":       "title",
	"game":       "title",
	"game title": "title",

	"original price": "original_price",
	"price":          "original_price",

	"discounted price": "discounted_price",
	"discount price":   "discounted_price",
	"sale price":       "discounted_price",

	"release date": "release_date",
	"released":     "release_date",

	"url":       "link",
	"store url": "link",

	"game description": "game_description",
	"description":      "game_description",

	"recent reviews summary": "recent_reviews_summary",
	"all reviews summary":    "all_reviews_summary",
	"recent reviews number":  "recent_reviews_number",
	"recent reviews count":   "recent_reviews_number",
	"all reviews number":     "all_reviews_number",
	"all reviews count":      "all_reviews_number",

	"supported languages": "supported_languages",
	"languages":           "supported_languages",

	"popular tags": "popular_tags",
	"tags":         "popular_tags",

	"game features": "game_features",
	"features":      "game_features",

	"minimum requirements": "minimum_requirements",
	"requirements":         "minimum_requirements",
	"system requirements":  "minimum_requirements",
}

// CatalogCSVParser handles parsing of game catalog CSV exports.
type CatalogCSVParser struct {
	columnMapping map[string]int
}

// NewCatalogCSVParser creates a new catalog parser instance.
func NewCatalogCSVParser() *CatalogCSVParser {
	return &CatalogCSVParser{
		columnMapping: make(map[string]int),
	}
}

// ParseGames parses CSV content into raw catalog rows. Rows that cannot be
// read, or that have no title, are reported as *LineError and skipped.
func (p *CatalogCSVParser) ParseGames(content string) ([]*models.RawGameRow, []error) {
	if strings.TrimSpace(content) == "" {
		return nil, []error{ErrEmptyCSV}
	}

	reader := newCatalogReader(content)

	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read header: %w", err)}
	}

	if err := p.buildColumnMapping(header); err != nil {
		return nil, []error{err}
	}

	var rows []*models.RawGameRow
	var parseErrors []error

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			parseErrors = append(parseErrors, &LineError{Line: line, Err: err})
			continue
		}
		line, _ := reader.FieldPos(0)

		row := p.parseRow(record)
		if strings.TrimSpace(row.Title) == "" {
			parseErrors = append(parseErrors, &LineError{Line: line, Err: models.ErrEmptyTitle})
			continue
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 && len(parseErrors) > 0 {
		return nil, append([]error{ErrNoDataRows}, parseErrors...)
	}

	return rows, parseErrors
}

func newCatalogReader(content string) *csv.Reader {
	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	return reader
}

// normalizeHeader maps a header cell to its standard column name.
func normalizeHeader(col string) string {
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
	if alias, ok := ColumnAliases[normalized]; ok {
		return alias
	}
	return strings.ReplaceAll(normalized, " ", "_")
}

// buildColumnMapping creates a mapping of standard column names to their indices.
func (p *CatalogCSVParser) buildColumnMapping(header []string) error {
	p.columnMapping = make(map[string]int)

	for i, col := range header {
		normalized := normalizeHeader(col)
		if _, exists := p.columnMapping[normalized]; exists {
			continue
		}
		p.columnMapping[normalized] = i
	}

	var missing []string
	for _, required := range RequiredColumns {
		if _, ok := p.columnMapping[required]; !ok {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return nil
}

// parseRow copies a CSV record into a raw row. Absent columns stay empty;
// interpreting the values is left to the features package.
func (p *CatalogCSVParser) parseRow(record []string) *models.RawGameRow {
	get := func(column string) string {
		idx, ok := p.columnMapping[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	return &models.RawGameRow{
		Title:                get("title"),
		OriginalPrice:        get("original_price"),
		DiscountedPrice:      get("discounted_price"),
		ReleaseDate:          get("release_date"),
		Link:                 get("link"),
		Description:          get("game_description"),
		RecentReviewsSummary: get("recent_reviews_summary"),
		AllReviewsSummary:    get("all_reviews_summary"),
		RecentReviewsNumber:  get("recent_reviews_number"),
		AllReviewsNumber:     get("all_reviews_number"),
		Developer:            get("developer"),
		Publisher:            get("publisher"),
		SupportedLanguages:   get("supported_languages"),
		PopularTags:          get("popular_tags"),
		GameFeatures:         get("game_features"),
		MinimumRequirements:  get("minimum_requirements"),
	}
}

// ValidateCSVStructure performs a quick validation of CSV structure without full parsing.
func ValidateCSVStructure(content string) (*CSVValidationResult, error) {
	result := &CSVValidationResult{
		Valid:          false,
		RowCount:       0,
		Columns:        []string{},
		MissingColumns: []string{},
		Errors:         []string{},
	}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, "empty file")
		return result, nil
	}

	reader := newCatalogReader(content)

	header, err := reader.Read()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read header: %v", err))
		return result, nil
	}

	normalizedColumns := make(map[string]bool)
	for _, col := range header {
		normalizedColumns[normalizeHeader(col)] = true
		result.Columns = append(result.Columns, col)
	}

	for _, required := range RequiredColumns {
		if !normalizedColumns[required] {
			result.MissingColumns = append(result.MissingColumns, required)
		}
	}

	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row error: %v", err))
			continue
		}
		result.RowCount++
	}

	result.Valid = len(result.MissingColumns) == 0 && result.RowCount > 0

	return result, nil
}

// CSVValidationResult contains the results of CSV validation.
type CSVValidationResult struct {
	Valid          bool     `json:"valid"`
	RowCount       int      `json:"row_count"`
	Columns        []string `json:"columns"`
	MissingColumns []string `json:"missing_columns"`
	Errors         []string `json:"errors"`
}
