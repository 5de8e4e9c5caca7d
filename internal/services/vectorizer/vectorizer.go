// Package vectorizer builds the shared TF-IDF feature space the similarity
// engine ranks games in.
package vectorizer

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"game-recommendation-engine/internal/models"
)

// DefaultMaxFeatures caps the vocabulary size.
const DefaultMaxFeatures = 1000

// tokenPattern matches runs of two or more word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Matrix is an immutable document-term matrix with L2-normalized rows.
type Matrix struct {
	vocabulary []string
	index      map[string]int
	idf        []float64
	rows       [][]float64
}

// Document builds the bag-of-terms text for one game: tags, categories,
// features and description keywords, plus synthetic os_, gpu_, cpu_ and
// price_ tokens when the game carries them.
func Document(game *models.GameRecord) string {
	if game == nil {
		return ""
	}

	parts := make([]string, 0, len(game.Tags)+len(game.Categories)+len(game.Features)+len(game.DescriptionKeywords)+4)
	parts = append(parts, game.Tags...)
	parts = append(parts, game.Categories...)
	parts = append(parts, game.Features...)
	parts = append(parts, game.DescriptionKeywords...)

	if game.OSType != nil {
		parts = append(parts, "os_"+string(*game.OSType))
	}
	if game.GPUBrand != nil {
		parts = append(parts, "gpu_"+string(*game.GPUBrand))
	}
	if game.CPUBrand != nil {
		parts = append(parts, "cpu_"+string(*game.CPUBrand))
	}
	if game.PriceCategory != "" {
		parts = append(parts, "price_"+string(game.PriceCategory))
	}

	return strings.Join(parts, " ")
}

// Tokenize lowercases a document and splits it into terms.
func Tokenize(doc string) []string {
	return tokenPattern.FindAllString(strings.ToLower(doc), -1)
}

// Fit computes TF-IDF vectors for documents. Term weights are raw counts
// times the smoothed inverse document frequency ln((1+n)/(1+df))+1, and each
// row is scaled to unit length. When the corpus has more than maxFeatures
// distinct terms only the most frequent are kept, ties broken alphabetically.
// Columns are ordered alphabetically. A non-positive maxFeatures keeps every
// term.
func Fit(documents []string, maxFeatures int) *Matrix {
	counts := make([]map[string]int, len(documents))
	totals := make(map[string]int)
	docFreq := make(map[string]int)

	for i, doc := range documents {
		tf := make(map[string]int)
		for _, term := range Tokenize(doc) {
			tf[term]++
			totals[term]++
		}
		for term := range tf {
			docFreq[term]++
		}
		counts[i] = tf
	}

	vocabulary := selectVocabulary(totals, maxFeatures)
	index := make(map[string]int, len(vocabulary))
	for i, term := range vocabulary {
		index[term] = i
	}

	n := float64(len(documents))
	idf := make([]float64, len(vocabulary))
	for i, term := range vocabulary {
		idf[i] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	rows := make([][]float64, len(documents))
	for i, tf := range counts {
		row := make([]float64, len(vocabulary))
		for term, c := range tf {
			if j, ok := index[term]; ok {
				row[j] = float64(c) * idf[j]
			}
		}
		normalize(row)
		rows[i] = row
	}

	return &Matrix{
		vocabulary: vocabulary,
		index:      index,
		idf:        idf,
		rows:       rows,
	}
}

// FitGames is Fit over the Document of each game, in catalog order.
func FitGames(games []*models.GameRecord, maxFeatures int) *Matrix {
	docs := make([]string, len(games))
	for i, g := range games {
		docs[i] = Document(g)
	}
	return Fit(docs, maxFeatures)
}

func selectVocabulary(totals map[string]int, maxFeatures int) []string {
	terms := make([]string, 0, len(totals))
	for term := range totals {
		terms = append(terms, term)
	}

	if maxFeatures > 0 && len(terms) > maxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if totals[terms[i]] != totals[terms[j]] {
				return totals[terms[i]] > totals[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:maxFeatures]
	}

	sort.Strings(terms)
	return terms
}

func normalize(row []float64) {
	var sum float64
	for _, v := range row {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range row {
		row[i] /= norm
	}
}

// Dimensions returns the vocabulary size.
func (m *Matrix) Dimensions() int {
	if m == nil {
		return 0
	}
	return len(m.vocabulary)
}

// Rows returns the number of documents.
func (m *Matrix) Rows() int {
	if m == nil {
		return 0
	}
	return len(m.rows)
}

// Row returns the vector of document i. The slice is shared and must not be
// modified.
func (m *Matrix) Row(i int) []float64 {
	if m == nil || i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

// Vocabulary returns a copy of the column terms in column order.
func (m *Matrix) Vocabulary() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.vocabulary))
	copy(out, m.vocabulary)
	return out
}

// Column returns the column of term, or -1.
func (m *Matrix) Column(term string) int {
	if m == nil {
		return -1
	}
	if j, ok := m.index[term]; ok {
		return j
	}
	return -1
}

// IDF returns the inverse document frequency of column j.
func (m *Matrix) IDF(j int) float64 {
	if m == nil || j < 0 || j >= len(m.idf) {
		return 0
	}
	return m.idf[j]
}
