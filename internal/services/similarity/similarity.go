// Package similarity ranks catalog neighbors by cosine similarity over the
// TF-IDF feature space.
package similarity

import (
	"math"
	"sort"

	"game-recommendation-engine/internal/services/vectorizer"
)

// Neighbor is a catalog row and its similarity to the query row.
type Neighbor struct {
	Index int
	Score float64
}

// Cosine returns the cosine similarity of a and b, or 0 when the vectors
// differ in length or either has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopNeighbors scores every row of m against row query and returns the best
// topN, highest first. The query row itself is never returned and equal
// scores keep catalog order. Scores are not rounded.
func TopNeighbors(m *vectorizer.Matrix, query, topN int) []Neighbor {
	neighbors := make([]Neighbor, 0)
	if m == nil || m.Dimensions() == 0 || topN <= 0 || query < 0 || query >= m.Rows() {
		return neighbors
	}

	q := m.Row(query)
	for i := 0; i < m.Rows(); i++ {
		if i == query {
			continue
		}
		neighbors = append(neighbors, Neighbor{Index: i, Score: Cosine(q, m.Row(i))})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Score > neighbors[j].Score
	})

	if len(neighbors) > topN {
		neighbors = neighbors[:topN]
	}
	return neighbors
}
