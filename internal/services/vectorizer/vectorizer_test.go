package vectorizer_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/vectorizer"
)

func rowNorm(row []float64) float64 {
	var sum float64
	for _, v := range row {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"co", "op", "story_rich", "42"}, vectorizer.Tokenize("Co-op Story_Rich a 42"))
	assert.Empty(t, vectorizer.Tokenize(""))
}

func TestDocument(t *testing.T) {
	os := models.OSWindows
	gpu := models.BrandNvidia
	game := &models.GameRecord{
		Tags:                []string{"rpg", "fantasy"},
		Categories:          []string{"rpg", "premium"},
		Features:            []string{"single-player"},
		DescriptionKeywords: []string{"dragons"},
		PriceCategory:       models.PriceCategoryPremium,
		HardwareSpec: models.HardwareSpec{
			OSType:   &os,
			GPUBrand: &gpu,
		},
	}

	assert.Equal(t,
		"rpg fantasy rpg premium single-player dragons os_windows gpu_nvidia price_premium",
		vectorizer.Document(game))
	assert.Equal(t, "", vectorizer.Document(nil))
}

func TestFit_IDFAndNormalization(t *testing.T) {
	docs := []string{"aa bb cc", "aa bb", "aa dd"}
	m := vectorizer.Fit(docs, 0)

	assert.Equal(t, []string{"aa", "bb", "cc", "dd"}, m.Vocabulary())
	assert.Equal(t, 4, m.Dimensions())
	assert.Equal(t, 3, m.Rows())

	assert.InDelta(t, 1.0, m.IDF(m.Column("aa")), 1e-12)
	assert.InDelta(t, math.Log(4.0/3.0)+1, m.IDF(m.Column("bb")), 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, m.IDF(m.Column("cc")), 1e-12)

	for i := 0; i < m.Rows(); i++ {
		assert.InDelta(t, 1.0, rowNorm(m.Row(i)), 1e-12)
	}

	// "aa dd": dd is rarer so it outweighs aa.
	row := m.Row(2)
	assert.Greater(t, row[m.Column("dd")], row[m.Column("aa")])
	assert.Equal(t, 0.0, row[m.Column("bb")])
}

func TestFit_RawCounts(t *testing.T) {
	m := vectorizer.Fit([]string{"aa aa bb", "bb"}, 0)
	row := m.Row(0)

	idfA := m.IDF(m.Column("aa"))
	idfB := m.IDF(m.Column("bb"))
	assert.InDelta(t, 2*idfA/idfB, row[m.Column("aa")]/row[m.Column("bb")], 1e-12)
}

func TestFit_VocabularyCap(t *testing.T) {
	docs := []string{"aa bb cc", "aa bb", "aa dd"}
	m := vectorizer.Fit(docs, 2)

	assert.Equal(t, []string{"aa", "bb"}, m.Vocabulary())
	assert.Equal(t, -1, m.Column("cc"))
	assert.Len(t, m.Row(0), 2)
}

func TestFit_VocabularyCapTiesAlphabetical(t *testing.T) {
	m := vectorizer.Fit([]string{"zz yy", "xx"}, 2)
	assert.Equal(t, []string{"xx", "yy"}, m.Vocabulary())
}

func TestFit_DefaultCap(t *testing.T) {
	docs := make([]string, 0, 1500)
	for i := 0; i < 1500; i++ {
		docs = append(docs, "term"+string(rune('a'+i%26))+string(rune('a'+(i/26)%26))+string(rune('a'+(i/676)%26)))
	}
	m := vectorizer.Fit(docs, vectorizer.DefaultMaxFeatures)
	assert.Equal(t, vectorizer.DefaultMaxFeatures, m.Dimensions())
}

func TestFit_Idempotent(t *testing.T) {
	docs := []string{"action shooter fps", "rpg fantasy dragons", "action rpg", "puzzle indie"}

	first := vectorizer.Fit(docs, 1000)
	second := vectorizer.Fit(docs, 1000)

	require.Equal(t, first.Vocabulary(), second.Vocabulary())
	for i := 0; i < first.Rows(); i++ {
		assert.Equal(t, first.Row(i), second.Row(i))
	}
}

func TestFit_EmptyDocuments(t *testing.T) {
	m := vectorizer.Fit([]string{"", "aa bb"}, 0)
	assert.Equal(t, 2, m.Dimensions())
	assert.Equal(t, 0.0, rowNorm(m.Row(0)))

	empty := vectorizer.Fit(nil, 0)
	assert.Equal(t, 0, empty.Dimensions())
	assert.Equal(t, 0, empty.Rows())
	assert.Nil(t, empty.Row(0))
}

func TestFitGames(t *testing.T) {
	games := []*models.GameRecord{
		{Tags: []string{"rpg"}, PriceCategory: models.PriceCategoryFree},
		{Tags: []string{"action"}, PriceCategory: models.PriceCategoryFree},
	}

	m := vectorizer.FitGames(games, 0)
	assert.Equal(t, []string{"action", "price_free", "rpg"}, m.Vocabulary())
	assert.Equal(t, 2, m.Rows())
}
