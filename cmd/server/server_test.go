package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/recommender"
	s3service "game-recommendation-engine/internal/services/s3"
)

type memStore struct {
	mu    sync.Mutex
	games []*models.GameRecord
}

func (m *memStore) HealthCheck(context.Context) error { return nil }

func (m *memStore) GetAll(context.Context) ([]*models.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.GameRecord(nil), m.games...), nil
}

func (m *memStore) ReplaceAll(_ context.Context, games []*models.GameRecord) (*models.BulkUpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append([]*models.GameRecord(nil), games...)
	return &models.BulkUpsertResult{InsertedCount: len(games)}, nil
}

func (m *memStore) BulkUpsert(ctx context.Context, games []*models.GameRecord) (*models.BulkUpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = append(m.games, games...)
	return &models.BulkUpsertResult{InsertedCount: len(games)}, nil
}

func (m *memStore) Stats(_ context.Context, topTags int) (*models.CatalogStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.CatalogStats{TotalGames: len(m.games), TopTags: []models.TagCount{}}, nil
}

func (m *memStore) DistinctTags(context.Context) ([]string, error) {
	return []string{"action", "indie", "puzzle", "rpg"}, nil
}

func (m *memStore) DistinctCategories(context.Context) ([]string, error) {
	return []string{"free", "multiplayer"}, nil
}

func (m *memStore) List(_ context.Context, opts models.ListOptions) ([]*models.GameRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := min((opts.Page-1)*opts.Limit, len(m.games))
	end := min(start+opts.Limit, len(m.games))
	return m.games[start:end], len(m.games), nil
}

func (m *memStore) Search(_ context.Context, query string, limit int) ([]*models.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.GameRecord
	for _, g := range m.games {
		if strings.Contains(g.TitleKey, strings.ToLower(query)) && len(out) < limit {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memStore) Filter(_ context.Context, f models.GameFilter) ([]*models.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.GameRecord
	for _, g := range m.games {
		if g.OriginalPrice >= f.MinPrice && g.OriginalPrice <= f.MaxPrice {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakePresigner struct{}

func (fakePresigner) GeneratePresignedUploadURL(_ context.Context, key, _ string, expiryMinutes int) (*s3service.PresignedURLResult, error) {
	return &s3service.PresignedURLResult{
		URL:       "https://bucket.example/" + key,
		Key:       key,
		ExpiresAt: time.Now().Add(time.Duration(expiryMinutes) * time.Minute),
	}, nil
}

func game(title string, tags []string, price, sentiment, popularity float64) *models.GameRecord {
	return &models.GameRecord{
		Title:            title,
		TitleKey:         models.TitleKey(title),
		Tags:             tags,
		Categories:       []string{},
		OriginalPrice:    price,
		OverallSentiment: sentiment,
		PopularityScore:  popularity,
	}
}

func catalog() []*models.GameRecord {
	return []*models.GameRecord{
		game("Hollow Depths", []string{"rpg", "indie"}, 0, 0.9, 0.8),
		game("Iron Assault", []string{"action"}, 10, 0.9, 0.8),
		game("Old Kingdoms", []string{"rpg"}, 30, 0.4, 0.1),
		game("Block Drop", []string{"puzzle"}, 30, 0.4, 0.1),
		game("Hollow Depths II", []string{"rpg", "indie"}, 0, 0.9, 0.8),
	}
}

func newTestServer(t *testing.T, store CatalogStore, presigner URLPresigner) http.Handler {
	t.Helper()
	s := NewServer(store, recommender.Options{}, presigner)
	s.Warm(context.Background())
	return s.Routes()
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func do(t *testing.T, h http.Handler, method, target, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name      string
		store     CatalogStore
		status    string
		database  string
		state     string
		gamesSeen int
	}{
		{"loaded", &memStore{games: catalog()}, "healthy", "connected", "vectors_ready", 5},
		{"degraded", unavailableStore{}, "degraded", "disconnected", "unloaded", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.store, nil)
			code, env := do(t, h, http.MethodGet, "/health", "")
			require.Equal(t, http.StatusOK, code)

			data := decodeData[map[string]any](t, env)
			assert.Equal(t, tt.status, data["status"])
			assert.Equal(t, tt.database, data["database"])
			assert.Equal(t, tt.state, data["state"])
			assert.EqualValues(t, tt.gamesSeen, data["games_loaded"])
		})
	}
}

type recommendData struct {
	Recommendations []RecommendationView `json:"recommendations"`
	Count           int                  `json:"count"`
}

func TestRecommendPreferences(t *testing.T) {
	h := newTestServer(t, &memStore{games: catalog()}, nil)

	body := `{"preferences": {"preferred_tags": ["RPG"], "max_price": 20, "min_sentiment": 0.5, "min_popularity": 0.3}, "limit": 2}`
	code, env := do(t, h, http.MethodPost, "/api/recommend/preferences", body)
	require.Equal(t, http.StatusOK, code, env.Error)

	data := decodeData[recommendData](t, env)
	require.Len(t, data.Recommendations, 2)
	assert.Equal(t, 2, data.Count)
	assert.Equal(t, "Hollow Depths", data.Recommendations[0].Title)
	assert.Equal(t, "Hollow Depths II", data.Recommendations[1].Title)
	assert.Equal(t, 0.815, data.Recommendations[0].Score)
	assert.Equal(t, 1.0, data.Recommendations[0].Breakdown.TagMatch)
	assert.NotEmpty(t, data.Recommendations[0].Explanations)
	assert.Empty(t, env.Message)
}

func TestRecommendPreferences_DefaultsApply(t *testing.T) {
	h := newTestServer(t, &memStore{games: catalog()}, nil)

	code, env := do(t, h, http.MethodPost, "/api/recommend/preferences", `{"preferences": {"preferred_tags": ["rpg"]}}`)
	require.Equal(t, http.StatusOK, code, env.Error)

	var data struct {
		PreferencesUsed models.UserPreferenceProfile `json:"preferences_used"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, models.DefaultMaxPrice, data.PreferencesUsed.MaxPrice)
	assert.Equal(t, models.DefaultMinSentiment, data.PreferencesUsed.MinSentiment)
}

func TestRecommendPreferences_NoMatches(t *testing.T) {
	h := newTestServer(t, &memStore{}, nil)

	code, env := do(t, h, http.MethodPost, "/api/recommend/preferences", `{}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, noMatchesMessage, env.Message)
	assert.Empty(t, decodeData[recommendData](t, env).Recommendations)
}

func TestRecommendPreferences_Errors(t *testing.T) {
	tests := []struct {
		name  string
		store CatalogStore
		body  string
		code  int
	}{
		{"malformed body", &memStore{}, `{"preferences":`, http.StatusBadRequest},
		{"limit zero", &memStore{}, `{"limit": 0}`, http.StatusBadRequest},
		{"limit too large", &memStore{}, `{"limit": 51}`, http.StatusBadRequest},
		{"sentiment out of range", &memStore{}, `{"preferences": {"min_sentiment": 1.5}}`, http.StatusBadRequest},
		{"negative price", &memStore{}, `{"preferences": {"max_price": -1}}`, http.StatusBadRequest},
		{"unknown os", &memStore{}, `{"preferences": {"system_specs": {"os_type": "amiga"}}}`, http.StatusBadRequest},
		{"store down", unavailableStore{}, `{}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.store, nil)
			code, env := do(t, h, http.MethodPost, "/api/recommend/preferences", tt.body)
			assert.Equal(t, tt.code, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestRecommendSimilar(t *testing.T) {
	h := newTestServer(t, &memStore{games: catalog()}, nil)

	code, env := do(t, h, http.MethodGet, "/api/recommend/similar/hollow%20depths?limit=1", "")
	require.Equal(t, http.StatusOK, code, env.Error)

	var data struct {
		SourceGame      string            `json:"source_game"`
		Recommendations []SimilarGameView `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "hollow depths", data.SourceGame)
	require.Len(t, data.Recommendations, 1)
	assert.Equal(t, "Hollow Depths II", data.Recommendations[0].Title)
	assert.InDelta(t, 1.0, data.Recommendations[0].SimilarityScore, 1e-9)
	assert.False(t, data.Recommendations[0].Fallback)
}

func TestRecommendSimilar_Errors(t *testing.T) {
	tests := []struct {
		name   string
		store  CatalogStore
		target string
		code   int
	}{
		{"unknown title", &memStore{games: catalog()}, "/api/recommend/similar/Nope", http.StatusNotFound},
		{"limit too large", &memStore{games: catalog()}, "/api/recommend/similar/Old%20Kingdoms?limit=21", http.StatusBadRequest},
		{"limit not a number", &memStore{games: catalog()}, "/api/recommend/similar/Old%20Kingdoms?limit=x", http.StatusBadRequest},
		{"store down", unavailableStore{}, "/api/recommend/similar/Old%20Kingdoms", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.store, nil)
			code, env := do(t, h, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.code, code)
			assert.False(t, env.Success)
		})
	}
}

func TestReload(t *testing.T) {
	store := &memStore{games: catalog()[:2]}
	h := newTestServer(t, store, nil)

	store.ReplaceAll(context.Background(), catalog())
	code, env := do(t, h, http.MethodPost, "/api/catalog/reload", "")
	require.Equal(t, http.StatusOK, code)

	data := decodeData[map[string]any](t, env)
	assert.EqualValues(t, 5, data["games_loaded"])
	assert.Equal(t, "vectors_ready", data["state"])
}

func multipartUpload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	store := &memStore{}
	h := newTestServer(t, store, nil)

	csvContent := "title,original_price,popular_tags,all_reviews_summary\n" +
		`Stardew Valley,$14.99,"['Farming Sim', 'Indie']",Overwhelmingly Positive` + "\n" +
		`Free Arena,Free to Play,"['Action', 'PvP']",Mixed` + "\n"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "catalog.csv", csvContent))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	data := decodeData[map[string]any](t, env)
	assert.EqualValues(t, 2, data["games_loaded"])
	assert.Equal(t, "Catalog ingested", env.Message)

	code, env := do(t, h, http.MethodGet, "/api/recommend/similar/stardew%20valley", "")
	assert.Equal(t, http.StatusOK, code, env.Error)
}

func TestUpload_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		store    CatalogStore
		filename string
		content  string
		code     int
	}{
		{"not csv", &memStore{}, "catalog.json", "{}", http.StatusBadRequest},
		{"no title column", &memStore{}, "catalog.csv", "price,tags\n$1,[]\n", http.StatusBadRequest},
		{"store down", unavailableStore{}, "catalog.csv", "title\nStardew Valley\n", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.store, nil)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, multipartUpload(t, tt.filename, tt.content))
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestPresignedURL(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newTestServer(t, &memStore{}, nil)
		code, _ := do(t, h, http.MethodPost, "/api/presigned-url", `{"filename": "games.csv"}`)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("issues upload key", func(t *testing.T) {
		h := newTestServer(t, &memStore{}, fakePresigner{})
		code, env := do(t, h, http.MethodPost, "/api/presigned-url", `{"filename": "games.csv"}`)
		require.Equal(t, http.StatusOK, code)

		data := decodeData[map[string]any](t, env)
		key, _ := data["key"].(string)
		assert.True(t, s3service.IsCatalogUpload(key), key)
		assert.True(t, strings.HasSuffix(key, "_games.csv"), key)
		assert.EqualValues(t, 3600, data["expires_in"])
	})

	t.Run("rejects non csv", func(t *testing.T) {
		h := newTestServer(t, &memStore{}, fakePresigner{})
		code, _ := do(t, h, http.MethodPost, "/api/presigned-url", `{"filename": "games.xlsx"}`)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestBrowseEndpoints(t *testing.T) {
	h := newTestServer(t, &memStore{games: catalog()}, nil)

	t.Run("list pages", func(t *testing.T) {
		code, env := do(t, h, http.MethodGet, "/api/games?page=2&limit=2&sort_by=original_price&sort_order=1", "")
		require.Equal(t, http.StatusOK, code, env.Error)

		var data struct {
			Total      int                  `json:"total"`
			TotalPages int                  `json:"total_pages"`
			Games      []models.GameSummary `json:"games"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, 5, data.Total)
		assert.Equal(t, 3, data.TotalPages)
		require.Len(t, data.Games, 2)
		assert.Equal(t, "Old Kingdoms", data.Games[0].Title)
	})

	t.Run("search", func(t *testing.T) {
		code, env := do(t, h, http.MethodGet, "/api/games/search?q=HOLLOW", "")
		require.Equal(t, http.StatusOK, code, env.Error)
		data := decodeData[map[string]any](t, env)
		assert.EqualValues(t, 2, data["count"])
	})

	t.Run("filter", func(t *testing.T) {
		code, env := do(t, h, http.MethodPost, "/api/games/filter", `{"max_price": 10}`)
		require.Equal(t, http.StatusOK, code, env.Error)
		data := decodeData[map[string]any](t, env)
		assert.EqualValues(t, 3, data["count"])
	})

	t.Run("tags truncated", func(t *testing.T) {
		code, env := do(t, h, http.MethodGet, "/api/tags?limit=2", "")
		require.Equal(t, http.StatusOK, code)
		var data struct {
			Tags  []string `json:"tags"`
			Count int      `json:"count"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, []string{"action", "indie"}, data.Tags)
		assert.Equal(t, 4, data.Count)
	})

	t.Run("categories", func(t *testing.T) {
		code, env := do(t, h, http.MethodGet, "/api/categories", "")
		require.Equal(t, http.StatusOK, code)
		data := decodeData[map[string]any](t, env)
		assert.EqualValues(t, 2, data["count"])
	})

	t.Run("stats", func(t *testing.T) {
		code, env := do(t, h, http.MethodGet, "/api/stats", "")
		require.Equal(t, http.StatusOK, code)
		stats := decodeData[models.CatalogStats](t, env)
		assert.Equal(t, 5, stats.TotalGames)
	})
}

func TestBrowseEndpoints_BadInput(t *testing.T) {
	h := newTestServer(t, &memStore{games: catalog()}, nil)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		code   int
	}{
		{"unknown sort field", http.MethodGet, "/api/games?sort_by=title", "", http.StatusBadRequest},
		{"bad sort order", http.MethodGet, "/api/games?sort_order=2", "", http.StatusBadRequest},
		{"page zero", http.MethodGet, "/api/games?page=0", "", http.StatusBadRequest},
		{"limit above page max", http.MethodGet, "/api/games?limit=101", "", http.StatusBadRequest},
		{"short query", http.MethodGet, "/api/games/search?q=a", "", http.StatusBadRequest},
		{"inverted price range", http.MethodPost, "/api/games/filter", `{"min_price": 20, "max_price": 10}`, http.StatusBadRequest},
		{"filter sentiment", http.MethodPost, "/api/games/filter", `{"min_sentiment": 2}`, http.StatusBadRequest},
		{"tag limit", http.MethodGet, "/api/tags?limit=0", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.code, code)
			assert.False(t, env.Success)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrGameNotFound, http.StatusNotFound},
		{models.ErrInvalidMaxPrice, http.StatusBadRequest},
		{models.ErrEmptyTitle, http.StatusBadRequest},
		{models.ErrCatalogUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
