package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/ingest"
	"game-recommendation-engine/internal/services/recommender"
	s3service "game-recommendation-engine/internal/services/s3"
	"game-recommendation-engine/internal/utils"
)

const (
	maxUploadBytes = 10 << 20

	defaultRecommendLimit = 10
	maxRecommendLimit     = 50
	defaultSimilarLimit   = 5
	maxSimilarLimit       = 20
	defaultPageLimit      = 20
	maxPageLimit          = 100
	defaultSearchLimit    = 20
	maxSearchLimit        = 50
	minSearchLength       = 2
	statsTopTags          = 15
	defaultTagLimit       = 50
	maxTagLimit           = 100

	presignExpiryMinutes = 60

	noMatchesMessage = "No games match your preferences. Try relaxing your criteria."
)

// CatalogStore is everything the API reads from and writes to the game store.
type CatalogStore interface {
	recommender.CatalogSource
	ingest.Store
	HealthCheck(ctx context.Context) error
	Stats(ctx context.Context, topTags int) (*models.CatalogStats, error)
	DistinctTags(ctx context.Context) ([]string, error)
	DistinctCategories(ctx context.Context) ([]string, error)
	List(ctx context.Context, opts models.ListOptions) ([]*models.GameRecord, int, error)
	Search(ctx context.Context, query string, limit int) ([]*models.GameRecord, error)
	Filter(ctx context.Context, f models.GameFilter) ([]*models.GameRecord, error)
}

// URLPresigner issues presigned catalog upload URLs.
type URLPresigner interface {
	GeneratePresignedUploadURL(ctx context.Context, key, contentType string, expiryMinutes int) (*s3service.PresignedURLResult, error)
}

// Server holds all dependencies
type Server struct {
	store       CatalogStore
	recommender *recommender.Service
	ingester    *ingest.Service
	presigner   URLPresigner
	version     string
	logger      *zap.Logger
}

// NewServer wires the recommender and ingest service over store. presigner
// may be nil when S3 uploads are not configured.
func NewServer(store CatalogStore, opts recommender.Options, presigner URLPresigner) *Server {
	return &Server{
		store:       store,
		recommender: recommender.NewService(store, opts),
		ingester:    ingest.NewService(store),
		presigner:   presigner,
		version:     getEnvOrDefault("SERVICE_VERSION", "2.0.0"),
		logger:      utils.Component("server"),
	}
}

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RecommendRequest is the body of a preference recommendation request.
type RecommendRequest struct {
	Preferences *models.UserPreferenceProfile `json:"preferences"`
	Limit       int                           `json:"limit"`
}

// RecommendationView is one preference recommendation as returned by the API.
type RecommendationView struct {
	models.GameSummary
	Score        float64               `json:"score"`
	Explanations []string              `json:"explanations"`
	Breakdown    models.ScoreBreakdown `json:"score_breakdown"`
}

// SimilarGameView is one similarity result as returned by the API.
type SimilarGameView struct {
	models.GameSummary
	SimilarityScore float64 `json:"similarity_score"`
	Fallback        bool    `json:"fallback,omitempty"`
}

// PresignedURLRequest represents the request for presigned URL
type PresignedURLRequest struct {
	Filename string `json:"filename"`
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/health", s.healthHandler)

	mux.HandleFunc("POST /api/recommend/preferences", s.recommendPreferencesHandler)
	mux.HandleFunc("GET /api/recommend/similar/{title}", s.recommendSimilarHandler)

	mux.HandleFunc("POST /api/catalog/reload", s.reloadHandler)
	mux.HandleFunc("POST /api/upload", s.uploadHandler)
	mux.HandleFunc("POST /api/presigned-url", s.presignedURLHandler)

	mux.HandleFunc("GET /api/games", s.listGamesHandler)
	mux.HandleFunc("GET /api/games/search", s.searchGamesHandler)
	mux.HandleFunc("POST /api/games/filter", s.filterGamesHandler)

	mux.HandleFunc("GET /api/stats", s.statsHandler)
	mux.HandleFunc("GET /api/tags", s.tagsHandler)
	mux.HandleFunc("GET /api/categories", s.categoriesHandler)

	return mux
}

// Warm loads the catalog and builds its vectors. A failure leaves the
// server running without a catalog until the next reload.
func (s *Server) Warm(ctx context.Context) {
	games, dims, err := s.recommender.Reload(ctx)
	if err != nil {
		s.logger.Warn("Catalog not loaded at startup, serving in degraded mode", utils.Error(err))
		return
	}
	s.logger.Info("Recommendation system ready",
		utils.Int("games", games),
		utils.Int("dimensions", dims),
	)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "connected"
	if err := s.store.HealthCheck(r.Context()); err != nil {
		status = "degraded"
		dbStatus = "disconnected"
	}

	snap := s.recommender.Snapshot()
	if snap.State() == recommender.StateUnloaded {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Game Recommendation API is running",
		Data: map[string]any{
			"status":       status,
			"database":     dbStatus,
			"games_loaded": snap.Len(),
			"dimensions":   snap.Dimensions(),
			"state":        snap.State().String(),
			"timestamp":    time.Now().UTC().Format(time.RFC3339),
			"version":      s.version,
		},
	})
}

func (s *Server) recommendPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	profile := models.DefaultPreferenceProfile()
	req := RecommendRequest{Preferences: &profile, Limit: defaultRecommendLimit}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Limit < 1 || req.Limit > maxRecommendLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxRecommendLimit))
		return
	}

	recs, err := s.recommender.RecommendByPreferences(r.Context(), req.Preferences, req.Limit)
	if err != nil {
		s.failure(w, err, "Recommendation error")
		return
	}

	views := make([]RecommendationView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, RecommendationView{
			GameSummary:  rec.Game.ToSummary(),
			Score:        round3(rec.Breakdown.TotalScore),
			Explanations: rec.Explanations,
			Breakdown:    rec.Breakdown,
		})
	}

	resp := Response{
		Success: true,
		Data: map[string]any{
			"recommendations":  views,
			"count":            len(views),
			"preferences_used": req.Preferences,
		},
	}
	if len(views) == 0 {
		resp.Message = noMatchesMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recommendSimilarHandler(w http.ResponseWriter, r *http.Request) {
	title := r.PathValue("title")
	limit, ok := intParam(w, r, "limit", defaultSimilarLimit, 1, maxSimilarLimit)
	if !ok {
		return
	}

	similar, err := s.recommender.Similar(r.Context(), title, limit)
	if err != nil {
		s.failure(w, err, "Error finding similar games")
		return
	}

	views := make([]SimilarGameView, 0, len(similar))
	for _, sg := range similar {
		views = append(views, SimilarGameView{
			GameSummary:     sg.Game.ToSummary(),
			SimilarityScore: round3(sg.SimilarityScore),
			Fallback:        sg.Fallback,
		})
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"source_game":     title,
			"recommendations": views,
			"count":           len(views),
		},
	})
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	games, dims, err := s.recommender.Reload(r.Context())
	if err != nil {
		s.failure(w, err, "Failed to reload catalog")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Catalog reloaded",
		Data: map[string]any{
			"games_loaded": games,
			"dimensions":   dims,
			"state":        s.recommender.State().String(),
		},
	})
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "Only CSV files are accepted")
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	appendMode, _ := strconv.ParseBool(r.FormValue("append"))

	s.logger.Info("Catalog upload received",
		utils.String("filename", header.Filename),
		utils.Int64("size", header.Size),
		utils.Bool("append", appendMode),
	)

	result, err := s.ingester.Ingest(r.Context(), content, ingest.Options{
		Source: header.Filename,
		Append: appendMode,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, models.ErrCatalogUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, Response{
			Success: false,
			Error:   err.Error(),
			Data:    result,
		})
		return
	}

	data := map[string]any{"ingest": result}
	message := "Catalog ingested"
	games, dims, err := s.recommender.Reload(r.Context())
	if err != nil {
		s.logger.Error("Failed to reload catalog after upload", utils.Error(err))
		message = "Catalog ingested but reload failed"
		data["reload_error"] = err.Error()
	} else {
		data["games_loaded"] = games
		data["dimensions"] = dims
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (s *Server) presignedURLHandler(w http.ResponseWriter, r *http.Request) {
	if s.presigner == nil {
		writeError(w, http.StatusServiceUnavailable, "S3 uploads are not configured")
		return
	}

	var req PresignedURLRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Filename == "" {
		req.Filename = "catalog.csv"
	}
	if !strings.EqualFold(filepath.Ext(req.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "Only CSV files are accepted")
		return
	}

	key := s3service.UploadKey(req.Filename, time.Now())
	result, err := s.presigner.GeneratePresignedUploadURL(r.Context(), key, "text/csv", presignExpiryMinutes)
	if err != nil {
		s.logger.Error("Failed to generate presigned URL", utils.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to generate upload URL")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"url":        result.URL,
			"key":        result.Key,
			"expires_in": presignExpiryMinutes * 60,
		},
	})
}

func (s *Server) listGamesHandler(w http.ResponseWriter, r *http.Request) {
	page, ok := intParam(w, r, "page", 1, 1, math.MaxInt32)
	if !ok {
		return
	}
	limit, ok := intParam(w, r, "limit", defaultPageLimit, 1, maxPageLimit)
	if !ok {
		return
	}

	sortBy := models.SortByPopularity
	if v := r.URL.Query().Get("sort_by"); v != "" {
		sortBy = models.GameSortField(v)
		if !sortBy.IsValid() {
			writeError(w, http.StatusBadRequest, "Unsupported sort_by: "+v)
			return
		}
	}

	descending := true
	switch r.URL.Query().Get("sort_order") {
	case "", "-1", "desc":
	case "1", "asc":
		descending = false
	default:
		writeError(w, http.StatusBadRequest, "sort_order must be 1 or -1")
		return
	}

	games, total, err := s.store.List(r.Context(), models.ListOptions{
		Page:       page,
		Limit:      limit,
		SortBy:     sortBy,
		Descending: descending,
	})
	if err != nil {
		s.failure(w, err, "Failed to list games")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": (total + limit - 1) / limit,
			"games":       summaries(games),
		},
	})
}

func (s *Server) searchGamesHandler(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(q)) < minSearchLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("q must be at least %d characters", minSearchLength))
		return
	}
	limit, ok := intParam(w, r, "limit", defaultSearchLimit, 1, maxSearchLimit)
	if !ok {
		return
	}

	games, err := s.store.Search(r.Context(), q, limit)
	if err != nil {
		s.failure(w, err, "Failed to search games")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"query": q,
			"count": len(games),
			"games": summaries(games),
		},
	})
}

func (s *Server) filterGamesHandler(w http.ResponseWriter, r *http.Request) {
	filter := models.DefaultGameFilter()
	if err := decodeBody(r, &filter); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	filter.Normalize()

	switch {
	case filter.MinPrice < 0 || filter.MaxPrice < filter.MinPrice:
		writeError(w, http.StatusBadRequest, "price range is invalid")
		return
	case filter.MinSentiment < 0 || filter.MinSentiment > 1:
		writeError(w, http.StatusBadRequest, models.ErrInvalidMinSentiment.Error())
		return
	case filter.MinPopularity < 0 || filter.MinPopularity > 1:
		writeError(w, http.StatusBadRequest, models.ErrInvalidMinPopularity.Error())
		return
	case filter.Limit < 1 || filter.Limit > maxPageLimit:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxPageLimit))
		return
	}

	games, err := s.store.Filter(r.Context(), filter)
	if err != nil {
		s.failure(w, err, "Failed to filter games")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"filters": filter,
			"count":   len(games),
			"games":   summaries(games),
		},
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context(), statsTopTags)
	if err != nil {
		s.failure(w, err, "Failed to compute catalog statistics")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: stats})
}

func (s *Server) tagsHandler(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultTagLimit, 1, maxTagLimit)
	if !ok {
		return
	}

	tags, err := s.store.DistinctTags(r.Context())
	if err != nil {
		s.failure(w, err, "Failed to list tags")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"tags":  tags[:min(limit, len(tags))],
			"count": len(tags),
		},
	})
}

func (s *Server) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.DistinctCategories(r.Context())
	if err != nil {
		s.failure(w, err, "Failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]any{
			"categories": categories,
			"count":      len(categories),
		},
	})
}

// failure maps err to a status code and writes it, logging anything that is
// not the caller's fault.
func (s *Server) failure(w http.ResponseWriter, err error, action string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(action, utils.Error(err))
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = fmt.Sprintf("%s: %v", action, err)
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrGameNotFound):
		return http.StatusNotFound
	case models.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// intParam reads an integer query parameter, writing a 400 and returning
// false when it is malformed or outside [lo, hi].
func intParam(w http.ResponseWriter, r *http.Request, name string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < lo || v > hi {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be an integer between %d and %d", name, lo, hi))
		return 0, false
	}
	return v, true
}

func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func summaries(games []*models.GameRecord) []models.GameSummary {
	out := make([]models.GameSummary, 0, len(games))
	for _, g := range games {
		out = append(out, g.ToSummary())
	}
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
