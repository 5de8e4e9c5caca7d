// Package recommender owns the in-memory catalog snapshot and serves the two
// recommendation entry points: preference scoring and similarity to a
// reference game.
package recommender

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/scorer"
	"game-recommendation-engine/internal/services/similarity"
	"game-recommendation-engine/internal/services/vectorizer"
	"game-recommendation-engine/internal/utils"
)

// MinPreferenceScore is the exclusive lower bound a total score must beat to
// be recommended.
const MinPreferenceScore = 0.3

// FallbackSimilarityScore is the placeholder score of a tag-overlap result.
const FallbackSimilarityScore = 0.5

// fallbackTagCount is how many of the query game's tags the fallback uses.
const fallbackTagCount = 3

// CatalogSource is the bulk read the orchestrator needs from the game store.
type CatalogSource interface {
	GetAll(ctx context.Context) ([]*models.GameRecord, error)
}

// Options tunes the orchestrator. Zero values take defaults.
type Options struct {
	MaxFeatures  int
	ChunkSize    int
	ScoreWorkers int
}

func (o Options) withDefaults() Options {
	if o.MaxFeatures <= 0 {
		o.MaxFeatures = vectorizer.DefaultMaxFeatures
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = 256
	}
	if o.ScoreWorkers <= 0 {
		o.ScoreWorkers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Service holds the current catalog snapshot. Readers load the snapshot
// pointer once per call and never see a half-built catalog; rebuilds are
// serialized and swap in a complete new snapshot.
type Service struct {
	source   CatalogSource
	opts     Options
	snapshot atomic.Pointer[Snapshot]
	rebuild  sync.Mutex
	logger   *zap.Logger
}

// NewService creates a recommender over source. Nothing is loaded until the
// first call that needs the catalog.
func NewService(source CatalogSource, opts Options) *Service {
	return &Service{
		source: source,
		opts:   opts.withDefaults(),
		logger: utils.Component("recommender"),
	}
}

// State reports the lifecycle stage of the current snapshot.
func (s *Service) State() State {
	return s.snapshot.Load().State()
}

// Snapshot returns the current snapshot, nil before the first load.
func (s *Service) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Load fetches the catalog from the store and swaps in a fresh snapshot
// without vectors. On failure the previous snapshot stays in place.
func (s *Service) Load(ctx context.Context) (int, error) {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	snap, err := s.fetch(ctx)
	if err != nil {
		return 0, err
	}
	s.snapshot.Store(snap)
	return snap.Len(), nil
}

// PrepareVectors builds the feature matrix over the current snapshot,
// loading the catalog first when needed. Calling it again rebuilds the
// matrix from the same snapshot.
func (s *Service) PrepareVectors(ctx context.Context) (int, error) {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	snap := s.snapshot.Load()
	if snap == nil {
		var err error
		if snap, err = s.fetch(ctx); err != nil {
			return 0, err
		}
	}

	next := s.vectorize(snap)
	s.snapshot.Store(next)
	return next.Dimensions(), nil
}

// Reload fetches the catalog and builds its matrix, then swaps both in at
// once. It returns the game count and feature dimensions.
func (s *Service) Reload(ctx context.Context) (int, int, error) {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	snap, err := s.fetch(ctx)
	if err != nil {
		return 0, 0, err
	}
	next := s.vectorize(snap)
	s.snapshot.Store(next)
	return next.Len(), next.Dimensions(), nil
}

// fetch reads the store and indexes titles. Must hold s.rebuild.
func (s *Service) fetch(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	records, err := s.source.GetAll(ctx)
	if err != nil {
		s.logger.Error("Failed to load catalog", utils.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrCatalogUnavailable, err)
	}

	games := make([]*models.GameRecord, 0, len(records))
	index := make(map[string]int, len(records))
	for _, g := range records {
		if g == nil {
			continue
		}
		key := models.TitleKey(g.Title)
		if _, dup := index[key]; dup {
			s.logger.Warn("Duplicate title in catalog, keeping first", utils.String("title", g.Title))
			continue
		}
		index[key] = len(games)
		games = append(games, g)
	}

	s.logger.Info("Catalog loaded",
		utils.Int("games", len(games)),
		utils.Int("dropped", len(records)-len(games)),
		utils.Duration("elapsed", time.Since(start)),
	)

	return newSnapshot(games, index), nil
}

func (s *Service) vectorize(snap *Snapshot) *Snapshot {
	start := time.Now()
	m := vectorizer.FitGames(snap.games, s.opts.MaxFeatures)

	s.logger.Info("Feature vectors prepared",
		utils.Int("games", m.Rows()),
		utils.Int("dimensions", m.Dimensions()),
		utils.Duration("elapsed", time.Since(start)),
	)
	return snap.withMatrix(m)
}

func (s *Service) ensureLoaded(ctx context.Context) (*Snapshot, error) {
	if snap := s.snapshot.Load(); snap != nil {
		return snap, nil
	}

	s.rebuild.Lock()
	defer s.rebuild.Unlock()
	if snap := s.snapshot.Load(); snap != nil {
		return snap, nil
	}

	snap, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.snapshot.Store(snap)
	return snap, nil
}

func (s *Service) ensureVectors(ctx context.Context) (*Snapshot, error) {
	if snap := s.snapshot.Load(); snap.State() == StateVectorsReady {
		return snap, nil
	}

	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	snap := s.snapshot.Load()
	if snap.State() == StateVectorsReady {
		return snap, nil
	}
	if snap == nil {
		var err error
		if snap, err = s.fetch(ctx); err != nil {
			return nil, err
		}
	}

	next := s.vectorize(snap)
	s.snapshot.Store(next)
	return next, nil
}

type scoredGame struct {
	index     int
	breakdown models.ScoreBreakdown
}

// RecommendByPreferences scores every game against profile and returns the
// best limit games whose total score exceeds MinPreferenceScore, highest
// first, ties in catalog order. A nil profile means the default profile.
func (s *Service) RecommendByPreferences(ctx context.Context, profile *models.UserPreferenceProfile, limit int) ([]models.PreferenceRecommendation, error) {
	p := models.DefaultPreferenceProfile()
	if profile != nil {
		p = *profile
		if p.SystemSpecs != nil {
			specs := *p.SystemSpecs
			p.SystemSpecs = &specs
		}
	}
	p.Normalize()
	if err := models.ValidatePreferenceProfile(&p); err != nil {
		return nil, err
	}

	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]models.PreferenceRecommendation, 0)
	if limit <= 0 || snap.Len() == 0 {
		return results, nil
	}

	breakdowns, err := s.scoreAll(ctx, snap.games, &p)
	if err != nil {
		return nil, err
	}

	passed := make([]scoredGame, 0, len(breakdowns))
	for i, b := range breakdowns {
		if b.TotalScore > MinPreferenceScore {
			passed = append(passed, scoredGame{index: i, breakdown: b})
		}
	}

	sort.SliceStable(passed, func(i, j int) bool {
		return passed[i].breakdown.TotalScore > passed[j].breakdown.TotalScore
	})
	if len(passed) > limit {
		passed = passed[:limit]
	}

	for _, sg := range passed {
		game := snap.games[sg.index]
		results = append(results, models.PreferenceRecommendation{
			Game:         game,
			Breakdown:    sg.breakdown,
			Explanations: scorer.Explain(game, sg.breakdown),
		})
	}

	s.logger.Debug("Preference recommendations computed",
		utils.Int("catalog", snap.Len()),
		utils.Int("returned", len(results)),
	)

	return results, nil
}

// scoreAll computes one breakdown per game, fanning fixed-size chunks out
// over a bounded worker group. Each chunk writes a disjoint range of the
// result slice.
func (s *Service) scoreAll(ctx context.Context, games []*models.GameRecord, profile *models.UserPreferenceProfile) ([]models.ScoreBreakdown, error) {
	breakdowns := make([]models.ScoreBreakdown, len(games))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ScoreWorkers)

	for start := 0; start < len(games); start += s.opts.ChunkSize {
		start := start
		end := min(start+s.opts.ChunkSize, len(games))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				breakdowns[i] = scorer.Score(games[i], profile)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to score catalog: %w", err)
	}
	return breakdowns, nil
}

// RecommendByGame returns up to limit games nearest to title in the feature
// space, self excluded. It returns models.ErrGameNotFound when the title is
// not in the catalog, and an empty list when the title exists but the
// feature space is empty.
func (s *Service) RecommendByGame(ctx context.Context, title string, limit int) ([]models.SimilarGame, error) {
	if strings.TrimSpace(title) == "" {
		return nil, models.ErrEmptyTitle
	}

	snap, err := s.ensureVectors(ctx)
	if err != nil {
		return nil, err
	}

	idx, ok := snap.Lookup(title)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrGameNotFound, title)
	}

	neighbors := similarity.TopNeighbors(snap.matrix, idx, limit)
	results := make([]models.SimilarGame, 0, len(neighbors))
	for _, n := range neighbors {
		results = append(results, models.SimilarGame{
			Game:            snap.games[n.Index],
			SimilarityScore: n.Score,
		})
	}
	return results, nil
}

// SimilarByTags is the degraded similarity mode: other games sharing at
// least one of the first three tags of title, in catalog order, each scored
// FallbackSimilarityScore.
func (s *Service) SimilarByTags(ctx context.Context, title string, limit int) ([]models.SimilarGame, error) {
	if strings.TrimSpace(title) == "" {
		return nil, models.ErrEmptyTitle
	}

	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	idx, ok := snap.Lookup(title)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrGameNotFound, title)
	}

	query := snap.games[idx]
	tags := query.Tags
	if len(tags) > fallbackTagCount {
		tags = tags[:fallbackTagCount]
	}

	results := make([]models.SimilarGame, 0)
	if limit <= 0 || len(tags) == 0 {
		return results, nil
	}

	for i, game := range snap.games {
		if i == idx {
			continue
		}
		if !sharesAny(game, tags) {
			continue
		}
		results = append(results, models.SimilarGame{
			Game:            game,
			SimilarityScore: FallbackSimilarityScore,
			Fallback:        true,
		})
		if len(results) == limit {
			break
		}
	}

	s.logger.Info("Served tag-overlap fallback",
		utils.String("title", query.Title),
		utils.Strings("tags", tags),
		utils.Int("returned", len(results)),
	)
	return results, nil
}

// Similar runs RecommendByGame and, when it finds nothing for an existing
// title, falls back to SimilarByTags.
func (s *Service) Similar(ctx context.Context, title string, limit int) ([]models.SimilarGame, error) {
	results, err := s.RecommendByGame(ctx, title, limit)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 || limit <= 0 {
		return results, nil
	}
	return s.SimilarByTags(ctx, title, limit)
}

// HasGame reports whether title is in the catalog.
func (s *Service) HasGame(ctx context.Context, title string) (bool, error) {
	snap, err := s.ensureLoaded(ctx)
	if err != nil {
		return false, err
	}
	_, ok := snap.Lookup(title)
	return ok, nil
}

func sharesAny(game *models.GameRecord, tags []string) bool {
	for _, t := range tags {
		if game.HasTag(t) {
			return true
		}
	}
	return false
}
