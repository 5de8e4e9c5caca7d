package recommender_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/recommender"
)

type fakeSource struct {
	mu    sync.Mutex
	games []*models.GameRecord
	err   error
	calls int
}

func (f *fakeSource) GetAll(ctx context.Context) ([]*models.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.games, nil
}

func (f *fakeSource) set(games []*models.GameRecord, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.games = games
	f.err = err
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

func preferenceCatalog() []*models.GameRecord {
	return []*models.GameRecord{
		game("Hollow Depths", []string{"rpg", "indie"}, 0, 0.9, 0.8),   // 0.815
		game("Iron Assault", []string{"action"}, 10, 0.9, 0.8),         // 0.34
		game("Old Kingdoms", []string{"rpg"}, 30, 0.4, 0.1),            // 0.35
		game("Block Drop", []string{"puzzle"}, 30, 0.4, 0.1),           // 0
		game("Hollow Depths II", []string{"rpg", "indie"}, 0, 0.9, 0.8), // 0.815, tie
	}
}

func rpgProfile() *models.UserPreferenceProfile {
	return &models.UserPreferenceProfile{
		PreferredTags: []string{"RPG"},
		MaxPrice:      20,
		MinSentiment:  0.5,
		MinPopularity: 0.3,
	}
}

func titles(recs []models.PreferenceRecommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Game.Title
	}
	return out
}

func similarTitles(games []models.SimilarGame) []string {
	out := make([]string, len(games))
	for i, g := range games {
		out[i] = g.Game.Title
	}
	return out
}

func TestService_StateMachine(t *testing.T) {
	source := &fakeSource{games: preferenceCatalog()}
	svc := recommender.NewService(source, recommender.Options{})
	ctx := context.Background()

	assert.Equal(t, recommender.StateUnloaded, svc.State())
	assert.Nil(t, svc.Snapshot())

	count, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
	assert.Equal(t, recommender.StateLoaded, svc.State())
	assert.Equal(t, 0, svc.Snapshot().Dimensions())

	dims, err := svc.PrepareVectors(ctx)
	require.NoError(t, err)
	assert.Greater(t, dims, 0)
	assert.Equal(t, recommender.StateVectorsReady, svc.State())
	assert.Equal(t, 1, source.calls)
}

func TestService_PrepareVectorsAutoLoads(t *testing.T) {
	source := &fakeSource{games: preferenceCatalog()}
	svc := recommender.NewService(source, recommender.Options{})

	dims, err := svc.PrepareVectors(context.Background())
	require.NoError(t, err)
	assert.Greater(t, dims, 0)
	assert.Equal(t, recommender.StateVectorsReady, svc.State())
	assert.Equal(t, 1, source.calls)
}

func TestService_PrepareVectorsIdempotent(t *testing.T) {
	svc := recommender.NewService(&fakeSource{games: preferenceCatalog()}, recommender.Options{})
	ctx := context.Background()

	_, err := svc.PrepareVectors(ctx)
	require.NoError(t, err)
	first, err := svc.RecommendByGame(ctx, "Hollow Depths", 10)
	require.NoError(t, err)

	_, err = svc.PrepareVectors(ctx)
	require.NoError(t, err)
	second, err := svc.RecommendByGame(ctx, "Hollow Depths", 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestService_StoreFailure(t *testing.T) {
	cause := errors.New("connection refused")
	svc := recommender.NewService(&fakeSource{err: cause}, recommender.Options{})
	ctx := context.Background()

	_, err := svc.Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, recommender.StateUnloaded, svc.State())

	_, err = svc.RecommendByPreferences(ctx, rpgProfile(), 10)
	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)

	_, err = svc.RecommendByGame(ctx, "Hollow Depths", 5)
	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)

	_, err = svc.HasGame(ctx, "Hollow Depths")
	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)
}

func TestService_FailedReloadKeepsSnapshot(t *testing.T) {
	source := &fakeSource{games: preferenceCatalog()}
	svc := recommender.NewService(source, recommender.Options{})
	ctx := context.Background()

	_, _, err := svc.Reload(ctx)
	require.NoError(t, err)

	source.set(nil, errors.New("timeout"))
	_, _, err = svc.Reload(ctx)
	assert.ErrorIs(t, err, models.ErrCatalogUnavailable)

	assert.Equal(t, recommender.StateVectorsReady, svc.State())
	assert.Equal(t, 5, svc.Snapshot().Len())
}

func TestService_RecommendByPreferences(t *testing.T) {
	svc := recommender.NewService(&fakeSource{games: preferenceCatalog()}, recommender.Options{ChunkSize: 2})

	recs, err := svc.RecommendByPreferences(context.Background(), rpgProfile(), 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hollow Depths", "Hollow Depths II", "Old Kingdoms", "Iron Assault"}, titles(recs))
	for _, r := range recs {
		assert.Greater(t, r.Breakdown.TotalScore, recommender.MinPreferenceScore)
		assert.LessOrEqual(t, len(r.Explanations), 3)
	}
	assert.InDelta(t, 0.815, recs[0].Breakdown.TotalScore, 1e-9)
	assert.Equal(t, recommender.StateLoaded, svc.State())
}

func TestService_RecommendByPreferencesLimit(t *testing.T) {
	svc := recommender.NewService(&fakeSource{games: preferenceCatalog()}, recommender.Options{})
	ctx := context.Background()

	recs, err := svc.RecommendByPreferences(ctx, rpgProfile(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hollow Depths", "Hollow Depths II"}, titles(recs))

	recs, err = svc.RecommendByPreferences(ctx, rpgProfile(), 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestService_RecommendByPreferencesLargeCatalog(t *testing.T) {
	games := make([]*models.GameRecord, 0, 1000)
	for i := 0; i < 1000; i++ {
		games = append(games, game(fmt.Sprintf("Game %04d", i), []string{"rpg"}, float64(i%40), 0.9, 0.8))
	}
	svc := recommender.NewService(&fakeSource{games: games}, recommender.Options{ChunkSize: 64, ScoreWorkers: 4})

	recs, err := svc.RecommendByPreferences(context.Background(), rpgProfile(), 50)
	require.NoError(t, err)
	require.Len(t, recs, 50)

	for i := 1; i < len(recs); i++ {
		assert.GreaterOrEqual(t, recs[i-1].Breakdown.TotalScore, recs[i].Breakdown.TotalScore)
	}
	// Free games score highest; the first free game in catalog order leads.
	assert.Equal(t, "Game 0000", recs[0].Game.Title)
	assert.Equal(t, "Game 0040", recs[1].Game.Title)
}

func TestService_RecommendByPreferencesDoesNotMutateProfile(t *testing.T) {
	os := models.OSType("Windows")
	profile := rpgProfile()
	profile.SystemSpecs = &models.SystemSpecs{OSType: &os}

	svc := recommender.NewService(&fakeSource{games: preferenceCatalog()}, recommender.Options{})
	_, err := svc.RecommendByPreferences(context.Background(), profile, 5)
	require.NoError(t, err)

	assert.Equal(t, []string{"RPG"}, profile.PreferredTags)
	assert.Equal(t, models.OSType("Windows"), *profile.SystemSpecs.OSType)
}

func TestService_RecommendByPreferencesInvalidProfile(t *testing.T) {
	svc := recommender.NewService(&fakeSource{games: preferenceCatalog()}, recommender.Options{})

	profile := rpgProfile()
	profile.MinSentiment = 1.5

	_, err := svc.RecommendByPreferences(context.Background(), profile, 5)
	assert.ErrorIs(t, err, models.ErrInvalidMinSentiment)
	assert.True(t, models.IsValidationError(err))
}

func TestService_RecommendByPreferencesEmptyCatalog(t *testing.T) {
	svc := recommender.NewService(&fakeSource{games: []*models.GameRecord{}}, recommender.Options{})

	recs, err := svc.RecommendByPreferences(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestService_RecommendByGame(t *testing.T) {
	catalog := []*models.GameRecord{
		game("Neon Strike", []string{"action", "shooter", "fps"}, 20, 0.8, 0.6),
		game("Neon Strike Zero", []string{"action", "shooter", "fps"}, 20, 0.8, 0.6),
		game("Dragon Saga", []string{"rpg", "fantasy"}, 40, 0.9, 0.7),
		game("Gun Run", []string{"action", "platformer"}, 5, 0.7, 0.4),
	}
	svc := recommender.NewService(&fakeSource{games: catalog}, recommender.Options{})

	similar, err := svc.RecommendByGame(context.Background(), "neon strike", 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)

	assert.Equal(t, "Neon Strike Zero", similar[0].Game.Title)
	assert.Equal(t, "Gun Run", similar[1].Game.Title)
	assert.GreaterOrEqual(t, similar[0].SimilarityScore, similar[1].SimilarityScore)
	assert.False(t, similar[0].Fallback)
	assert.Equal(t, recommender.StateVectorsReady, svc.State())

	for _, s := range similar {
		assert.NotEqual(t, "Neon Strike", s.Game.Title)
	}
}

func TestService_RecommendByGameNotFound(t *testing.T) {
	svc := recommender.NewService(&fakeSource{games: preferenceCatalog()}, recommender.Options{})
	ctx := context.Background()

	_, err := svc.RecommendByGame(ctx, "Missing Game", 5)
	assert.ErrorIs(t, err, models.ErrGameNotFound)

	_, err = svc.SimilarByTags(ctx, "Missing Game", 5)
	assert.ErrorIs(t, err, models.ErrGameNotFound)

	_, err = svc.RecommendByGame(ctx, "  ", 5)
	assert.ErrorIs(t, err, models.ErrEmptyTitle)

	ok, err := svc.HasGame(ctx, "Missing Game")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_FallbackWhenFeatureSpaceEmpty(t *testing.T) {
	// Single-letter tags produce no vocabulary terms.
	catalog := []*models.GameRecord{
		game("Alpha", []string{"a", "b", "c", "d"}, 0, 0.5, 0.5),
		game("Beta", []string{"b"}, 0, 0.5, 0.5),
		game("Gamma", []string{"e"}, 0, 0.5, 0.5),
		game("Delta", []string{"d"}, 0, 0.5, 0.5),
		game("Epsilon", []string{"a", "e"}, 0, 0.5, 0.5),
	}
	svc := recommender.NewService(&fakeSource{games: catalog}, recommender.Options{})
	ctx := context.Background()

	primary, err := svc.RecommendByGame(ctx, "Alpha", 5)
	require.NoError(t, err)
	assert.Empty(t, primary)
	assert.Equal(t, 0, svc.Snapshot().Dimensions())

	ok, err := svc.HasGame(ctx, "ALPHA")
	require.NoError(t, err)
	assert.True(t, ok)

	fallback, err := svc.SimilarByTags(ctx, "Alpha", 5)
	require.NoError(t, err)
	// "d" is Alpha's fourth tag, so Delta is not included.
	assert.Equal(t, []string{"Beta", "Epsilon"}, similarTitles(fallback))
	for _, f := range fallback {
		assert.Equal(t, recommender.FallbackSimilarityScore, f.SimilarityScore)
		assert.True(t, f.Fallback)
	}

	combined, err := svc.Similar(ctx, "Alpha", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, similarTitles(combined))
}

func TestService_DuplicateTitlesKeepFirst(t *testing.T) {
	catalog := []*models.GameRecord{
		game("Twin", []string{"rpg"}, 0, 0.5, 0.5),
		game("TWIN", []string{"action"}, 0, 0.5, 0.5),
		nil,
	}
	svc := recommender.NewService(&fakeSource{games: catalog}, recommender.Options{})

	count, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	idx, ok := svc.Snapshot().Lookup("twin")
	require.True(t, ok)
	assert.Equal(t, []string{"rpg"}, svc.Snapshot().Games()[idx].Tags)
}

func TestService_ConcurrentReadsDuringReload(t *testing.T) {
	source := &fakeSource{games: preferenceCatalog()}
	svc := recommender.NewService(source, recommender.Options{})
	ctx := context.Background()

	_, _, err := svc.Reload(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			recs, err := svc.RecommendByPreferences(ctx, rpgProfile(), 10)
			assert.NoError(t, err)
			assert.Len(t, recs, 4)
		}()
		go func() {
			defer wg.Done()
			_, _, err := svc.Reload(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, recommender.StateVectorsReady, svc.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unloaded", recommender.StateUnloaded.String())
	assert.Equal(t, "loaded", recommender.StateLoaded.String())
	assert.Equal(t, "vectors_ready", recommender.StateVectorsReady.String())
}
