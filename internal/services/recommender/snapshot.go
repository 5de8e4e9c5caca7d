package recommender

import (
	"time"

	"game-recommendation-engine/internal/models"
	"game-recommendation-engine/internal/services/vectorizer"
)

// State is the lifecycle stage of the catalog snapshot.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateVectorsReady
)

// String returns the state name used in logs and health output.
func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateVectorsReady:
		return "vectors_ready"
	default:
		return "unloaded"
	}
}

// Snapshot is an immutable view of the catalog and, once prepared, its
// feature matrix. Rows of the matrix are parallel to Games.
type Snapshot struct {
	games    []*models.GameRecord
	index    map[string]int
	matrix   *vectorizer.Matrix
	loadedAt time.Time
}

func newSnapshot(games []*models.GameRecord, index map[string]int) *Snapshot {
	return &Snapshot{
		games:    games,
		index:    index,
		loadedAt: time.Now().UTC(),
	}
}

// withMatrix returns a copy of s carrying m.
func (s *Snapshot) withMatrix(m *vectorizer.Matrix) *Snapshot {
	next := *s
	next.matrix = m
	return &next
}

// State reports the lifecycle stage s represents.
func (s *Snapshot) State() State {
	switch {
	case s == nil:
		return StateUnloaded
	case s.matrix == nil:
		return StateLoaded
	default:
		return StateVectorsReady
	}
}

// Len returns the number of games in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.games)
}

// Games returns the catalog in load order. The records are shared and must
// not be modified.
func (s *Snapshot) Games() []*models.GameRecord {
	if s == nil {
		return nil
	}
	out := make([]*models.GameRecord, len(s.games))
	copy(out, s.games)
	return out
}

// Lookup returns the catalog position of title.
func (s *Snapshot) Lookup(title string) (int, bool) {
	if s == nil {
		return 0, false
	}
	i, ok := s.index[models.TitleKey(title)]
	return i, ok
}

// Dimensions returns the feature space size, 0 before vectors are prepared.
func (s *Snapshot) Dimensions() int {
	if s == nil {
		return 0
	}
	return s.matrix.Dimensions()
}

// LoadedAt returns when the catalog was fetched.
func (s *Snapshot) LoadedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}
