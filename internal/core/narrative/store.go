// Package narrative defines the story-structure collaborators the
// orchestrator reads from: scenes, conflicts, themes, arcs, pacing
// checkpoints and transitions. None of them are temporal.
package narrative

import (
	"context"
	"sort"
	"sync"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
)

type SceneStore interface {
	// GetScene returns errs.ErrNotFound for an unknown id.
	GetScene(ctx context.Context, id string) (model.Scene, error)
}

// StructureStore lookups skip ids that resolve to nothing.
type StructureStore interface {
	Conflicts(ctx context.Context, ids []string) ([]model.Conflict, error)
	Themes(ctx context.Context, ids []string) ([]model.Theme, error)
	ArcsForEntities(ctx context.Context, scopeID string, entityIDs []string) ([]model.Arc, error)
}

type PacingStore interface {
	// Checkpoints returns the scope's checkpoints ordered by narrative time.
	Checkpoints(ctx context.Context, scopeID string) ([]model.PacingCheckpoint, error)
}

type TransitionStore interface {
	// IncomingTransition returns errs.ErrNotFound when the scene has none.
	IncomingTransition(ctx context.Context, sceneID string) (model.Transition, error)
}

// MemoryStore implements every collaborator interface in memory.
type MemoryStore struct {
	mu          sync.RWMutex
	scenes      map[string]model.Scene
	conflicts   map[string]model.Conflict
	themes      map[string]model.Theme
	arcs        map[string]model.Arc
	checkpoints map[string][]model.PacingCheckpoint
	incoming    map[string]model.Transition
}

var (
	_ SceneStore      = (*MemoryStore)(nil)
	_ StructureStore  = (*MemoryStore)(nil)
	_ PacingStore     = (*MemoryStore)(nil)
	_ TransitionStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scenes:      make(map[string]model.Scene),
		conflicts:   make(map[string]model.Conflict),
		themes:      make(map[string]model.Theme),
		arcs:        make(map[string]model.Arc),
		checkpoints: make(map[string][]model.PacingCheckpoint),
		incoming:    make(map[string]model.Transition),
	}
}

func (s *MemoryStore) PutScene(scene model.Scene) error {
	if scene.ID == "" || scene.ScopeID == "" || scene.POVEntityID == "" {
		return errs.Validation("scene requires id, scope_id and pov_entity_id")
	}
	if !scene.NarrativeTime.IsFinite() {
		return errs.Validation("scene narrative_time must be finite")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes[scene.ID] = scene
	return nil
}

func (s *MemoryStore) PutConflict(c model.Conflict) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts[c.ID] = c
}

func (s *MemoryStore) PutTheme(t model.Theme) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themes[t.ID] = t
}

func (s *MemoryStore) PutArc(a model.Arc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arcs[a.ID] = a
}

func (s *MemoryStore) PutCheckpoint(cp model.PacingCheckpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cps := s.checkpoints[cp.ScopeID]
	cps = append(cps, cp)
	sort.SliceStable(cps, func(i, j int) bool { return cps[i].NarrativeTime < cps[j].NarrativeTime })
	s.checkpoints[cp.ScopeID] = cps
}

func (s *MemoryStore) PutTransition(t model.Transition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incoming[t.ToSceneID] = t
}

func (s *MemoryStore) GetScene(ctx context.Context, id string) (model.Scene, error) {
	if err := ctx.Err(); err != nil {
		return model.Scene{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	scene, ok := s.scenes[id]
	if !ok {
		return model.Scene{}, errs.NotFound("scene %s", id)
	}
	return scene, nil
}

func (s *MemoryStore) Conflicts(ctx context.Context, ids []string) ([]model.Conflict, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Conflict, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.conflicts[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *MemoryStore) Themes(ctx context.Context, ids []string) ([]model.Theme, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Theme, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.themes[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) ArcsForEntities(ctx context.Context, scopeID string, entityIDs []string) ([]model.Arc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]struct{}, len(entityIDs))
	for _, id := range entityIDs {
		want[id] = struct{}{}
	}
	var out []model.Arc
	for _, a := range s.arcs {
		if a.ScopeID != scopeID {
			continue
		}
		if _, ok := want[a.EntityID]; ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) Checkpoints(ctx context.Context, scopeID string) ([]model.PacingCheckpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.PacingCheckpoint(nil), s.checkpoints[scopeID]...), nil
}

func (s *MemoryStore) IncomingTransition(ctx context.Context, sceneID string) (model.Transition, error) {
	if err := ctx.Err(); err != nil {
		return model.Transition{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.incoming[sceneID]
	if !ok {
		return model.Transition{}, errs.NotFound("no transition into scene %s", sceneID)
	}
	return t, nil
}

// NearestCheckpoints picks the last checkpoint at or before t and the first
// one after it from a list ordered by narrative time.
func NearestCheckpoints(cps []model.PacingCheckpoint, t model.Timestamp) (prev, next *model.PacingCheckpoint) {
	i := sort.Search(len(cps), func(i int) bool { return cps[i].NarrativeTime > t })
	if i > 0 {
		p := cps[i-1]
		prev = &p
	}
	if i < len(cps) {
		n := cps[i]
		next = &n
	}
	return prev, next
}
