package temporal

import (
	"context"
	"sort"
	"sync"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
)

// MemoryStore keeps each subject's history sorted in ledger order and indexes
// subject keys by every entity they mention, so single-entity queries touch
// only that entity's records.
type MemoryStore[P any] struct {
	mu     sync.RWMutex
	seq    uint64
	scopes map[string]*scopeIndex[P]
	byID   map[string]model.Record[P]
}

type scopeIndex[P any] struct {
	histories map[model.SubjectKey][]model.Record[P]
	byEntity  map[string]map[model.SubjectKey]struct{}
}

func NewMemoryStore[P any]() *MemoryStore[P] {
	return &MemoryStore[P]{
		scopes: make(map[string]*scopeIndex[P]),
		byID:   make(map[string]model.Record[P]),
	}
}

func (s *MemoryStore[P]) Insert(ctx context.Context, rec model.Record[P]) (model.Record[P], error) {
	if err := ctx.Err(); err != nil {
		return model.Record[P]{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.byID[rec.ID]; dup {
		return model.Record[P]{}, errs.Validation("duplicate record id %q", rec.ID)
	}

	s.seq++
	rec.Seq = s.seq

	idx, ok := s.scopes[rec.ScopeID]
	if !ok {
		idx = &scopeIndex[P]{
			histories: make(map[model.SubjectKey][]model.Record[P]),
			byEntity:  make(map[string]map[model.SubjectKey]struct{}),
		}
		s.scopes[rec.ScopeID] = idx
	}

	history := idx.histories[rec.Subject]
	i := sort.Search(len(history), func(i int) bool { return Precedes(rec, history[i]) })
	history = append(history, model.Record[P]{})
	copy(history[i+1:], history[i:])
	history[i] = rec
	idx.histories[rec.Subject] = history

	idx.link(rec.Subject.Subject, rec.Subject)
	if rec.Subject.Object != "" {
		idx.link(rec.Subject.Object, rec.Subject)
	}

	s.byID[rec.ID] = rec
	return rec, nil
}

func (idx *scopeIndex[P]) link(entityID string, key model.SubjectKey) {
	keys, ok := idx.byEntity[entityID]
	if !ok {
		keys = make(map[model.SubjectKey]struct{})
		idx.byEntity[entityID] = keys
	}
	keys[key] = struct{}{}
}

func (s *MemoryStore[P]) Get(ctx context.Context, id string) (model.Record[P], error) {
	if err := ctx.Err(); err != nil {
		return model.Record[P]{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return model.Record[P]{}, errs.NotFound("record %q", id)
	}
	return rec, nil
}

func (s *MemoryStore[P]) Scan(ctx context.Context, scopeID string, filter Filter) ([]model.Record[P], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.scopes[scopeID]
	if !ok {
		return nil, nil
	}

	var out []model.Record[P]
	matchedKeys := 0
	visit := func(key model.SubjectKey) {
		if !filter.MatchesKey(key) {
			return
		}
		n := len(out)
		out = appendUpTo(out, idx.histories[key], filter)
		if len(out) > n {
			matchedKeys++
		}
	}

	switch entity := filter.entity(); {
	case entity != "":
		for key := range idx.byEntity[entity] {
			visit(key)
		}
	default:
		for key := range idx.histories {
			visit(key)
		}
	}

	if matchedKeys > 1 {
		SortRecords(out)
	}
	return out, nil
}

// entity picks the most selective entity id the filter pins down.
func (f Filter) entity() string {
	switch {
	case f.Subject != "":
		return f.Subject
	case f.Involving != "":
		return f.Involving
	default:
		return f.Object
	}
}

func appendUpTo[P any](out, history []model.Record[P], filter Filter) []model.Record[P] {
	for _, r := range history {
		// history is sorted by ValidFrom first
		if !filter.MatchesTime(r.ValidFrom) {
			break
		}
		out = append(out, r)
	}
	return out
}
