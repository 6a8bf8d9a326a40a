package causal

import (
	"context"
	"slices"
	"sync"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
)

// EdgeStore persists causal edges. Outgoing and Incoming return edges in
// creation order.
type EdgeStore interface {
	Create(ctx context.Context, edge model.CausalEdge) error
	Update(ctx context.Context, edge model.CausalEdge) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (model.CausalEdge, error)
	Outgoing(ctx context.Context, eventID string) ([]model.CausalEdge, error)
	Incoming(ctx context.Context, eventID string) ([]model.CausalEdge, error)
}

type MemoryEdgeStore struct {
	mu    sync.RWMutex
	edges map[string]model.CausalEdge
	out   map[string][]string
	in    map[string][]string
}

func NewMemoryEdgeStore() *MemoryEdgeStore {
	return &MemoryEdgeStore{
		edges: make(map[string]model.CausalEdge),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
	}
}

func (s *MemoryEdgeStore) Create(ctx context.Context, edge model.CausalEdge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.edges[edge.ID]; exists {
		return errs.Validation("causal edge %s already exists", edge.ID)
	}
	s.edges[edge.ID] = edge
	s.out[edge.CauseEventID] = append(s.out[edge.CauseEventID], edge.ID)
	s.in[edge.EffectEventID] = append(s.in[edge.EffectEventID], edge.ID)
	return nil
}

// Update replaces the mutable fields of an existing edge. Endpoints and type
// are kept from the stored copy.
func (s *MemoryEdgeStore) Update(ctx context.Context, edge model.CausalEdge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.edges[edge.ID]
	if !ok {
		return errs.NotFound("causal edge %s", edge.ID)
	}
	cur.Strength = edge.Strength
	cur.Explanation = edge.Explanation
	cur.UpdatedAt = edge.UpdatedAt
	s.edges[edge.ID] = cur
	return nil
}

func (s *MemoryEdgeStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[id]
	if !ok {
		return errs.NotFound("causal edge %s", id)
	}
	delete(s.edges, id)
	s.out[edge.CauseEventID] = removeID(s.out[edge.CauseEventID], id)
	s.in[edge.EffectEventID] = removeID(s.in[edge.EffectEventID], id)
	return nil
}

func (s *MemoryEdgeStore) Get(ctx context.Context, id string) (model.CausalEdge, error) {
	if err := ctx.Err(); err != nil {
		return model.CausalEdge{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	edge, ok := s.edges[id]
	if !ok {
		return model.CausalEdge{}, errs.NotFound("causal edge %s", id)
	}
	return edge, nil
}

func (s *MemoryEdgeStore) Outgoing(ctx context.Context, eventID string) ([]model.CausalEdge, error) {
	return s.collect(ctx, s.out, eventID)
}

func (s *MemoryEdgeStore) Incoming(ctx context.Context, eventID string) ([]model.CausalEdge, error) {
	return s.collect(ctx, s.in, eventID)
}

func (s *MemoryEdgeStore) collect(ctx context.Context, adj map[string][]string, eventID string) ([]model.CausalEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := adj[eventID]
	out := make([]model.CausalEdge, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.edges[id])
	}
	return out, nil
}

func removeID(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(s string) bool { return s == id })
}
