// Package causal is a mutable directed multigraph of cause -> effect edges
// between events, with bounded breadth-first traversal.
package causal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agenthands/chronicle/internal/core/common"
	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/telemetry"
)

// MaxDepth bounds Traverse.
const MaxDepth = 10

type Graph struct {
	store   EdgeStore
	logger  *zap.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
	newID   func() string
}

type Option func(*Graph)

func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(g *Graph) { g.newID = gen }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Graph) { g.metrics = m }
}

func NewGraph(store EdgeStore, logger *zap.Logger, opts ...Option) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Graph{
		store:  store,
		logger: logger.Named("causal"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Graph) CreateEdge(ctx context.Context, in model.CausalEdgeInput) (model.CausalEdge, error) {
	if err := common.Validate(in); err != nil {
		return model.CausalEdge{}, err
	}

	now := g.now()
	edge := model.CausalEdge{
		ID:            g.newID(),
		ScopeID:       in.ScopeID,
		CauseEventID:  in.CauseEventID,
		EffectEventID: in.EffectEventID,
		Type:          in.Type,
		Strength:      in.Strength,
		Explanation:   in.Explanation,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := g.store.Create(ctx, edge); err != nil {
		return model.CausalEdge{}, fmt.Errorf("failed to create causal edge: %w", err)
	}

	g.logger.Debug("causal edge created",
		zap.String("id", edge.ID),
		zap.String("cause", edge.CauseEventID),
		zap.String("effect", edge.EffectEventID))
	return edge, nil
}

// UpdateEdge changes strength and explanation. The type of an edge is fixed
// at creation; asking for a different one is a validation error.
func (g *Graph) UpdateEdge(ctx context.Context, id string, upd model.CausalEdgeUpdate) (model.CausalEdge, error) {
	if err := common.Validate(upd); err != nil {
		return model.CausalEdge{}, err
	}

	edge, err := g.store.Get(ctx, id)
	if err != nil {
		return model.CausalEdge{}, err
	}
	if upd.Type != nil && *upd.Type != edge.Type {
		return model.CausalEdge{}, errs.Validation("type of causal edge %s cannot change from %s to %s", id, edge.Type, *upd.Type)
	}

	if upd.Strength != nil {
		edge.Strength = *upd.Strength
	}
	if upd.Explanation != nil {
		edge.Explanation = *upd.Explanation
	}
	edge.UpdatedAt = g.now()

	if err := g.store.Update(ctx, edge); err != nil {
		return model.CausalEdge{}, fmt.Errorf("failed to update causal edge: %w", err)
	}
	return edge, nil
}

func (g *Graph) DeleteEdge(ctx context.Context, id string) error {
	return g.store.Delete(ctx, id)
}

func (g *Graph) GetEdge(ctx context.Context, id string) (model.CausalEdge, error) {
	return g.store.Get(ctx, id)
}

// EdgesForEvent returns the edges leaving eventID followed by those arriving
// at it. A self-loop appears once.
func (g *Graph) EdgesForEvent(ctx context.Context, eventID string) ([]model.CausalEdge, error) {
	out, err := g.store.Outgoing(ctx, eventID)
	if err != nil {
		return nil, err
	}
	in, err := g.store.Incoming(ctx, eventID)
	if err != nil {
		return nil, err
	}

	edges := append([]model.CausalEdge(nil), out...)
	for _, e := range in {
		if e.CauseEventID == e.EffectEventID {
			continue
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// Traverse walks breadth-first from start, following cause -> effect edges
// when dir is Forward and effect -> cause when Backward. Nodes carry the level
// at which they were first reached; nothing past depth is expanded. Every
// edge crossed is reported once, including edges back into visited nodes.
func (g *Graph) Traverse(ctx context.Context, start string, dir model.Direction, depth int) (model.Traversal, error) {
	if depth < 0 || depth > MaxDepth {
		return model.Traversal{}, fmt.Errorf("%w: %w: depth must be between 0 and %d, got %d",
			errs.ErrValidation, errs.ErrInvalidArgument, MaxDepth, depth)
	}
	if dir != model.Forward && dir != model.Backward {
		return model.Traversal{}, fmt.Errorf("%w: %w: unknown direction %q",
			errs.ErrValidation, errs.ErrInvalidArgument, dir)
	}
	if start == "" {
		return model.Traversal{}, errs.Validation("start event is required")
	}

	result := model.Traversal{
		Start:     start,
		Direction: dir,
		Depth:     depth,
		Nodes:     []model.TraversalNode{{EventID: start, Level: 0}},
		Edges:     []model.TraversalEdge{},
	}
	visited := map[string]struct{}{start: {}}
	crossed := make(map[string]struct{})
	frontier := []string{start}

	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []string
		for _, eventID := range frontier {
			edges, err := g.neighbors(ctx, eventID, dir)
			if err != nil {
				return model.Traversal{}, fmt.Errorf("failed to expand %s: %w", eventID, err)
			}
			for _, e := range edges {
				if _, ok := crossed[e.ID]; ok {
					continue
				}
				crossed[e.ID] = struct{}{}
				result.Edges = append(result.Edges, model.TraversalEdge{
					ID:          e.ID,
					From:        e.CauseEventID,
					To:          e.EffectEventID,
					Type:        e.Type,
					Strength:    e.Strength,
					Explanation: e.Explanation,
				})

				other := e.EffectEventID
				if dir == model.Backward {
					other = e.CauseEventID
				}
				if _, ok := visited[other]; ok {
					continue
				}
				visited[other] = struct{}{}
				result.Nodes = append(result.Nodes, model.TraversalNode{EventID: other, Level: level + 1})
				next = append(next, other)
			}
		}
		frontier = next
	}

	g.metrics.ObserveTraversal(len(result.Nodes))
	return result, nil
}

func (g *Graph) neighbors(ctx context.Context, eventID string, dir model.Direction) ([]model.CausalEdge, error) {
	if dir == model.Backward {
		return g.store.Incoming(ctx, eventID)
	}
	return g.store.Outgoing(ctx, eventID)
}
