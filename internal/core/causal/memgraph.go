package causal

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/driver"
)

// MemgraphEdgeStore keeps causal edges as CAUSES relationships between Event
// nodes. Timestamps are stored as unix nanoseconds.
type MemgraphEdgeStore struct {
	driver driver.GraphDriver
}

func NewMemgraphEdgeStore(d driver.GraphDriver) *MemgraphEdgeStore {
	return &MemgraphEdgeStore{driver: d}
}

func (s *MemgraphEdgeStore) Create(ctx context.Context, edge model.CausalEdge) error {
	params := map[string]interface{}{
		"uuid":        edge.ID,
		"scope_id":    edge.ScopeID,
		"cause_id":    edge.CauseEventID,
		"effect_id":   edge.EffectEventID,
		"type":        string(edge.Type),
		"strength":    int64(edge.Strength),
		"explanation": edge.Explanation,
		"created_at":  edge.CreatedAt.UnixNano(),
		"updated_at":  edge.UpdatedAt.UnixNano(),
	}
	if _, err := s.driver.ExecuteQuery(ctx, driver.SaveCausalEdgeQuery, params); err != nil {
		return fmt.Errorf("failed to save causal edge: %w", err)
	}
	return nil
}

func (s *MemgraphEdgeStore) Update(ctx context.Context, edge model.CausalEdge) error {
	params := map[string]interface{}{
		"uuid":        edge.ID,
		"strength":    int64(edge.Strength),
		"explanation": edge.Explanation,
		"updated_at":  edge.UpdatedAt.UnixNano(),
	}
	res, err := s.driver.ExecuteQuery(ctx, driver.UpdateCausalEdgeQuery, params)
	if err != nil {
		return fmt.Errorf("failed to update causal edge: %w", err)
	}
	if len(res.Records) == 0 {
		return errs.NotFound("causal edge %s", edge.ID)
	}
	return nil
}

func (s *MemgraphEdgeStore) Delete(ctx context.Context, id string) error {
	res, err := s.driver.ExecuteQuery(ctx, driver.DeleteCausalEdgeQuery, map[string]interface{}{"uuid": id})
	if err != nil {
		return fmt.Errorf("failed to delete causal edge: %w", err)
	}
	if len(res.Records) == 0 {
		return errs.NotFound("causal edge %s", id)
	}
	return nil
}

func (s *MemgraphEdgeStore) Get(ctx context.Context, id string) (model.CausalEdge, error) {
	res, err := s.driver.ExecuteQuery(ctx, driver.GetCausalEdgeQuery, map[string]interface{}{"uuid": id})
	if err != nil {
		return model.CausalEdge{}, fmt.Errorf("failed to get causal edge: %w", err)
	}
	if len(res.Records) == 0 {
		return model.CausalEdge{}, errs.NotFound("causal edge %s", id)
	}
	return edgeFromRecord(res.Records[0]), nil
}

func (s *MemgraphEdgeStore) Outgoing(ctx context.Context, eventID string) ([]model.CausalEdge, error) {
	return s.adjacent(ctx, driver.GetOutgoingCausalEdgesQuery, eventID)
}

func (s *MemgraphEdgeStore) Incoming(ctx context.Context, eventID string) ([]model.CausalEdge, error) {
	return s.adjacent(ctx, driver.GetIncomingCausalEdgesQuery, eventID)
}

func (s *MemgraphEdgeStore) adjacent(ctx context.Context, query, eventID string) ([]model.CausalEdge, error) {
	res, err := s.driver.ExecuteQuery(ctx, query, map[string]interface{}{"event_id": eventID})
	if err != nil {
		return nil, fmt.Errorf("failed to load edges of %s: %w", eventID, err)
	}
	edges := make([]model.CausalEdge, 0, len(res.Records))
	for _, rec := range res.Records {
		edges = append(edges, edgeFromRecord(rec))
	}
	return edges, nil
}

func edgeFromRecord(rec *neo4j.Record) model.CausalEdge {
	uuid, _ := rec.Get("uuid")
	scopeID, _ := rec.Get("scope_id")
	causeID, _ := rec.Get("cause_id")
	effectID, _ := rec.Get("effect_id")
	typ, _ := rec.Get("type")
	strength, _ := rec.Get("strength")
	explanation, _ := rec.Get("explanation")
	createdAt, _ := rec.Get("created_at")
	updatedAt, _ := rec.Get("updated_at")

	return model.CausalEdge{
		ID:            asString(uuid),
		ScopeID:       asString(scopeID),
		CauseEventID:  asString(causeID),
		EffectEventID: asString(effectID),
		Type:          model.CausalType(asString(typ)),
		Strength:      int(asInt(strength)),
		Explanation:   asString(explanation),
		CreatedAt:     time.Unix(0, asInt(createdAt)).UTC(),
		UpdatedAt:     time.Unix(0, asInt(updatedAt)).UTC(),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
