package causal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/driver"
)

func edgeRecord(id, cause, effect string) *neo4j.Record {
	return &neo4j.Record{
		Keys: []string{"uuid", "scope_id", "cause_id", "effect_id", "type", "strength", "explanation", "created_at", "updated_at"},
		Values: []interface{}{
			id, "p", cause, effect, "motivation", int64(7), "jealousy",
			int64(1700000000000000000), int64(1700000000000000000),
		},
	}
}

func TestMemgraphCreateEdge(t *testing.T) {
	mock := &MockDriver{}
	store := NewMemgraphEdgeStore(mock)

	created := time.Unix(1700000000, 0).UTC()
	err := store.Create(context.Background(), model.CausalEdge{
		ID: "e1", ScopeID: "p", CauseEventID: "a", EffectEventID: "b",
		Type: model.CausalMotivation, Strength: 7, CreatedAt: created, UpdatedAt: created,
	})
	require.NoError(t, err)

	assert.Equal(t, driver.SaveCausalEdgeQuery, mock.QueryExecuted)
	assert.Equal(t, "e1", mock.QueryParams["uuid"])
	assert.Equal(t, "motivation", mock.QueryParams["type"])
	assert.Equal(t, int64(7), mock.QueryParams["strength"])
	assert.Equal(t, created.UnixNano(), mock.QueryParams["created_at"])
}

func TestMemgraphGetEdge(t *testing.T) {
	mock := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{edgeRecord("e1", "a", "b")}},
	}
	store := NewMemgraphEdgeStore(mock)

	edge, err := store.Get(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, "a", edge.CauseEventID)
	assert.Equal(t, "b", edge.EffectEventID)
	assert.Equal(t, model.CausalMotivation, edge.Type)
	assert.Equal(t, 7, edge.Strength)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), edge.CreatedAt)
	assert.Equal(t, driver.GetCausalEdgeQuery, mock.QueryExecuted)
}

func TestMemgraphMissingEdge(t *testing.T) {
	mock := &MockDriver{MockResult: neo4j.EagerResult{Records: []*neo4j.Record{}}}
	store := NewMemgraphEdgeStore(mock)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.True(t, errors.Is(store.Delete(ctx, "nope"), errs.ErrNotFound))
	assert.True(t, errors.Is(store.Update(ctx, model.CausalEdge{ID: "nope"}), errs.ErrNotFound))
}

func TestMemgraphOutgoingFeedsTraversal(t *testing.T) {
	mock := &MockDriver{
		MockResult: neo4j.EagerResult{Records: []*neo4j.Record{edgeRecord("e1", "a", "b")}},
	}
	g := newTestGraph(NewMemgraphEdgeStore(mock))

	tr, err := g.Traverse(context.Background(), "a", model.Forward, 1)
	require.NoError(t, err)
	assert.Equal(t, driver.GetOutgoingCausalEdgesQuery, mock.QueryExecuted)
	assert.Equal(t, "a", mock.QueryParams["event_id"])
	assert.Equal(t, map[string]int{"a": 0, "b": 1}, nodeIDs(tr))
}

func TestMemgraphDriverError(t *testing.T) {
	mock := &MockDriver{Err: errors.New("connection refused")}
	store := NewMemgraphEdgeStore(mock)

	_, err := store.Outgoing(context.Background(), "a")
	assert.ErrorContains(t, err, "connection refused")
}
