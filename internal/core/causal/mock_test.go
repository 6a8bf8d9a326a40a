package causal

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/chronicle/internal/core/model"
)

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	MockResult    neo4j.EagerResult
	Err           error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.QueryExecuted = query
	m.QueryParams = params
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

// countingStore wraps an EdgeStore and counts every call that reaches it.
type countingStore struct {
	EdgeStore
	calls int
}

func (s *countingStore) Get(ctx context.Context, id string) (model.CausalEdge, error) {
	s.calls++
	return s.EdgeStore.Get(ctx, id)
}

func (s *countingStore) Outgoing(ctx context.Context, eventID string) ([]model.CausalEdge, error) {
	s.calls++
	return s.EdgeStore.Outgoing(ctx, eventID)
}

func (s *countingStore) Incoming(ctx context.Context, eventID string) ([]model.CausalEdge, error) {
	s.calls++
	return s.EdgeStore.Incoming(ctx, eventID)
}
