package relationships

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/core/temporal"
)

const scope = "project-1"

func newTestLedger() *Ledger {
	return NewLedger(temporal.NewMemoryStore[model.RelationshipPayload](), nil)
}

func rel(a, b, relType string, sentiment, conflict float64, at model.Timestamp) model.RelationshipInput {
	return model.RelationshipInput{
		ScopeID:       scope,
		EntityA:       a,
		EntityB:       b,
		Type:          relType,
		Sentiment:     sentiment,
		TrustLevel:    sentiment,
		ConflictLevel: conflict,
		ValidFrom:     at,
	}
}

func mustRecord(t *testing.T, l *Ledger, in model.RelationshipInput) model.Relationship {
	t.Helper()
	r, err := l.RecordRelationship(context.Background(), in)
	require.NoError(t, err)
	return r
}

func TestNormalizedPair(t *testing.T) {
	a, b := NormalizedPair("zed", "amy")
	assert.Equal(t, "amy", a)
	assert.Equal(t, "zed", b)

	a, b = NormalizedPair("amy", "zed")
	assert.Equal(t, "amy", a)
	assert.Equal(t, "zed", b)
}

func TestRecordRelationshipValidation(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	_, err := l.RecordRelationship(ctx, rel("a", "a", "ally", 0, 0, 1))
	assert.True(t, errors.Is(err, errs.ErrValidation))

	in := rel("a", "b", "ally", 0, 0, 1)
	in.Status = "frenemies"
	_, err = l.RecordRelationship(ctx, in)
	assert.True(t, errors.Is(err, errs.ErrValidation))

	r, err := l.RecordRelationship(ctx, rel("b", "a", "ally", 0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, model.StatusActive, r.Status)
	assert.Equal(t, "a", r.EntityA)
	assert.Equal(t, "b", r.EntityB)
}

func TestRelationshipAtReduction(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	mustRecord(t, l, rel("A", "B", "friendship", 0.8, 0, 1000))
	mustRecord(t, l, rel("B", "A", "friendship", 0.2, 0, 2000))

	r, err := l.RelationshipAt(ctx, scope, "A", "B", 1500, "friendship")
	require.NoError(t, err)
	assert.Equal(t, 0.8, r.Sentiment)

	r, err = l.RelationshipAt(ctx, scope, "B", "A", 2500, "friendship")
	require.NoError(t, err)
	assert.Equal(t, 0.2, r.Sentiment)

	_, err = l.RelationshipAt(ctx, scope, "A", "B", 999, "friendship")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestRelationshipAtAnyType(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	mustRecord(t, l, rel("A", "B", "friendship", 0.5, 0, 10))
	mustRecord(t, l, rel("A", "B", "rivalry", -0.5, 0.7, 20))

	r, err := l.RelationshipAt(ctx, scope, "A", "B", 15, "")
	require.NoError(t, err)
	assert.Equal(t, "friendship", r.Type)

	r, err = l.RelationshipAt(ctx, scope, "A", "B", 25, "")
	require.NoError(t, err)
	assert.Equal(t, "rivalry", r.Type)

	between, err := l.RelationshipsBetween(ctx, scope, "B", "A", 25)
	require.NoError(t, err)
	assert.Len(t, between, 2)
}

func TestRelationshipsForKeepsLatestPerPairAndType(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	mustRecord(t, l, rel("alice", "bob", "friendship", 0.9, 0, 10))
	mustRecord(t, l, rel("bob", "alice", "friendship", 0.1, 0, 20))
	mustRecord(t, l, rel("carol", "alice", "mentor", 0.7, 0, 10))
	mustRecord(t, l, rel("bob", "carol", "rivalry", -0.4, 0.5, 10))

	in := rel("alice", "carol", "mentor", 0.7, 0, 30)
	in.Status = model.StatusDormant
	mustRecord(t, l, in)

	rels, err := l.RelationshipsFor(ctx, scope, "alice", 25, Filter{})
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, 0.1, rels[0].Sentiment)
	assert.Equal(t, "mentor", rels[1].Type)

	rels, err = l.RelationshipsFor(ctx, scope, "alice", 35, Filter{Status: model.StatusActive})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "friendship", rels[0].Type)

	rels, err = l.RelationshipsFor(ctx, scope, "alice", 35, Filter{Type: "mentor"})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, model.StatusDormant, rels[0].Status)
}

func TestDelta(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	mustRecord(t, l, rel("A", "B", "friendship", 0.8, 0.1, 1000))
	in := rel("A", "B", "friendship", 0.2, 0.6, 2000)
	in.Status = model.StatusStrained
	mustRecord(t, l, in)

	d, err := l.Delta(ctx, scope, "B", "A", 1500, 2500, "friendship")
	require.NoError(t, err)
	require.NotNil(t, d.Before)
	require.NotNil(t, d.After)
	require.NotNil(t, d.Changes.Sentiment)
	assert.InDelta(t, -0.6, *d.Changes.Sentiment, 1e-9)
	assert.InDelta(t, 0.5, *d.Changes.ConflictLevel, 1e-9)
	assert.True(t, d.StatusChanged)

	d, err = l.Delta(ctx, scope, "A", "B", 500, 1500, "friendship")
	require.NoError(t, err)
	assert.Nil(t, d.Before)
	require.NotNil(t, d.After)
	assert.Nil(t, d.Changes.Sentiment)
	assert.Nil(t, d.Changes.TrustLevel)

	_, err = l.Delta(ctx, scope, "A", "B", 1, 2, "friendship")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestDeltaNeverMixesTypes(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	mustRecord(t, l, rel("A", "B", "friendship", 0.9, 0, 10))
	mustRecord(t, l, rel("A", "B", "rivalry", -0.5, 0.4, 20))

	_, err := l.Delta(ctx, scope, "A", "B", 15, 25, "")
	assert.True(t, errors.Is(err, errs.ErrValidation))

	d, err := l.Delta(ctx, scope, "A", "B", 15, 25, "friendship")
	require.NoError(t, err)
	assert.Equal(t, "friendship", d.Type)
	require.NotNil(t, d.Changes.Sentiment)
	assert.InDelta(t, 0, *d.Changes.Sentiment, 1e-9)

	d, err = l.Delta(ctx, scope, "A", "B", 5, 15, "")
	require.NoError(t, err, "only friendship exists across both endpoints")
	assert.Equal(t, "friendship", d.Type)
	assert.Nil(t, d.Before)
	require.NotNil(t, d.After)
	assert.Equal(t, "friendship", d.After.Type)

	_, err = l.Delta(ctx, scope, "A", "B", 1, 2, "")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestFindConflictsReducesBeforeFiltering(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	mustRecord(t, l, rel("A", "B", "rivalry", -0.5, 0.9, 10))
	mustRecord(t, l, rel("A", "B", "rivalry", 0.3, 0.1, 20))
	mustRecord(t, l, rel("C", "D", "feud", -0.9, 0.8, 10))
	mustRecord(t, l, rel("E", "F", "feud", -0.9, 0.95, 10))

	conflicts, err := l.FindConflicts(ctx, scope, 0.5, 30)
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, "E", conflicts[0].EntityA)
	assert.Equal(t, "C", conflicts[1].EntityA)

	conflicts, err = l.FindConflicts(ctx, scope, 0.5, 15)
	require.NoError(t, err)
	assert.Len(t, conflicts, 3)
}

func TestFindBySentiment(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	mustRecord(t, l, rel("A", "B", "friendship", 0.9, 0, 10))
	mustRecord(t, l, rel("A", "B", "friendship", -0.2, 0, 20))
	mustRecord(t, l, rel("C", "D", "friendship", 0.6, 0, 10))

	warm, err := l.FindBySentiment(ctx, scope, 0.5, Greater, 30)
	require.NoError(t, err)
	require.Len(t, warm, 1)
	assert.Equal(t, "C", warm[0].EntityA)

	cold, err := l.FindBySentiment(ctx, scope, 0, LessEqual, 30)
	require.NoError(t, err)
	require.Len(t, cold, 1)
	assert.Equal(t, "A", cold[0].EntityA)

	_, err = l.FindBySentiment(ctx, scope, 0, Comparison("~"), 30)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestParseComparison(t *testing.T) {
	c, err := ParseComparison("gte")
	require.NoError(t, err)
	assert.Equal(t, GreaterEqual, c)

	c, err = ParseComparison("<")
	require.NoError(t, err)
	assert.Equal(t, Less, c)

	_, err = ParseComparison("between")
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	l := newTestLedger()
	mustRecord(t, l, rel("A", "B", "friendship", 0.2, 0, 20))
	mustRecord(t, l, rel("B", "A", "friendship", 0.8, 0, 10))

	h, err := l.History(context.Background(), scope, "A", "B", "friendship")
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, 0.8, h[0].Sentiment)
	assert.Equal(t, 0.2, h[1].Sentiment)
}
