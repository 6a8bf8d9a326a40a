//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/agenthands/chronicle/internal/config"
	"github.com/agenthands/chronicle/internal/core"
	"github.com/agenthands/chronicle/internal/core/model"
)

// TestChronicleFullStack runs scene assembly with every durable backend on.
func TestChronicleFullStack(t *testing.T) {
	d := memgraphDriver(t)
	dir := t.TempDir()

	cfg := config.Default()
	require.NoError(t, cfg.ApplyEnv(os.Getenv))
	cfg.Storage.SQLitePath = filepath.Join(dir, "chronicle.db")
	cfg.Storage.BadgerPath = filepath.Join(dir, "assets")

	ctx := context.Background()
	c, err := core.Open(ctx, cfg, zaptest.NewLogger(t), prometheus.NewRegistry())
	require.NoError(t, err)
	defer c.Close(context.Background())

	scope := "saga-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = d.ExecuteQuery(context.Background(), `MATCH (n:Event {scope_id: $scope}) DETACH DELETE n`, map[string]interface{}{"scope": scope})
	})

	_, err = c.RecordFact(ctx, model.FactInput{
		ScopeID: scope, EntityID: "mira", FactType: "secret", FactKey: "crown",
		Value: "forged", SourceType: "witnessed", Confidence: 1, IsTrue: true, ValidFrom: 3,
	})
	require.NoError(t, err)
	_, err = c.RecordRelationship(ctx, model.RelationshipInput{
		ScopeID: scope, EntityA: "mira", EntityB: "tomas", Type: "kinship", Sentiment: 0.8, ValidFrom: 1,
	})
	require.NoError(t, err)
	_, err = c.Causal.CreateEdge(ctx, model.CausalEdgeInput{
		ScopeID: scope, CauseEventID: scope + ":forgery", EffectEventID: scope + ":coronation",
		Type: model.CausalEnabling, Strength: 9,
	})
	require.NoError(t, err)

	require.NoError(t, c.Stories.PutScene(model.Scene{
		ID: scope + ":s1", ScopeID: scope, POVEntityID: "mira", NarrativeTime: 10,
		PresentEntityIDs: []string{"mira", "tomas"},
	}))
	packet, err := c.Orchestrator.AssembleContext(ctx, scope+":s1")
	require.NoError(t, err)
	assert.Len(t, packet.POV.Knowledge, 1)
	assert.Len(t, packet.RelationshipMatrix, 1)

	tr, err := c.Causal.Traverse(ctx, scope+":forgery", model.Forward, 2)
	require.NoError(t, err)
	assert.Len(t, tr.Nodes, 2)
}
