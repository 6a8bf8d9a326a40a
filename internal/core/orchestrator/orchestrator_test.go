package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/facts"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/core/narrative"
	"github.com/agenthands/chronicle/internal/core/relationships"
	"github.com/agenthands/chronicle/internal/core/temporal"
	"github.com/agenthands/chronicle/internal/core/voice"
	"github.com/agenthands/chronicle/internal/telemetry"
)

type fixture struct {
	deps          Deps
	stories       *narrative.MemoryStore
	facts         *facts.Ledger
	relationships *relationships.Ledger
	voice         *voice.Ledger
}

func newFixture() *fixture {
	f := &fixture{
		stories:       narrative.NewMemoryStore(),
		facts:         facts.NewLedger(temporal.NewMemoryStore[model.FactPayload](), nil),
		relationships: relationships.NewLedger(temporal.NewMemoryStore[model.RelationshipPayload](), nil),
		voice:         voice.NewLedger(temporal.NewMemoryStore[model.VoiceProfile](), nil),
	}
	f.deps = Deps{
		Scenes:        f.stories,
		Structure:     f.stories,
		Pacing:        f.stories,
		Transitions:   f.stories,
		Facts:         f.facts,
		Relationships: f.relationships,
		Voice:         f.voice,
	}
	return f
}

func characterID(i int) string { return fmt.Sprintf("char-%02d", i) }

// populate builds a scene with ten present characters, every pair related,
// five active conflicts and a POV holding one true and one false fact.
func (f *fixture) populate(t *testing.T) model.KnownFact {
	t.Helper()
	ctx := context.Background()

	var present []string
	for i := 0; i < 10; i++ {
		present = append(present, characterID(i))
	}
	var conflictIDs []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("conflict-%d", i)
		conflictIDs = append(conflictIDs, id)
		f.stories.PutConflict(model.Conflict{ID: id, ScopeID: "novel", Name: id, Intensity: 0.5})
	}

	secret, err := f.facts.RecordFact(ctx, model.FactInput{
		ScopeID: "novel", EntityID: characterID(3), FactType: "secret", FactKey: "heir",
		Value: "char-07", SourceType: "witnessed", Confidence: 1, IsTrue: true, ValidFrom: 10,
	})
	require.NoError(t, err)
	_, err = f.facts.RecordFact(ctx, model.FactInput{
		ScopeID: "novel", EntityID: characterID(0), FactType: "location", FactKey: "ring",
		Value: "vault", SourceType: "told", Confidence: 0.9, IsTrue: true, ValidFrom: 20,
	})
	require.NoError(t, err)
	_, err = f.facts.RecordFact(ctx, model.FactInput{
		ScopeID: "novel", EntityID: characterID(0), FactType: "identity", FactKey: "stranger",
		Value: "merchant", SourceType: "assumed", Confidence: 0.6, IsTrue: false, ValidFrom: 30,
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		for j := i + 1; j < 10; j++ {
			sentiment := -0.4
			if (i < 5) == (j < 5) {
				sentiment = 0.7
			}
			_, err := f.relationships.RecordRelationship(ctx, model.RelationshipInput{
				ScopeID: "novel", EntityA: characterID(i), EntityB: characterID(j), Type: "acquaintance",
				Sentiment: sentiment, ConflictLevel: 0.2, ValidFrom: 5,
			})
			require.NoError(t, err)
		}
	}

	_, err = f.voice.RecordProfile(ctx, "novel", characterID(0), model.VoiceProfile{Formality: "formal"}, 1)
	require.NoError(t, err)

	f.stories.PutCheckpoint(model.PacingCheckpoint{ID: "inciting", ScopeID: "novel", NarrativeTime: 50})
	f.stories.PutCheckpoint(model.PacingCheckpoint{ID: "midpoint", ScopeID: "novel", NarrativeTime: 500})
	f.stories.PutTransition(model.Transition{ID: "tr-1", FromSceneID: "scene-0", ToSceneID: "scene-1", Type: "cut"})

	require.NoError(t, f.stories.PutScene(model.Scene{
		ID:                 "scene-1",
		ScopeID:            "novel",
		POVEntityID:        characterID(0),
		NarrativeTime:      100,
		PresentEntityIDs:   present,
		EnteringIDs:        []string{characterID(9)},
		ActiveConflictIDs:  conflictIDs,
		ForbiddenRevealIDs: []string{secret.ID, "missing-fact"},
	}))
	return secret
}

func TestAssembleContextFullScene(t *testing.T) {
	f := newFixture()
	secret := f.populate(t)
	o := New(f.deps, DefaultConfig(), nil)

	start := time.Now()
	packet, err := o.AssembleContext(context.Background(), "scene-1")
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Len(t, packet.POV.Knowledge, 2)
	assert.Len(t, packet.POV.FalseBeliefs, 1)
	assert.Equal(t, "stranger", packet.POV.FalseBeliefs[0].FactKey)
	assert.Len(t, packet.Characters, 10)
	assert.Len(t, packet.RelationshipMatrix, 45)
	assert.Len(t, packet.Conflicts, 5)
	assert.Len(t, packet.POV.Relationships, 9)
	assert.False(t, packet.POV.Voice.IsDefault)

	assert.True(t, packet.Characters[0].IsPOV)
	assert.Equal(t, 1, packet.Characters[0].FalseBeliefCount)
	assert.True(t, packet.Characters[9].Entering)
	assert.True(t, packet.Characters[1].Voice.IsDefault)

	assert.Equal(t, [][]string{
		{"char-00", "char-01", "char-02", "char-03", "char-04"},
		{"char-05", "char-06", "char-07", "char-08", "char-09"},
	}, packet.Factions)

	require.Len(t, packet.ForbiddenReveals, 2)
	assert.Equal(t, secret.ID, packet.ForbiddenReveals[0].FactID)
	assert.False(t, packet.ForbiddenReveals[0].POVKnows)
	assert.Equal(t, model.CriticalityStandard, packet.ForbiddenReveals[0].Criticality)
	assert.Equal(t, model.CriticalityUnresolved, packet.ForbiddenReveals[1].Criticality)

	require.NotNil(t, packet.Pacing.Previous)
	require.NotNil(t, packet.Pacing.Next)
	assert.Equal(t, "inciting", packet.Pacing.Previous.ID)
	assert.Equal(t, "midpoint", packet.Pacing.Next.ID)
	require.NotNil(t, packet.Transition)
	assert.Equal(t, "cut", packet.Transition.Type)
	assert.Positive(t, packet.AssemblyDuration)
}

func TestForbiddenRevealKnownByPOVIsCritical(t *testing.T) {
	f := newFixture()
	secret := f.populate(t)
	_, err := f.facts.RecordFact(context.Background(), model.FactInput{
		ScopeID: "novel", EntityID: characterID(0), FactType: secret.FactType, FactKey: secret.FactKey,
		Value: "char-07", SourceType: "overheard", Confidence: 0.8, IsTrue: true, ValidFrom: 90,
	})
	require.NoError(t, err)

	packet, err := New(f.deps, DefaultConfig(), nil).AssembleContext(context.Background(), "scene-1")
	require.NoError(t, err)
	assert.True(t, packet.ForbiddenReveals[0].POVKnows)
	assert.Equal(t, model.CriticalityCritical, packet.ForbiddenReveals[0].Criticality)
}

func TestAssembleContextMissingScene(t *testing.T) {
	f := newFixture()
	_, err := New(f.deps, DefaultConfig(), nil).AssembleContext(context.Background(), "nowhere")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.False(t, errors.Is(err, errs.ErrTimeout))
}

func TestAssembleContextDegradesOptionalParts(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.stories.PutScene(model.Scene{
		ID: "lonely", ScopeID: "novel", POVEntityID: "hermit", NarrativeTime: 1,
		PresentEntityIDs: []string{"hermit"},
	}))
	m := telemetry.NewMetrics(prometheus.NewRegistry())

	packet, err := New(f.deps, DefaultConfig(), nil, WithMetrics(m)).AssembleContext(context.Background(), "lonely")
	require.NoError(t, err)

	assert.True(t, packet.POV.Voice.IsDefault)
	assert.Nil(t, packet.Transition)
	assert.Nil(t, packet.Pacing.Previous)
	assert.Empty(t, packet.POV.Knowledge)
	assert.Empty(t, packet.RelationshipMatrix)
	assert.Empty(t, packet.Factions)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedTotal.WithLabelValues("transition")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedTotal.WithLabelValues("voice")))
}

// blockingStructure never answers before the request deadline.
type blockingStructure struct {
	narrative.StructureStore
}

func (b blockingStructure) Conflicts(ctx context.Context, ids []string) ([]model.Conflict, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAssembleContextTimeout(t *testing.T) {
	f := newFixture()
	f.populate(t)
	f.deps.Structure = blockingStructure{StructureStore: f.stories}

	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	m := telemetry.NewMetrics(prometheus.NewRegistry())

	packet, err := New(f.deps, cfg, nil, WithMetrics(m)).AssembleContext(context.Background(), "scene-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Empty(t, packet.SceneID)
	assert.Equal(t, 1, testutil.CollectAndCount(m.AssemblySeconds))
}

type failingRelationships struct {
	RelationshipSource
}

func (failingRelationships) RelationshipsBetween(ctx context.Context, scopeID, a, b string, t model.Timestamp) ([]model.Relationship, error) {
	return nil, errors.New("store offline")
}

func TestAssembleContextFailsOnSubqueryError(t *testing.T) {
	f := newFixture()
	f.populate(t)
	f.deps.Relationships = failingRelationships{RelationshipSource: f.relationships}

	_, err := New(f.deps, DefaultConfig(), nil).AssembleContext(context.Background(), "scene-1")
	assert.ErrorContains(t, err, "store offline")
	assert.False(t, errors.Is(err, errs.ErrTimeout))
}

func TestAssembleQuickContext(t *testing.T) {
	f := newFixture()
	f.populate(t)

	packet, err := New(f.deps, DefaultConfig(), nil).AssembleQuickContext(context.Background(), "scene-1")
	require.NoError(t, err)
	assert.Equal(t, characterID(0), packet.POVEntityID)
	require.Len(t, packet.Voices, 10)
	assert.Equal(t, characterID(0), packet.Voices[0].EntityID)
	assert.False(t, packet.Voices[0].IsDefault)
	assert.True(t, packet.Voices[1].IsDefault)

	_, err = New(f.deps, DefaultConfig(), nil).AssembleQuickContext(context.Background(), "nowhere")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestAssembleContextRespectsConcurrencyLimit(t *testing.T) {
	f := newFixture()
	f.populate(t)
	cfg := DefaultConfig()
	cfg.Concurrency = 1

	packet, err := New(f.deps, cfg, nil).AssembleContext(context.Background(), "scene-1")
	require.NoError(t, err)
	assert.Len(t, packet.Characters, 10)
}
