package voice

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

func TestProfileAt(t *testing.T) {
	l := NewLedger(temporal.NewMemoryStore[model.VoiceProfile](), nil)
	ctx := context.Background()

	_, err := l.RecordProfile(ctx, "p", "alice", model.VoiceProfile{Formality: "formal"}, 100)
	require.NoError(t, err)
	_, err = l.RecordProfile(ctx, "p", "alice", model.VoiceProfile{Formality: "casual", VerbalTics: []string{"you know"}}, 500)
	require.NoError(t, err)

	_, err = l.ProfileAt(ctx, "p", "alice", 50)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	rec, err := l.ProfileAt(ctx, "p", "alice", 200)
	require.NoError(t, err)
	assert.Equal(t, "formal", rec.Profile.Formality)

	hints, err := l.HintsAt(ctx, "p", "alice", 600)
	require.NoError(t, err)
	assert.False(t, hints.IsDefault)
	assert.Contains(t, hints.Hints, "formality: casual")
	assert.Contains(t, hints.Hints, `verbal tic: "you know"`)
}

func TestHintsAtDefaultsWhenMissing(t *testing.T) {
	l := NewLedger(temporal.NewMemoryStore[model.VoiceProfile](), nil)

	hints, err := l.HintsAt(context.Background(), "p", "ghost", 10)
	require.NoError(t, err)
	assert.True(t, hints.IsDefault)
	assert.Equal(t, "ghost", hints.EntityID)
	assert.Equal(t, "neutral", hints.Profile.Formality)
	assert.Len(t, hints.Hints, 3)
}

func TestRecordProfileRequiresEntity(t *testing.T) {
	l := NewLedger(temporal.NewMemoryStore[model.VoiceProfile](), nil)
	_, err := l.RecordProfile(context.Background(), "p", "", model.VoiceProfile{}, 1)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
