// Package voice keeps how each character speaks as a temporal ledger, so a
// character's register can shift over the story.
package voice

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/core/temporal"
)

const profileKind = "voice_profile"

type Ledger struct {
	records *temporal.Ledger[model.VoiceProfile]
	logger  *zap.Logger
}

func NewLedger(store temporal.Store[model.VoiceProfile], logger *zap.Logger, opts ...temporal.Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		records: temporal.NewLedger(store, opts...),
		logger:  logger.Named("voice"),
	}
}

func profileKey(entityID string) model.SubjectKey {
	return model.SubjectKey{Subject: entityID, Kind: profileKind}
}

func (l *Ledger) RecordProfile(ctx context.Context, scopeID, entityID string, profile model.VoiceProfile, validFrom model.Timestamp) (model.VoiceRecord, error) {
	if entityID == "" {
		return model.VoiceRecord{}, errs.Validation("entity_id is required")
	}
	rec, err := l.records.Append(ctx, scopeID, profileKey(entityID), profile, validFrom)
	if err != nil {
		return model.VoiceRecord{}, err
	}
	return toVoiceRecord(rec), nil
}

// ProfileAt returns the profile in force at t, or errs.ErrNotFound.
func (l *Ledger) ProfileAt(ctx context.Context, scopeID, entityID string, t model.Timestamp) (model.VoiceRecord, error) {
	rec, err := l.records.QueryAsOf(ctx, scopeID, profileKey(entityID), t)
	if err != nil {
		return model.VoiceRecord{}, err
	}
	return toVoiceRecord(rec), nil
}

// HintsAt condenses the profile at t into generation hints. A character
// without a profile gets DefaultHints rather than an error.
func (l *Ledger) HintsAt(ctx context.Context, scopeID, entityID string, t model.Timestamp) (model.VoiceHints, error) {
	rec, err := l.ProfileAt(ctx, scopeID, entityID, t)
	if errors.Is(err, errs.ErrNotFound) {
		return DefaultHints(entityID), nil
	}
	if err != nil {
		return model.VoiceHints{}, fmt.Errorf("failed to load voice of %s: %w", entityID, err)
	}
	return Hints(entityID, rec.Profile), nil
}

func toVoiceRecord(r model.Record[model.VoiceProfile]) model.VoiceRecord {
	return model.VoiceRecord{
		ID:        r.ID,
		ScopeID:   r.ScopeID,
		EntityID:  r.Subject.Subject,
		ValidFrom: r.ValidFrom,
		Profile:   r.Payload,
	}
}
