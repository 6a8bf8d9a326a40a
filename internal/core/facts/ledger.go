// Package facts is the point-in-time knowledge ledger: who knows what, since
// when, including beliefs that are objectively false.
package facts

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/agenthands/chronicle/internal/core/common"
	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/core/temporal"
)

// KnowledgeFilter narrows a knowledge query. FactType is applied before
// reduction (it is part of the subject key); the payload filters after.
type KnowledgeFilter struct {
	FactType      string
	SourceType    string
	MinConfidence float64
	OnlyFalse     bool
}

// KnowerFilter optionally restricts Knowers to entities holding Value.
type KnowerFilter struct {
	Value      any
	MatchValue bool
}

type Ledger struct {
	records *temporal.Ledger[model.FactPayload]
	index   *knowerIndex
	logger  *zap.Logger
}

func NewLedger(store temporal.Store[model.FactPayload], logger *zap.Logger, opts ...temporal.Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		records: temporal.NewLedger(store, opts...),
		index:   newKnowerIndex(),
		logger:  logger.Named("facts"),
	}
}

func subjectKey(entityID, factType, factKey string) model.SubjectKey {
	return model.SubjectKey{Subject: entityID, Kind: factType, Key: factKey}
}

// RecordFact appends a fact. Recording a new value for an existing key
// supersedes the old one only for queries at or after ValidFrom.
func (l *Ledger) RecordFact(ctx context.Context, in model.FactInput) (model.KnownFact, error) {
	if err := common.Validate(in); err != nil {
		return model.KnownFact{}, err
	}
	value, err := common.NormalizeJSON(in.Value)
	if err != nil {
		return model.KnownFact{}, err
	}

	payload := model.FactPayload{
		Value:          value,
		SourceType:     in.SourceType,
		SourceEntityID: in.SourceEntityID,
		SourceEventID:  in.SourceEventID,
		Confidence:     in.Confidence,
		IsTrue:         in.IsTrue,
	}

	rec, err := l.records.Append(ctx, in.ScopeID, subjectKey(in.EntityID, in.FactType, in.FactKey), payload, in.ValidFrom)
	if err != nil {
		return model.KnownFact{}, err
	}
	l.index.add(in.ScopeID, factRef{in.FactType, in.FactKey}, in.EntityID)

	l.logger.Debug("Recorded fact",
		zap.String("entity", in.EntityID),
		zap.String("fact_type", in.FactType),
		zap.String("fact_key", in.FactKey),
		zap.Bool("is_true", in.IsTrue))

	return model.KnownFactFromRecord(rec), nil
}

// KnowledgeAt replays the entity's facts up to t into a map keyed by
// (factType, factKey), later records overwriting earlier ones, and returns the
// result sorted by key.
func (l *Ledger) KnowledgeAt(ctx context.Context, scopeID, entityID string, t model.Timestamp, filter KnowledgeFilter) ([]model.KnownFact, error) {
	state := make(map[factRef]model.Record[model.FactPayload])
	err := l.records.Replay(ctx, scopeID, t, temporal.Filter{Subject: entityID, Kind: filter.FactType}, func(r model.Record[model.FactPayload]) {
		state[factRef{r.Subject.Kind, r.Subject.Key}] = r
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replay knowledge of %s: %w", entityID, err)
	}

	out := make([]model.KnownFact, 0, len(state))
	for _, r := range state {
		if !filter.matches(r.Payload) {
			continue
		}
		out = append(out, model.KnownFactFromRecord(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FactType != out[j].FactType {
			return out[i].FactType < out[j].FactType
		}
		return out[i].FactKey < out[j].FactKey
	})
	return out, nil
}

func (f KnowledgeFilter) matches(p model.FactPayload) bool {
	if f.SourceType != "" && p.SourceType != f.SourceType {
		return false
	}
	if p.Confidence < f.MinConfidence {
		return false
	}
	if f.OnlyFalse && p.IsTrue {
		return false
	}
	return true
}

// FalseBeliefs is KnowledgeAt restricted to facts the entity holds but which
// are objectively false.
func (l *Ledger) FalseBeliefs(ctx context.Context, scopeID, entityID string, t model.Timestamp) ([]model.KnownFact, error) {
	return l.KnowledgeAt(ctx, scopeID, entityID, t, KnowledgeFilter{OnlyFalse: true})
}

// Knows reports whether the entity holds (factType, factKey) at t.
func (l *Ledger) Knows(ctx context.Context, scopeID, entityID, factType, factKey string, t model.Timestamp) (model.KnownFact, bool, error) {
	rec, err := l.records.QueryAsOf(ctx, scopeID, subjectKey(entityID, factType, factKey), t)
	if errors.Is(err, errs.ErrNotFound) {
		return model.KnownFact{}, false, nil
	}
	if err != nil {
		return model.KnownFact{}, false, err
	}
	return model.KnownFactFromRecord(rec), true, nil
}

// Divergence partitions the union of both entities' knowledge keys at t into
// only-A, only-B, value-differs and identical, comparing values structurally.
func (l *Ledger) Divergence(ctx context.Context, scopeID, entityA, entityB string, t model.Timestamp) (model.Divergence, error) {
	knowA, err := l.KnowledgeAt(ctx, scopeID, entityA, t, KnowledgeFilter{})
	if err != nil {
		return model.Divergence{}, err
	}
	knowB, err := l.KnowledgeAt(ctx, scopeID, entityB, t, KnowledgeFilter{})
	if err != nil {
		return model.Divergence{}, err
	}

	d := model.Divergence{
		EntityA:   entityA,
		EntityB:   entityB,
		At:        t,
		OnlyA:     []model.KnownFact{},
		OnlyB:     []model.KnownFact{},
		Differs:   []model.ValueDifference{},
		Identical: []model.KnownFact{},
	}

	byRef := make(map[factRef]model.KnownFact, len(knowB))
	for _, f := range knowB {
		byRef[factRef{f.FactType, f.FactKey}] = f
	}

	for _, a := range knowA {
		ref := factRef{a.FactType, a.FactKey}
		b, shared := byRef[ref]
		switch {
		case !shared:
			d.OnlyA = append(d.OnlyA, a)
		case cmp.Equal(a.Value, b.Value):
			d.Identical = append(d.Identical, a)
		default:
			d.Differs = append(d.Differs, model.ValueDifference{FactType: a.FactType, FactKey: a.FactKey, A: a, B: b})
		}
		delete(byRef, ref)
	}
	for _, b := range knowB {
		if _, left := byRef[factRef{b.FactType, b.FactKey}]; left {
			d.OnlyB = append(d.OnlyB, b)
		}
	}

	d.Counts = model.DivergenceCounts{
		OnlyA:     len(d.OnlyA),
		OnlyB:     len(d.OnlyB),
		Differs:   len(d.Differs),
		Identical: len(d.Identical),
	}
	d.Counts.Total = d.Counts.OnlyA + d.Counts.OnlyB + d.Counts.Differs + d.Counts.Identical
	return d, nil
}

// Knowers lists the entities whose knowledge at t contains (factType,
// factKey), each with its current value. Candidates come from the reverse
// index, so the cost is proportional to the entities that ever recorded the
// key rather than to the ledger.
func (l *Ledger) Knowers(ctx context.Context, scopeID, factType, factKey string, t model.Timestamp, filter KnowerFilter) ([]model.Knower, error) {
	if err := l.ensureIndex(ctx, scopeID); err != nil {
		return nil, err
	}

	var want any
	if filter.MatchValue {
		v, err := common.NormalizeJSON(filter.Value)
		if err != nil {
			return nil, err
		}
		want = v
	}

	var out []model.Knower
	for _, entityID := range l.index.candidates(scopeID, factRef{factType, factKey}) {
		fact, ok, err := l.Knows(ctx, scopeID, entityID, factType, factKey, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if filter.MatchValue && !cmp.Equal(fact.Value, want) {
			continue
		}
		out = append(out, model.Knower{EntityID: entityID, Fact: fact})
	}
	return out, nil
}

// ensureIndex fills the reverse index from storage the first time a scope is
// queried, covering records written by a previous process.
func (l *Ledger) ensureIndex(ctx context.Context, scopeID string) error {
	if l.index.isWarm(scopeID) {
		return nil
	}

	entries := make(map[factRef][]string)
	recs, err := l.records.QueryAllAsOf(ctx, scopeID, model.Timestamp(math.MaxFloat64), temporal.Filter{})
	if err != nil {
		return fmt.Errorf("failed to warm knower index: %w", err)
	}
	for _, r := range recs {
		ref := factRef{r.Subject.Kind, r.Subject.Key}
		entries[ref] = append(entries[ref], r.Subject.Subject)
	}
	l.index.warm(scopeID, entries)

	l.logger.Debug("Warmed knower index", zap.String("scope", scopeID), zap.Int("keys", len(entries)))
	return nil
}

// FactByID resolves a fact record by id.
func (l *Ledger) FactByID(ctx context.Context, id string) (model.KnownFact, error) {
	rec, err := l.records.Get(ctx, id)
	if err != nil {
		return model.KnownFact{}, err
	}
	return model.KnownFactFromRecord(rec), nil
}

// History returns every recorded value of one key for one entity.
func (l *Ledger) History(ctx context.Context, scopeID, entityID, factType, factKey string) ([]model.KnownFact, error) {
	recs, err := l.records.History(ctx, scopeID, subjectKey(entityID, factType, factKey))
	if err != nil {
		return nil, err
	}
	out := make([]model.KnownFact, len(recs))
	for i, r := range recs {
		out[i] = model.KnownFactFromRecord(r)
	}
	return out, nil
}
