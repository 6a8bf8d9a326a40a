// Package relationships is the append-only ledger of pairwise dynamics. Pairs
// are stored under a normalized (sorted) key so (A,B) and (B,A) collide.
package relationships

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/agenthands/chronicle/internal/core/common"
	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/core/temporal"
)

type Comparison string

const (
	Greater      Comparison = ">"
	GreaterEqual Comparison = ">="
	Less         Comparison = "<"
	LessEqual    Comparison = "<="
)

func ParseComparison(s string) (Comparison, error) {
	switch c := Comparison(s); c {
	case Greater, GreaterEqual, Less, LessEqual:
		return c, nil
	case "gt":
		return Greater, nil
	case "gte":
		return GreaterEqual, nil
	case "lt":
		return Less, nil
	case "lte":
		return LessEqual, nil
	default:
		return "", errs.Validation("unknown comparison %q", s)
	}
}

func (c Comparison) holds(v, threshold float64) bool {
	switch c {
	case Greater:
		return v > threshold
	case GreaterEqual:
		return v >= threshold
	case Less:
		return v < threshold
	case LessEqual:
		return v <= threshold
	}
	return false
}

type Filter struct {
	Type   string
	Status model.RelationshipStatus
}

type Ledger struct {
	records *temporal.Ledger[model.RelationshipPayload]
	logger  *zap.Logger
}

func NewLedger(store temporal.Store[model.RelationshipPayload], logger *zap.Logger, opts ...temporal.Option) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		records: temporal.NewLedger(store, opts...),
		logger:  logger.Named("relationships"),
	}
}

// NormalizedPair orders two entity ids so that argument order never matters.
func NormalizedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

func pairKey(a, b, relType string) model.SubjectKey {
	lo, hi := NormalizedPair(a, b)
	return model.SubjectKey{Subject: lo, Object: hi, Kind: relType}
}

func (l *Ledger) RecordRelationship(ctx context.Context, in model.RelationshipInput) (model.Relationship, error) {
	if err := common.Validate(in); err != nil {
		return model.Relationship{}, err
	}
	if in.Status == "" {
		in.Status = model.StatusActive
	}

	payload := model.RelationshipPayload{
		Sentiment:     in.Sentiment,
		TrustLevel:    in.TrustLevel,
		PowerBalance:  in.PowerBalance,
		IntimacyLevel: in.IntimacyLevel,
		ConflictLevel: in.ConflictLevel,
		Status:        in.Status,
		Notes:         in.Notes,
	}

	rec, err := l.records.Append(ctx, in.ScopeID, pairKey(in.EntityA, in.EntityB, in.Type), payload, in.ValidFrom)
	if err != nil {
		return model.Relationship{}, err
	}

	l.logger.Debug("Recorded relationship",
		zap.String("entity_a", rec.Subject.Subject),
		zap.String("entity_b", rec.Subject.Object),
		zap.String("type", in.Type))

	return model.RelationshipFromRecord(rec), nil
}

// RelationshipAt returns the pair's state at t. With an empty relType the
// most recent record across every type is returned.
func (l *Ledger) RelationshipAt(ctx context.Context, scopeID, a, b string, t model.Timestamp, relType string) (model.Relationship, error) {
	if relType != "" {
		rec, err := l.records.QueryAsOf(ctx, scopeID, pairKey(a, b, relType), t)
		if err != nil {
			return model.Relationship{}, err
		}
		return model.RelationshipFromRecord(rec), nil
	}

	recs, err := l.pairRecords(ctx, scopeID, a, b, t)
	if err != nil {
		return model.Relationship{}, err
	}
	rec, ok := temporal.LatestAsOf(recs, t)
	if !ok {
		return model.Relationship{}, errs.NotFound("no relationship between %s and %s as of %v", a, b, float64(t))
	}
	return model.RelationshipFromRecord(rec), nil
}

// RelationshipsBetween returns the latest record of every type for one pair.
func (l *Ledger) RelationshipsBetween(ctx context.Context, scopeID, a, b string, t model.Timestamp) ([]model.Relationship, error) {
	recs, err := l.pairRecords(ctx, scopeID, a, b, t)
	if err != nil {
		return nil, err
	}
	return toRelationships(temporal.ReduceAsOf(recs, t), nil), nil
}

func (l *Ledger) pairRecords(ctx context.Context, scopeID, a, b string, t model.Timestamp) ([]model.Record[model.RelationshipPayload], error) {
	lo, hi := NormalizedPair(a, b)
	var recs []model.Record[model.RelationshipPayload]
	err := l.records.Replay(ctx, scopeID, t, temporal.Filter{Subject: lo, Object: hi}, func(r model.Record[model.RelationshipPayload]) {
		recs = append(recs, r)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships between %s and %s: %w", a, b, err)
	}
	return recs, nil
}

// RelationshipsFor scans every pair touching entityID and keeps the most
// recent record per (pair, type), filtering only after that reduction.
func (l *Ledger) RelationshipsFor(ctx context.Context, scopeID, entityID string, t model.Timestamp, filter Filter) ([]model.Relationship, error) {
	recs, err := l.records.QueryAllAsOf(ctx, scopeID, t, temporal.Filter{Involving: entityID, Kind: filter.Type})
	if err != nil {
		return nil, fmt.Errorf("failed to load relationships of %s: %w", entityID, err)
	}
	return toRelationships(recs, func(r model.Relationship) bool {
		return filter.Status == "" || r.Status == filter.Status
	}), nil
}

// Delta compares one relationship type of the pair at t0 and t1. A missing
// endpoint leaves the corresponding changes nil rather than treating its
// fields as zero. An empty relType is accepted only when the pair has a
// single type across both endpoints.
func (l *Ledger) Delta(ctx context.Context, scopeID, a, b string, t0, t1 model.Timestamp, relType string) (model.RelationshipDelta, error) {
	lo, hi := NormalizedPair(a, b)
	d := model.RelationshipDelta{EntityA: lo, EntityB: hi, From: t0, To: t1}

	if relType == "" {
		var err error
		if relType, err = l.soleType(ctx, scopeID, a, b, t0, t1); err != nil {
			return d, err
		}
	}
	d.Type = relType

	before, err := l.optionalAt(ctx, scopeID, a, b, t0, relType)
	if err != nil {
		return d, err
	}
	after, err := l.optionalAt(ctx, scopeID, a, b, t1, relType)
	if err != nil {
		return d, err
	}
	if before == nil && after == nil {
		return d, errs.NotFound("no relationship between %s and %s at either endpoint", a, b)
	}

	d.Before, d.After = before, after
	if before != nil && after != nil {
		d.Changes = model.DimensionChanges{
			Sentiment:     diff(before.Sentiment, after.Sentiment),
			TrustLevel:    diff(before.TrustLevel, after.TrustLevel),
			PowerBalance:  diff(before.PowerBalance, after.PowerBalance),
			IntimacyLevel: diff(before.IntimacyLevel, after.IntimacyLevel),
			ConflictLevel: diff(before.ConflictLevel, after.ConflictLevel),
		}
		d.StatusChanged = before.Status != after.Status
	}
	return d, nil
}

func (l *Ledger) soleType(ctx context.Context, scopeID, a, b string, times ...model.Timestamp) (string, error) {
	seen := make(map[string]struct{})
	for _, t := range times {
		rels, err := l.RelationshipsBetween(ctx, scopeID, a, b, t)
		if err != nil {
			return "", err
		}
		for _, r := range rels {
			seen[r.Type] = struct{}{}
		}
	}
	switch len(seen) {
	case 0:
		return "", errs.NotFound("no relationship between %s and %s at either endpoint", a, b)
	case 1:
		for t := range seen {
			return t, nil
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return "", errs.Validation("relationship type is required: %s and %s have types %v", a, b, types)
}

func (l *Ledger) optionalAt(ctx context.Context, scopeID, a, b string, t model.Timestamp, relType string) (*model.Relationship, error) {
	r, err := l.RelationshipAt(ctx, scopeID, a, b, t, relType)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func diff(from, to float64) *float64 {
	d := to - from
	return &d
}

// FindConflicts returns pairs whose latest state at t has ConflictLevel >=
// minLevel, most heated first.
func (l *Ledger) FindConflicts(ctx context.Context, scopeID string, minLevel float64, t model.Timestamp) ([]model.Relationship, error) {
	out, err := l.latestWhere(ctx, scopeID, t, func(r model.Relationship) bool {
		return r.ConflictLevel >= minLevel
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ConflictLevel > out[j].ConflictLevel })
	return out, nil
}

// FindBySentiment returns pairs whose latest sentiment at t satisfies op
// against threshold.
func (l *Ledger) FindBySentiment(ctx context.Context, scopeID string, threshold float64, op Comparison, t model.Timestamp) ([]model.Relationship, error) {
	if _, err := ParseComparison(string(op)); err != nil {
		return nil, err
	}
	return l.latestWhere(ctx, scopeID, t, func(r model.Relationship) bool {
		return op.holds(r.Sentiment, threshold)
	})
}

func (l *Ledger) latestWhere(ctx context.Context, scopeID string, t model.Timestamp, keep func(model.Relationship) bool) ([]model.Relationship, error) {
	recs, err := l.records.QueryAllAsOf(ctx, scopeID, t, temporal.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to scan relationships: %w", err)
	}
	return toRelationships(recs, keep), nil
}

// History returns every record of one (pair, type).
func (l *Ledger) History(ctx context.Context, scopeID, a, b, relType string) ([]model.Relationship, error) {
	recs, err := l.records.History(ctx, scopeID, pairKey(a, b, relType))
	if err != nil {
		return nil, err
	}
	return toRelationships(recs, nil), nil
}

func toRelationships(recs []model.Record[model.RelationshipPayload], keep func(model.Relationship) bool) []model.Relationship {
	out := make([]model.Relationship, 0, len(recs))
	for _, rec := range recs {
		r := model.RelationshipFromRecord(rec)
		if keep != nil && !keep(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}
