package temporal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
)

// Ledger is the append/query surface every temporal domain is built on. The
// domain ledgers differ only in payload type and in how they build subject
// keys; the reduction is shared.
type Ledger[P any] struct {
	store Store[P]
	opts  options
}

type options struct {
	now   func() time.Time
	newID func() string
}

type Option func(*options)

// WithClock overrides the wall clock used for InsertedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}

func NewLedger[P any](store Store[P], opts ...Option) *Ledger[P] {
	o := options{
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Ledger[P]{store: store, opts: o}
}

// Append validates and stores one record. It never rejects a record because
// of ordering; facts are routinely recorded after the fact.
func (l *Ledger[P]) Append(ctx context.Context, scopeID string, key model.SubjectKey, payload P, validFrom model.Timestamp) (model.Record[P], error) {
	if !validFrom.IsFinite() {
		return model.Record[P]{}, errs.Validation("valid_from must be a finite timestamp, got %v", float64(validFrom))
	}
	if scopeID == "" {
		return model.Record[P]{}, errs.Validation("scope_id is required")
	}
	if key.Subject == "" || key.Kind == "" {
		return model.Record[P]{}, errs.Validation("subject key requires subject and kind")
	}

	rec := model.Record[P]{
		ID:         l.opts.newID(),
		ScopeID:    scopeID,
		Subject:    key,
		Payload:    payload,
		ValidFrom:  validFrom,
		InsertedAt: l.opts.now(),
	}

	stored, err := l.store.Insert(ctx, rec)
	if err != nil {
		return model.Record[P]{}, fmt.Errorf("failed to append record: %w", err)
	}
	return stored, nil
}

// QueryAsOf returns the current record for key at time t.
func (l *Ledger[P]) QueryAsOf(ctx context.Context, scopeID string, key model.SubjectKey, t model.Timestamp) (model.Record[P], error) {
	if err := checkTime(t); err != nil {
		return model.Record[P]{}, err
	}

	recs, err := l.store.Scan(ctx, scopeID, ForKey(key).At(t))
	if err != nil {
		return model.Record[P]{}, fmt.Errorf("failed to query subject: %w", err)
	}

	var candidates []model.Record[P]
	for _, r := range recs {
		if r.Subject == key {
			candidates = append(candidates, r)
		}
	}
	rec, ok := LatestAsOf(candidates, t)
	if !ok {
		return model.Record[P]{}, errs.NotFound("no record for %s/%s/%s/%s as of %v", key.Subject, key.Object, key.Kind, key.Key, float64(t))
	}
	return rec, nil
}

// QueryAllAsOf returns, for every distinct subject key matching filter, the
// record current at t. Subjects with nothing at or before t are omitted.
func (l *Ledger[P]) QueryAllAsOf(ctx context.Context, scopeID string, t model.Timestamp, filter Filter) ([]model.Record[P], error) {
	if err := checkTime(t); err != nil {
		return nil, err
	}

	recs, err := l.store.Scan(ctx, scopeID, filter.At(t))
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger: %w", err)
	}
	return ReduceAsOf(recs, t), nil
}

// Replay feeds every record matching filter with ValidFrom <= t to fn in
// ledger order. Folding these into a map is how callers rebuild state at t.
func (l *Ledger[P]) Replay(ctx context.Context, scopeID string, t model.Timestamp, filter Filter, fn func(model.Record[P])) error {
	if err := checkTime(t); err != nil {
		return err
	}

	recs, err := l.store.Scan(ctx, scopeID, filter.At(t))
	if err != nil {
		return fmt.Errorf("failed to scan ledger: %w", err)
	}
	for _, r := range recs {
		fn(r)
	}
	return nil
}

// History returns the full ordered history of one subject key.
func (l *Ledger[P]) History(ctx context.Context, scopeID string, key model.SubjectKey) ([]model.Record[P], error) {
	recs, err := l.store.Scan(ctx, scopeID, ForKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	out := recs[:0]
	for _, r := range recs {
		if r.Subject == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *Ledger[P]) Get(ctx context.Context, id string) (model.Record[P], error) {
	return l.store.Get(ctx, id)
}

func checkTime(t model.Timestamp) error {
	if !t.IsFinite() {
		return errs.InvalidArgument("query time must be finite, got %v", float64(t))
	}
	return nil
}
