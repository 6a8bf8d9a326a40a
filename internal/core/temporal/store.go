// Package temporal implements the append-only, point-in-time record store
// shared by the fact, relationship and voice ledgers, and the single
// "latest as of" reduction they all use.
package temporal

import (
	"context"

	"github.com/agenthands/chronicle/internal/core/model"
)

// Store persists immutable records. Implementations never reject a record
// because of its position in time: out-of-order inserts are legal.
type Store[P any] interface {
	// Insert stores rec and returns it with the store-assigned Seq.
	Insert(ctx context.Context, rec model.Record[P]) (model.Record[P], error)
	// Get returns the record with the given id or errs.ErrNotFound.
	Get(ctx context.Context, id string) (model.Record[P], error)
	// Scan returns every record in scope matching filter, in ledger order
	// (see Precedes).
	Scan(ctx context.Context, scopeID string, filter Filter) ([]model.Record[P], error)
}

// Filter selects records by subject key fields. Empty fields match anything.
type Filter struct {
	Subject   string
	Object    string
	Involving string
	Kind      string
	Key       string
	// AsOf, when set, drops records whose ValidFrom is after it.
	AsOf *model.Timestamp
}

// ForKey returns a filter matching exactly one subject key.
func ForKey(key model.SubjectKey) Filter {
	return Filter{Subject: key.Subject, Object: key.Object, Kind: key.Kind, Key: key.Key}
}

func (f Filter) At(t model.Timestamp) Filter {
	f.AsOf = &t
	return f
}

func (f Filter) MatchesKey(k model.SubjectKey) bool {
	if f.Subject != "" && k.Subject != f.Subject {
		return false
	}
	if f.Object != "" && k.Object != f.Object {
		return false
	}
	if f.Involving != "" && !k.Involves(f.Involving) {
		return false
	}
	if f.Kind != "" && k.Kind != f.Kind {
		return false
	}
	if f.Key != "" && k.Key != f.Key {
		return false
	}
	return true
}

func (f Filter) MatchesTime(t model.Timestamp) bool {
	return f.AsOf == nil || t <= *f.AsOf
}
