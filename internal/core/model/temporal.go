package model

import (
	"math"
	"time"
)

// Timestamp is a point in narrative (story-internal) time.
type Timestamp float64

func (t Timestamp) IsFinite() bool {
	f := float64(t)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// SubjectKey identifies the thing a temporal record describes. Facts use
// Subject/Kind/Key as (entity, factType, factKey); relationships use
// Subject/Object as the normalized pair and Kind as the relationship type.
type SubjectKey struct {
	Subject string `json:"subject"`
	Object  string `json:"object,omitempty"`
	Kind    string `json:"kind"`
	Key     string `json:"key,omitempty"`
}

func (k SubjectKey) Involves(entityID string) bool {
	return k.Subject == entityID || k.Object == entityID
}

func (k SubjectKey) Less(o SubjectKey) bool {
	if k.Subject != o.Subject {
		return k.Subject < o.Subject
	}
	if k.Object != o.Object {
		return k.Object < o.Object
	}
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	return k.Key < o.Key
}

// Record is an immutable, versioned entry in a ledger. Seq is assigned by the
// store and breaks ties between records inserted in the same instant.
type Record[P any] struct {
	ID         string     `json:"id"`
	ScopeID    string     `json:"scope_id"`
	Subject    SubjectKey `json:"subject_key"`
	Payload    P          `json:"payload"`
	ValidFrom  Timestamp  `json:"valid_from"`
	InsertedAt time.Time  `json:"inserted_at"`
	Seq        uint64     `json:"seq"`
}
