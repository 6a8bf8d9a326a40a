package model

type RelationshipStatus string

const (
	StatusActive   RelationshipStatus = "active"
	StatusStrained RelationshipStatus = "strained"
	StatusBroken   RelationshipStatus = "broken"
	StatusDormant  RelationshipStatus = "dormant"
)

type RelationshipPayload struct {
	Sentiment     float64            `json:"sentiment"`
	TrustLevel    float64            `json:"trust_level"`
	PowerBalance  float64            `json:"power_balance"`
	IntimacyLevel float64            `json:"intimacy_level"`
	ConflictLevel float64            `json:"conflict_level"`
	Status        RelationshipStatus `json:"status"`
	Notes         string             `json:"notes,omitempty"`
}

type RelationshipInput struct {
	ScopeID       string             `json:"scope_id" validate:"required"`
	EntityA       string             `json:"entity_a" validate:"required"`
	EntityB       string             `json:"entity_b" validate:"required,nefield=EntityA"`
	Type          string             `json:"relationship_type" validate:"required"`
	Sentiment     float64            `json:"sentiment"`
	TrustLevel    float64            `json:"trust_level"`
	PowerBalance  float64            `json:"power_balance"`
	IntimacyLevel float64            `json:"intimacy_level"`
	ConflictLevel float64            `json:"conflict_level"`
	Status        RelationshipStatus `json:"status" validate:"omitempty,oneof=active strained broken dormant"`
	Notes         string             `json:"notes,omitempty"`
	ValidFrom     Timestamp          `json:"valid_from"`
}

// Relationship is the state of one (pair, type) as of some time. EntityA and
// EntityB are always in normalized (sorted) order.
type Relationship struct {
	ID        string    `json:"id"`
	ScopeID   string    `json:"scope_id"`
	EntityA   string    `json:"entity_a"`
	EntityB   string    `json:"entity_b"`
	Type      string    `json:"relationship_type"`
	ValidFrom Timestamp `json:"valid_from"`
	RelationshipPayload
}

func RelationshipFromRecord(r Record[RelationshipPayload]) Relationship {
	return Relationship{
		ID:                  r.ID,
		ScopeID:             r.ScopeID,
		EntityA:             r.Subject.Subject,
		EntityB:             r.Subject.Object,
		Type:                r.Subject.Kind,
		ValidFrom:           r.ValidFrom,
		RelationshipPayload: r.Payload,
	}
}

// DimensionChanges holds signed differences (to - from). A nil field means one
// endpoint was missing.
type DimensionChanges struct {
	Sentiment     *float64 `json:"sentiment"`
	TrustLevel    *float64 `json:"trust_level"`
	PowerBalance  *float64 `json:"power_balance"`
	IntimacyLevel *float64 `json:"intimacy_level"`
	ConflictLevel *float64 `json:"conflict_level"`
}

type RelationshipDelta struct {
	EntityA       string           `json:"entity_a"`
	EntityB       string           `json:"entity_b"`
	Type          string           `json:"relationship_type"`
	From          Timestamp        `json:"from"`
	To            Timestamp        `json:"to"`
	Before        *Relationship    `json:"before"`
	After         *Relationship    `json:"after"`
	Changes       DimensionChanges `json:"changes"`
	StatusChanged bool             `json:"status_changed"`
}

// PairRelationships lists the latest record of every relationship type
// between two entities.
type PairRelationships struct {
	EntityA       string         `json:"entity_a"`
	EntityB       string         `json:"entity_b"`
	Relationships []Relationship `json:"relationships"`
}
