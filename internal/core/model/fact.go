package model

// FactPayload is what an entity knows (or wrongly believes) about one key.
type FactPayload struct {
	Value          any     `json:"value"`
	SourceType     string  `json:"source_type"`
	SourceEntityID string  `json:"source_entity_id,omitempty"`
	SourceEventID  string  `json:"source_event_id,omitempty"`
	Confidence     float64 `json:"confidence"`
	IsTrue         bool    `json:"is_true"`
}

type FactInput struct {
	ScopeID        string    `json:"scope_id" validate:"required"`
	EntityID       string    `json:"entity_id" validate:"required"`
	FactType       string    `json:"fact_type" validate:"required"`
	FactKey        string    `json:"fact_key" validate:"required"`
	Value          any       `json:"value"`
	SourceType     string    `json:"source_type" validate:"required"`
	SourceEntityID string    `json:"source_entity_id,omitempty"`
	SourceEventID  string    `json:"source_event_id,omitempty"`
	Confidence     float64   `json:"confidence" validate:"gte=0,lte=1"`
	IsTrue         bool      `json:"is_true"`
	ValidFrom      Timestamp `json:"valid_from"`
}

// KnownFact is the typed view of a fact record returned by knowledge queries.
type KnownFact struct {
	ID             string    `json:"id"`
	ScopeID        string    `json:"scope_id"`
	EntityID       string    `json:"entity_id"`
	FactType       string    `json:"fact_type"`
	FactKey        string    `json:"fact_key"`
	Value          any       `json:"value"`
	SourceType     string    `json:"source_type"`
	SourceEntityID string    `json:"source_entity_id,omitempty"`
	SourceEventID  string    `json:"source_event_id,omitempty"`
	Confidence     float64   `json:"confidence"`
	IsTrue         bool      `json:"is_true"`
	ValidFrom      Timestamp `json:"valid_from"`
}

func KnownFactFromRecord(r Record[FactPayload]) KnownFact {
	return KnownFact{
		ID:             r.ID,
		ScopeID:        r.ScopeID,
		EntityID:       r.Subject.Subject,
		FactType:       r.Subject.Kind,
		FactKey:        r.Subject.Key,
		Value:          r.Payload.Value,
		SourceType:     r.Payload.SourceType,
		SourceEntityID: r.Payload.SourceEntityID,
		SourceEventID:  r.Payload.SourceEventID,
		Confidence:     r.Payload.Confidence,
		IsTrue:         r.Payload.IsTrue,
		ValidFrom:      r.ValidFrom,
	}
}

type ValueDifference struct {
	FactType string    `json:"fact_type"`
	FactKey  string    `json:"fact_key"`
	A        KnownFact `json:"a"`
	B        KnownFact `json:"b"`
}

type DivergenceCounts struct {
	OnlyA     int `json:"only_a"`
	OnlyB     int `json:"only_b"`
	Differs   int `json:"differs"`
	Identical int `json:"identical"`
	Total     int `json:"total"`
}

// Divergence partitions the union of two entities' knowledge keys.
type Divergence struct {
	EntityA   string            `json:"entity_a"`
	EntityB   string            `json:"entity_b"`
	At        Timestamp         `json:"at"`
	OnlyA     []KnownFact       `json:"only_a"`
	OnlyB     []KnownFact       `json:"only_b"`
	Differs   []ValueDifference `json:"differs"`
	Identical []KnownFact       `json:"identical"`
	Counts    DivergenceCounts  `json:"counts"`
}

// Knower is an entity that holds a given fact key at some time.
type Knower struct {
	EntityID string    `json:"entity_id"`
	Fact     KnownFact `json:"fact"`
}
