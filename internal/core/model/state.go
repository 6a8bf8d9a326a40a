package model

// State is a schema-less document describing an asset at a point in time.
type State map[string]any

type Snapshot struct {
	AssetID    string    `json:"asset_id"`
	AtEventRef string    `json:"at_event_ref"`
	State      State     `json:"state"`
	CreatedAt  Timestamp `json:"created_at"`
}

type Delta struct {
	AssetID          string    `json:"asset_id"`
	EventRef         string    `json:"event_ref"`
	PreviousEventRef string    `json:"previous_event_ref,omitempty"`
	Patch            State     `json:"patch"`
	CreatedAt        Timestamp `json:"created_at"`
}

type Reconstruction struct {
	AssetID       string    `json:"asset_id"`
	Ref           string    `json:"ref"`
	At            Timestamp `json:"at"`
	State         State     `json:"state"`
	SnapshotRef   string    `json:"snapshot_ref,omitempty"`
	DeltasApplied int       `json:"deltas_applied"`
	FromCache     bool      `json:"from_cache"`
}
