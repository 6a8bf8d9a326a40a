package model

import "time"

type CausalType string

const (
	CausalDirect        CausalType = "direct_cause"
	CausalEnabling      CausalType = "enabling_condition"
	CausalMotivation    CausalType = "motivation"
	CausalPsychological CausalType = "psychological_trigger"
)

type CausalEdge struct {
	ID            string     `json:"id"`
	ScopeID       string     `json:"scope_id"`
	CauseEventID  string     `json:"cause_event_id"`
	EffectEventID string     `json:"effect_event_id"`
	Type          CausalType `json:"type"`
	Strength      int        `json:"strength"`
	Explanation   string     `json:"explanation,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type CausalEdgeInput struct {
	ScopeID       string     `json:"scope_id" validate:"required"`
	CauseEventID  string     `json:"cause_event_id" validate:"required"`
	EffectEventID string     `json:"effect_event_id" validate:"required"`
	Type          CausalType `json:"type" validate:"required,oneof=direct_cause enabling_condition motivation psychological_trigger"`
	Strength      int        `json:"strength" validate:"min=1,max=10"`
	Explanation   string     `json:"explanation,omitempty"`
}

// CausalEdgeUpdate carries the mutable fields. Type is present only so that an
// attempt to change it can be rejected.
type CausalEdgeUpdate struct {
	Type        *CausalType `json:"type,omitempty"`
	Strength    *int        `json:"strength,omitempty" validate:"omitempty,min=1,max=10"`
	Explanation *string     `json:"explanation,omitempty"`
}

type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

type TraversalNode struct {
	EventID string `json:"event_id"`
	Level   int    `json:"level"`
}

// TraversalEdge is always oriented cause -> effect regardless of the
// traversal direction.
type TraversalEdge struct {
	ID          string     `json:"id"`
	From        string     `json:"from"`
	To          string     `json:"to"`
	Type        CausalType `json:"type"`
	Strength    int        `json:"strength"`
	Explanation string     `json:"explanation,omitempty"`
}

type Traversal struct {
	Start     string          `json:"start"`
	Direction Direction       `json:"direction"`
	Depth     int             `json:"depth"`
	Nodes     []TraversalNode `json:"nodes"`
	Edges     []TraversalEdge `json:"edges"`
}
