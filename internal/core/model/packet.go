package model

import "time"

type Criticality string

const (
	// CriticalityCritical: the POV already knows the fact, so narration can leak it.
	CriticalityCritical Criticality = "critical"
	CriticalityStandard Criticality = "standard"
	// CriticalityUnresolved: the forbidden reveal does not reference a known fact.
	CriticalityUnresolved Criticality = "unresolved"
)

type POVContext struct {
	EntityID      string         `json:"entity_id"`
	Knowledge     []KnownFact    `json:"knowledge"`
	FalseBeliefs  []KnownFact    `json:"false_beliefs"`
	Voice         VoiceHints     `json:"voice"`
	Relationships []Relationship `json:"relationships"`
}

type CharacterContext struct {
	EntityID         string     `json:"entity_id"`
	IsPOV            bool       `json:"is_pov"`
	Entering         bool       `json:"entering"`
	Exiting          bool       `json:"exiting"`
	Voice            VoiceHints `json:"voice"`
	KnowledgeCount   int        `json:"knowledge_count"`
	FalseBeliefCount int        `json:"false_belief_count"`
}

type ForbiddenReveal struct {
	FactID      string      `json:"fact_id"`
	Resolved    bool        `json:"resolved"`
	EntityID    string      `json:"entity_id,omitempty"`
	FactType    string      `json:"fact_type,omitempty"`
	FactKey     string      `json:"fact_key,omitempty"`
	POVKnows    bool        `json:"pov_knows"`
	Criticality Criticality `json:"criticality"`
}

type PacingPosition struct {
	Previous *PacingCheckpoint `json:"previous,omitempty"`
	Next     *PacingCheckpoint `json:"next,omitempty"`
}

// ContextPacket is assembled fresh for every request and never persisted.
type ContextPacket struct {
	SceneID            string              `json:"scene_id"`
	ScopeID            string              `json:"scope_id"`
	NarrativeTime      Timestamp           `json:"narrative_time"`
	POV                POVContext          `json:"pov"`
	Characters         []CharacterContext  `json:"characters"`
	RelationshipMatrix []PairRelationships `json:"relationship_matrix"`
	Factions           [][]string          `json:"factions"`
	Conflicts          []Conflict          `json:"conflicts"`
	Themes             []Theme             `json:"themes"`
	Arcs               []Arc               `json:"arcs"`
	ForbiddenReveals   []ForbiddenReveal   `json:"forbidden_reveals"`
	Pacing             PacingPosition      `json:"pacing"`
	Transition         *Transition         `json:"transition,omitempty"`
	AssembledAt        time.Time           `json:"assembled_at"`
	AssemblyDuration   time.Duration       `json:"assembly_duration"`
}

type QuickContextPacket struct {
	SceneID          string        `json:"scene_id"`
	ScopeID          string        `json:"scope_id"`
	POVEntityID      string        `json:"pov_entity_id"`
	NarrativeTime    Timestamp     `json:"narrative_time"`
	Voices           []VoiceHints  `json:"voices"`
	AssembledAt      time.Time     `json:"assembled_at"`
	AssemblyDuration time.Duration `json:"assembly_duration"`
}
