package model

type Scene struct {
	ID                 string    `json:"id"`
	ScopeID            string    `json:"scope_id"`
	Title              string    `json:"title,omitempty"`
	POVEntityID        string    `json:"pov_entity_id"`
	NarrativeTime      Timestamp `json:"narrative_time"`
	PresentEntityIDs   []string  `json:"present_entity_ids"`
	EnteringIDs        []string  `json:"entering_ids,omitempty"`
	ExitingIDs         []string  `json:"exiting_ids,omitempty"`
	ActiveConflictIDs  []string  `json:"active_conflict_ids,omitempty"`
	ActiveThemeIDs     []string  `json:"active_theme_ids,omitempty"`
	ForbiddenRevealIDs []string  `json:"forbidden_reveal_ids,omitempty"`
}

type Conflict struct {
	ID             string   `json:"id"`
	ScopeID        string   `json:"scope_id"`
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Status         string   `json:"status"`
	Intensity      float64  `json:"intensity"`
	ParticipantIDs []string `json:"participant_ids,omitempty"`
}

type Theme struct {
	ID          string `json:"id"`
	ScopeID     string `json:"scope_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type Arc struct {
	ID       string  `json:"id"`
	ScopeID  string  `json:"scope_id"`
	EntityID string  `json:"entity_id"`
	Name     string  `json:"name"`
	Phase    string  `json:"phase"`
	Progress float64 `json:"progress"`
}

type PacingCheckpoint struct {
	ID            string    `json:"id"`
	ScopeID       string    `json:"scope_id"`
	Name          string    `json:"name"`
	NarrativeTime Timestamp `json:"narrative_time"`
	TensionTarget float64   `json:"tension_target"`
	Notes         string    `json:"notes,omitempty"`
}

type Transition struct {
	ID          string `json:"id"`
	ScopeID     string `json:"scope_id"`
	FromSceneID string `json:"from_scene_id"`
	ToSceneID   string `json:"to_scene_id"`
	Type        string `json:"type"`
	Notes       string `json:"notes,omitempty"`
}
