package model

type VoiceProfile struct {
	VocabularyLevel   string   `json:"vocabulary_level"`
	SentenceStructure string   `json:"sentence_structure"`
	Formality         string   `json:"formality"`
	Dialect           string   `json:"dialect,omitempty"`
	EmotionalBaseline string   `json:"emotional_baseline,omitempty"`
	VerbalTics        []string `json:"verbal_tics,omitempty"`
	SpeechPatterns    []string `json:"speech_patterns,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// VoiceProfileInput is the body of a voice profile write; the entity comes
// from the path.
type VoiceProfileInput struct {
	ScopeID   string       `json:"scope_id" validate:"required"`
	ValidFrom Timestamp    `json:"valid_from"`
	Profile   VoiceProfile `json:"profile"`
}

type VoiceRecord struct {
	ID        string       `json:"id"`
	ScopeID   string       `json:"scope_id"`
	EntityID  string       `json:"entity_id"`
	ValidFrom Timestamp    `json:"valid_from"`
	Profile   VoiceProfile `json:"profile"`
}

// VoiceHints is the condensed voice guidance handed to generation tools.
// IsDefault is set when no profile existed at the requested time.
type VoiceHints struct {
	EntityID  string       `json:"entity_id"`
	Profile   VoiceProfile `json:"profile"`
	Hints     []string     `json:"hints"`
	IsDefault bool         `json:"is_default"`
}
