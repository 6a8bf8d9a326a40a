package voice

import (
	"fmt"

	"github.com/agenthands/chronicle/internal/core/model"
)

var defaultProfile = model.VoiceProfile{
	VocabularyLevel:   "moderate",
	SentenceStructure: "varied",
	Formality:         "neutral",
}

func DefaultHints(entityID string) model.VoiceHints {
	h := Hints(entityID, defaultProfile)
	h.IsDefault = true
	return h
}

// Hints renders a profile as short imperative lines. Empty fields fall back
// to the default profile.
func Hints(entityID string, p model.VoiceProfile) model.VoiceHints {
	if p.VocabularyLevel == "" {
		p.VocabularyLevel = defaultProfile.VocabularyLevel
	}
	if p.SentenceStructure == "" {
		p.SentenceStructure = defaultProfile.SentenceStructure
	}
	if p.Formality == "" {
		p.Formality = defaultProfile.Formality
	}

	hints := []string{
		fmt.Sprintf("vocabulary: %s", p.VocabularyLevel),
		fmt.Sprintf("sentences: %s", p.SentenceStructure),
		fmt.Sprintf("formality: %s", p.Formality),
	}
	if p.Dialect != "" {
		hints = append(hints, fmt.Sprintf("dialect: %s", p.Dialect))
	}
	if p.EmotionalBaseline != "" {
		hints = append(hints, fmt.Sprintf("baseline emotion: %s", p.EmotionalBaseline))
	}
	for _, tic := range p.VerbalTics {
		hints = append(hints, fmt.Sprintf("verbal tic: %q", tic))
	}
	for _, pattern := range p.SpeechPatterns {
		hints = append(hints, fmt.Sprintf("pattern: %s", pattern))
	}

	return model.VoiceHints{EntityID: entityID, Profile: p, Hints: hints}
}
