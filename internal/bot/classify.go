// Package bot orchestrates the reply cycle: intent classification, the
// per-user session state machine, reply generation, and the asynchronous
// synthesize-and-deliver units.
package bot

import (
	"strings"

	"github.com/thevedantt/voicebot/internal/models"
)

// intent is the classification of one inbound message.
type intent int

const (
	intentFreeText intent = iota
	intentGreeting
	intentFarewell
	intentContinueYes
	intentContinueNo
)

// greetingVocabulary routes to the greeting branch on an exact match of the
// normalized text, regardless of session state.
var greetingVocabulary = map[string]bool{
	"hi":           true,
	"hello":        true,
	"hey":          true,
	"start":        true,
	"menu":         true,
	"good morning": true,
	"i need help":  true,
}

// farewellVocabulary ends the chat when any entry appears as a substring of
// the normalized text.
var farewellVocabulary = []string{
	"bye", "goodbye", "thanks", "thank you", "thx", "bye bye",
	"see you", "see ya", "end", "stop", "exit", "good night",
	"goodnight", "take care",
}

var continueYesVocabulary = map[string]bool{
	"y": true, "yes": true, "yeah": true, "yep": true,
}

var continueNoVocabulary = map[string]bool{
	"n": true, "no": true, "nope": true,
}

// normalize trims and lower-cases inbound text before classification.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func isGreeting(norm string) bool {
	return greetingVocabulary[norm]
}

func isFarewell(norm string) bool {
	for _, word := range farewellVocabulary {
		if strings.Contains(norm, word) {
			return true
		}
	}
	return false
}

// classify resolves normalized text against the current session state, in
// priority order: greeting, farewell, continuation answer, free text.
// Continuation answers are only reachable in the continue state.
func classify(norm string, state models.SessionState) intent {
	switch {
	case isGreeting(norm):
		return intentGreeting
	case isFarewell(norm):
		return intentFarewell
	case state == models.StateContinue && continueNoVocabulary[norm]:
		return intentContinueNo
	case state == models.StateContinue && continueYesVocabulary[norm]:
		return intentContinueYes
	default:
		return intentFreeText
	}
}
