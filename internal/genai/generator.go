// Package genai provides reply generation against remote language-model
// providers, with first-success-wins fallback across providers.
package genai

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/thevedantt/voicebot/internal/models"
)

// ApologyText stands in for the assistant turn when every provider fails.
const ApologyText = "Sorry, I'm having trouble answering right now."

// Generator turns a message history into response text.
type Generator interface {
	Generate(ctx context.Context, turns []models.ConversationTurn) (string, error)
}

// FallbackGenerator tries an ordered list of providers and returns the first
// usable response. When every provider fails it returns the fixed apology
// text; it never returns an error to its caller.
type FallbackGenerator struct {
	generators []Generator
}

// NewFallbackGenerator creates a first-success-wins chain over the given
// providers in order.
func NewFallbackGenerator(generators ...Generator) *FallbackGenerator {
	return &FallbackGenerator{generators: generators}
}

// Generate iterates the providers in priority order, short-circuiting on the
// first non-empty response. Provider failures are aggregated for logging only.
func (f *FallbackGenerator) Generate(ctx context.Context, turns []models.ConversationTurn) (string, error) {
	var failures []error
	for _, gen := range f.generators {
		text, err := gen.Generate(ctx, turns)
		if err != nil {
			failures = append(failures, err)
			slog.Warn("FallbackGenerator provider failed, trying next", "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			failures = append(failures, errors.New("provider returned empty response"))
			slog.Warn("FallbackGenerator provider returned no content, trying next")
			continue
		}
		return text, nil
	}

	slog.Error("FallbackGenerator all providers failed", "error", errors.Join(failures...))
	return ApologyText, nil
}
