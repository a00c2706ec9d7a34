// Package tts synthesizes reply text to audio artifacts. Two engines exist:
// a free Google Translate voice for fast mode, and the Murf premium voice
// service for quality mode with download retries and fast-engine fallback.
package tts

import "context"

// Synthesizer turns text into an audio artifact for delivery.
type Synthesizer interface {
	// Synthesize renders text into an artifact named by basename inside the
	// audio directory. The returned reference is either a local file path or
	// a directly reachable HTTPS URL.
	Synthesize(ctx context.Context, text, basename string) (string, error)
}
