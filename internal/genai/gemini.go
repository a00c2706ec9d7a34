package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	googlegenai "google.golang.org/genai"

	"github.com/thevedantt/voicebot/internal/models"
)

// DefaultGeminiModel is the secondary-provider model selector.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiOpts holds configuration options for the Gemini generator.
type GeminiOpts struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiOption defines a configuration option for the Gemini generator.
type GeminiOption func(*GeminiOpts)

// WithGeminiAPIKey sets the Gemini API key.
func WithGeminiAPIKey(key string) GeminiOption {
	return func(o *GeminiOpts) { o.APIKey = key }
}

// WithGeminiModel overrides the model selector.
func WithGeminiModel(model string) GeminiOption {
	return func(o *GeminiOpts) { o.Model = model }
}

// WithGeminiBaseURL overrides the API endpoint, mainly for tests.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(o *GeminiOpts) { o.BaseURL = url }
}

// GeminiGenerator is the secondary provider, using the Gemini API through the
// official SDK.
type GeminiGenerator struct {
	client *googlegenai.Client
	model  string
}

// NewGeminiGenerator creates the secondary generator. The API key falls back
// to the GEMINI_API_KEY environment variable.
func NewGeminiGenerator(ctx context.Context, opts ...GeminiOption) (*GeminiGenerator, error) {
	cfg := GeminiOpts{Model: DefaultGeminiModel}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key must be provided")
	}

	client, err := googlegenai.NewClient(ctx, &googlegenai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: googlegenai.BackendGeminiAPI,
		HTTPOptions: googlegenai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: cfg.Model}, nil
}

// Generate sends the history as Gemini contents and returns the first
// candidate's text.
func (g *GeminiGenerator) Generate(ctx context.Context, turns []models.ConversationTurn) (string, error) {
	contents := toGeminiContents(turns)
	if len(contents) == 0 {
		return "", fmt.Errorf("gemini: no messages to send")
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}

	slog.Debug("GeminiGenerator completion received", "model", g.model, "chars", len(text))
	return text, nil
}

// toGeminiContents maps conversation turns to Gemini content. Gemini has no
// separate system role in history, so system turns become user instructions.
func toGeminiContents(turns []models.ConversationTurn) []*googlegenai.Content {
	out := make([]*googlegenai.Content, 0, len(turns))
	for _, turn := range turns {
		role := googlegenai.RoleUser
		if turn.Role == models.RoleAssistant {
			role = googlegenai.RoleModel
		}
		out = append(out, &googlegenai.Content{
			Role:  role,
			Parts: []*googlegenai.Part{{Text: turn.Content}},
		})
	}
	return out
}
