package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/thevedantt/voicebot/internal/models"
)

// Defaults for the OpenRouter-hosted primary provider.
const (
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultOpenRouterModel   = "openai/gpt-oss-20b:free"
)

// OpenRouterOpts holds configuration options for the OpenRouter generator.
type OpenRouterOpts struct {
	APIKey  string
	BaseURL string
	Model   string
	// Referer and Title populate the attribution headers OpenRouter expects.
	Referer string
	Title   string
}

// OpenRouterOption defines a configuration option for the OpenRouter generator.
type OpenRouterOption func(*OpenRouterOpts)

// WithOpenRouterAPIKey sets the OpenRouter API key.
func WithOpenRouterAPIKey(key string) OpenRouterOption {
	return func(o *OpenRouterOpts) { o.APIKey = key }
}

// WithOpenRouterBaseURL overrides the API root, mainly for tests.
func WithOpenRouterBaseURL(url string) OpenRouterOption {
	return func(o *OpenRouterOpts) { o.BaseURL = url }
}

// WithOpenRouterModel overrides the model selector.
func WithOpenRouterModel(model string) OpenRouterOption {
	return func(o *OpenRouterOpts) { o.Model = model }
}

// OpenRouterGenerator is the primary provider: an OpenAI-compatible chat
// completion endpoint hosted by OpenRouter.
type OpenRouterGenerator struct {
	client openai.Client
	model  string
}

// NewOpenRouterGenerator creates the primary generator. The API key falls
// back to the OPENROUTER_API_KEY environment variable.
func NewOpenRouterGenerator(opts ...OpenRouterOption) (*OpenRouterGenerator, error) {
	cfg := OpenRouterOpts{
		BaseURL: DefaultOpenRouterBaseURL,
		Model:   DefaultOpenRouterModel,
		Referer: "http://localhost:5000",
		Title:   "WhatsApp GPT Bot",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key must be provided")
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHeader("HTTP-Referer", cfg.Referer),
		option.WithHeader("X-Title", cfg.Title),
	)
	return &OpenRouterGenerator{client: client, model: cfg.Model}, nil
}

// Generate sends the role-tagged history and returns the completion text.
func (g *OpenRouterGenerator) Generate(ctx context.Context, turns []models.ConversationTurn) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case models.RoleSystem:
			messages = append(messages, openai.SystemMessage(turn.Content))
		case models.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Content))
		default:
			messages = append(messages, openai.UserMessage(turn.Content))
		}
	}

	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(g.model),
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openrouter completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("openrouter returned no choices")
	}

	slog.Debug("OpenRouterGenerator completion received", "model", g.model, "chars", len(completion.Choices[0].Message.Content))
	return completion.Choices[0].Message.Content, nil
}
