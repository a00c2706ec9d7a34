package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thevedantt/voicebot/internal/util"
)

// DefaultTranslateTTSURL is the free Google Translate speech endpoint used by
// fast mode.
const DefaultTranslateTTSURL = "https://translate.google.com/translate_tts"

// The translate endpoint rejects long inputs, so text is synthesized in
// chunks and the MP3 segments are concatenated.
const translateChunkLimit = 200

// GoogleTranslateOpts holds configuration options for the fast engine.
type GoogleTranslateOpts struct {
	AudioDir   string
	Lang       string
	BaseURL    string
	HTTPClient *http.Client
}

// GoogleTranslateOption defines a configuration option for the fast engine.
type GoogleTranslateOption func(*GoogleTranslateOpts)

// WithTranslateAudioDir sets the output directory for synthesized files.
func WithTranslateAudioDir(dir string) GoogleTranslateOption {
	return func(o *GoogleTranslateOpts) { o.AudioDir = dir }
}

// WithTranslateLang sets the synthesis language tag.
func WithTranslateLang(lang string) GoogleTranslateOption {
	return func(o *GoogleTranslateOpts) { o.Lang = lang }
}

// WithTranslateBaseURL overrides the endpoint, mainly for tests.
func WithTranslateBaseURL(u string) GoogleTranslateOption {
	return func(o *GoogleTranslateOpts) { o.BaseURL = u }
}

// WithTranslateHTTPClient injects the HTTP client.
func WithTranslateHTTPClient(c *http.Client) GoogleTranslateOption {
	return func(o *GoogleTranslateOpts) { o.HTTPClient = c }
}

// GoogleTranslateSynthesizer is the simple, fast synthesis engine. It is used
// directly in fast mode and as the last-resort fallback in quality mode.
type GoogleTranslateSynthesizer struct {
	opts GoogleTranslateOpts
}

// NewGoogleTranslateSynthesizer creates the fast engine.
func NewGoogleTranslateSynthesizer(opts ...GoogleTranslateOption) *GoogleTranslateSynthesizer {
	cfg := GoogleTranslateOpts{
		AudioDir: "audio",
		Lang:     "en",
		BaseURL:  DefaultTranslateTTSURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &GoogleTranslateSynthesizer{opts: cfg}
}

// Synthesize renders the text chunk by chunk into a single local MP3 file and
// returns its path.
func (g *GoogleTranslateSynthesizer) Synthesize(ctx context.Context, text, basename string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("nothing to synthesize")
	}

	safeName := util.SanitizeFilename(basename)
	targetPath := filepath.Join(g.opts.AudioDir, safeName)

	out, err := os.Create(targetPath)
	if err != nil {
		return "", fmt.Errorf("failed to create audio file: %w", err)
	}

	start := time.Now()
	for _, chunk := range splitChunks(text, translateChunkLimit) {
		if err := g.fetchChunk(ctx, chunk, out); err != nil {
			out.Close()
			os.Remove(targetPath)
			return "", err
		}
	}
	if err := out.Close(); err != nil {
		os.Remove(targetPath)
		return "", fmt.Errorf("failed to close audio file: %w", err)
	}

	slog.Info("GoogleTranslateSynthesizer synthesis finished", "duration", time.Since(start), "path", targetPath)
	return targetPath, nil
}

func (g *GoogleTranslateSynthesizer) fetchChunk(ctx context.Context, chunk string, out io.Writer) error {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("client", "tw-ob")
	params.Set("tl", g.opts.Lang)
	params.Set("q", chunk)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.opts.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build synthesis request: %w", err)
	}

	resp, err := g.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("synthesis returned status %d", resp.StatusCode)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to write audio chunk: %w", err)
	}
	return nil
}

// splitChunks breaks text into pieces of at most limit runes, preferring
// whitespace boundaries.
func splitChunks(text string, limit int) []string {
	var chunks []string
	remaining := strings.TrimSpace(text)
	for len(remaining) > 0 {
		runes := []rune(remaining)
		if len(runes) <= limit {
			chunks = append(chunks, remaining)
			break
		}
		cut := limit
		for i := limit; i > 0; i-- {
			if runes[i-1] == ' ' || runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimSpace(string(runes[:cut])))
		remaining = strings.TrimSpace(string(runes[cut:]))
	}
	return chunks
}
