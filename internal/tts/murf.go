package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thevedantt/voicebot/internal/retry"
	"github.com/thevedantt/voicebot/internal/util"
)

// Defaults for the Murf premium voice profile.
const (
	DefaultMurfBaseURL    = "https://api.murf.ai/v1"
	DefaultMurfVoiceID    = "ta-IN-iniya"
	DefaultMurfStyle      = "Narration"
	DefaultMurfLocale     = "en-IN"
	DefaultMurfFormat     = "MP3"
	DefaultMurfSampleRate = 24000
)

// MurfMaxChars caps the text sent to Murf; longer replies are truncated to
// keep generation and delivery latency reasonable.
const MurfMaxChars = 500

// MurfOpts holds configuration options for the quality engine.
type MurfOpts struct {
	APIKey     string
	BaseURL    string
	VoiceID    string
	Style      string
	Locale     string
	Format     string
	SampleRate float64
	AudioDir   string
	// PreferURL returns a reachable HTTPS result directly instead of
	// downloading it, trading a local copy for delivery latency.
	PreferURL  bool
	HTTPClient *http.Client
	// Fallback is the last-resort engine when Murf or the download fails.
	Fallback Synthesizer
	// DownloadPolicy bounds the artifact download retries.
	DownloadPolicy retry.Policy
}

// MurfOption defines a configuration option for the quality engine.
type MurfOption func(*MurfOpts)

// WithMurfAPIKey sets the Murf API key.
func WithMurfAPIKey(key string) MurfOption {
	return func(o *MurfOpts) { o.APIKey = key }
}

// WithMurfBaseURL overrides the API root, mainly for tests.
func WithMurfBaseURL(u string) MurfOption {
	return func(o *MurfOpts) { o.BaseURL = strings.TrimSuffix(u, "/") }
}

// WithMurfAudioDir sets the output directory for downloaded artifacts.
func WithMurfAudioDir(dir string) MurfOption {
	return func(o *MurfOpts) { o.AudioDir = dir }
}

// WithMurfPreferURL toggles returning reachable URLs without downloading.
func WithMurfPreferURL(prefer bool) MurfOption {
	return func(o *MurfOpts) { o.PreferURL = prefer }
}

// WithMurfFallback sets the last-resort synthesis engine.
func WithMurfFallback(s Synthesizer) MurfOption {
	return func(o *MurfOpts) { o.Fallback = s }
}

// WithMurfHTTPClient injects the HTTP client.
func WithMurfHTTPClient(c *http.Client) MurfOption {
	return func(o *MurfOpts) { o.HTTPClient = c }
}

// WithMurfDownloadPolicy overrides the artifact download retry policy.
func WithMurfDownloadPolicy(p retry.Policy) MurfOption {
	return func(o *MurfOpts) { o.DownloadPolicy = p }
}

// MurfSynthesizer is the quality engine: the Murf speech generation API with
// a named voice profile, bounded download retries, and fast-engine fallback.
type MurfSynthesizer struct {
	opts MurfOpts
}

// NewMurfSynthesizer creates the quality engine. The API key falls back to
// the MURF_API_KEY environment variable.
func NewMurfSynthesizer(opts ...MurfOption) (*MurfSynthesizer, error) {
	cfg := MurfOpts{
		BaseURL:    DefaultMurfBaseURL,
		VoiceID:    DefaultMurfVoiceID,
		Style:      DefaultMurfStyle,
		Locale:     DefaultMurfLocale,
		Format:     DefaultMurfFormat,
		SampleRate: DefaultMurfSampleRate,
		AudioDir:   "audio",
		DownloadPolicy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.CappedLinearBackoff(2*time.Second, 5*time.Second),
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("MURF_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Murf API key must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &MurfSynthesizer{opts: cfg}, nil
}

// Synthesize generates speech via Murf and resolves the result into the
// target file (or a direct URL when PreferURL is set). Every failure mode
// falls through to the fast engine; nothing is propagated as a panic.
func (m *MurfSynthesizer) Synthesize(ctx context.Context, text, basename string) (ref string, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("MurfSynthesizer recovered from panic", "panic", r)
			ref, err = "", fmt.Errorf("synthesis panicked: %v", r)
		}
	}()

	ttsText := text
	if runes := []rune(ttsText); len(runes) > MurfMaxChars {
		slog.Warn("MurfSynthesizer text exceeds limit, truncating", "limit", MurfMaxChars, "chars", len(runes))
		ttsText = string(runes[:MurfMaxChars])
	}

	safeName := util.SanitizeFilename(basename)
	targetPath := filepath.Join(m.opts.AudioDir, safeName)

	start := time.Now()
	audioFile, err := m.generate(ctx, ttsText)
	if err != nil {
		slog.Error("MurfSynthesizer generation failed", "error", err)
		return m.fallback(ctx, text, basename)
	}
	slog.Info("MurfSynthesizer generation finished", "duration", time.Since(start))

	isURL := strings.HasPrefix(audioFile, "http://") || strings.HasPrefix(audioFile, "https://")
	if m.opts.PreferURL && isURL {
		slog.Info("MurfSynthesizer returning audio URL directly to minimize latency")
		return audioFile, nil
	}

	if isURL {
		if err := m.download(ctx, audioFile, targetPath); err != nil {
			slog.Error("MurfSynthesizer download failed", "error", err)
			return m.fallback(ctx, text, basename)
		}
		return targetPath, nil
	}

	// The service handed back a local artifact; copy it to the target name.
	if err := copyFile(audioFile, targetPath); err != nil {
		slog.Error("MurfSynthesizer failed to copy audio to target", "error", err)
		return m.fallback(ctx, text, basename)
	}
	slog.Info("MurfSynthesizer audio ready", "path", targetPath)
	return targetPath, nil
}

// generate calls the speech generation endpoint and returns the artifact
// reference, either a URL or a local path.
func (m *MurfSynthesizer) generate(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"text":              text,
		"voiceId":           m.opts.VoiceID,
		"style":             m.opts.Style,
		"multiNativeLocale": m.opts.Locale,
		"format":            m.opts.Format,
		"sampleRate":        m.opts.SampleRate,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.BaseURL+"/speech/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("api-key", m.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generation returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload struct {
		AudioFile string `json:"audioFile"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}
	if payload.AudioFile == "" {
		return "", fmt.Errorf("generation response missing audio file reference")
	}
	return payload.AudioFile, nil
}

// download fetches the artifact URL into targetPath under the bounded retry
// policy. An attempt only counts as successful once the full body is written.
func (m *MurfSynthesizer) download(ctx context.Context, audioURL, targetPath string) error {
	return m.opts.DownloadPolicy.Do(ctx, func(attempt int) error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
		if err != nil {
			return fmt.Errorf("failed to build download request: %w", err)
		}
		resp, err := m.opts.HTTPClient.Do(req)
		if err != nil {
			slog.Warn("MurfSynthesizer download attempt errored", "attempt", attempt, "error", err)
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			slog.Warn("MurfSynthesizer download attempt failed", "attempt", attempt, "status", resp.StatusCode)
			return fmt.Errorf("download returned status %d", resp.StatusCode)
		}

		out, err := os.Create(targetPath)
		if err != nil {
			return fmt.Errorf("failed to create target file: %w", err)
		}
		if _, err := io.Copy(out, resp.Body); err != nil {
			out.Close()
			os.Remove(targetPath)
			return fmt.Errorf("failed to write audio body: %w", err)
		}
		if err := out.Close(); err != nil {
			os.Remove(targetPath)
			return fmt.Errorf("failed to close target file: %w", err)
		}

		slog.Info("MurfSynthesizer audio downloaded", "duration", time.Since(start), "path", targetPath)
		return nil
	})
}

// fallback hands the full, untruncated text to the fast engine.
func (m *MurfSynthesizer) fallback(ctx context.Context, text, basename string) (string, error) {
	if m.opts.Fallback == nil {
		return "", fmt.Errorf("synthesis failed and no fallback engine configured")
	}
	slog.Info("MurfSynthesizer falling back to fast engine")
	ref, err := m.opts.Fallback.Synthesize(ctx, text, basename)
	if err != nil {
		return "", fmt.Errorf("fallback synthesis failed: %w", err)
	}
	return ref, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
