// Package transcribe turns remote voice-note references into text via the
// AssemblyAI HTTP API: download the media, upload it as an opaque blob,
// submit a transcription job, and poll until it completes.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is the AssemblyAI v2 API root.
const DefaultBaseURL = "https://api.assemblyai.com/v2"

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxWait      = 60 * time.Second
	defaultSpeechModel  = "universal"
)

// Transcriber converts a remote audio reference into text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string) (string, error)
}

// Opts holds configuration options for the AssemblyAI client.
type Opts struct {
	APIKey string
	// BaseURL overrides the AssemblyAI API root, mainly for tests.
	BaseURL string
	// MediaUsername and MediaPassword authenticate the media download
	// (Twilio account SID and auth token for WhatsApp voice notes).
	MediaUsername string
	MediaPassword string
	// TempDir receives the downloaded audio before upload; defaults to the
	// system temp directory. The file is removed on every exit path.
	TempDir      string
	HTTPClient   *http.Client
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Option defines a configuration option for the AssemblyAI client.
type Option func(*Opts)

// WithAPIKey sets the AssemblyAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the API root.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = strings.TrimSuffix(url, "/") }
}

// WithMediaCredentials sets the basic-auth credentials for media downloads.
func WithMediaCredentials(username, password string) Option {
	return func(o *Opts) {
		o.MediaUsername = username
		o.MediaPassword = password
	}
}

// WithTempDir sets the directory for temporary audio downloads.
func WithTempDir(dir string) Option {
	return func(o *Opts) { o.TempDir = dir }
}

// WithHTTPClient injects the HTTP client used for all calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithPolling overrides the job polling cadence and wait budget.
func WithPolling(interval, maxWait time.Duration) Option {
	return func(o *Opts) {
		o.PollInterval = interval
		o.MaxWait = maxWait
	}
}

// Client implements Transcriber against the AssemblyAI API.
type Client struct {
	opts Opts
}

// NewClient creates an AssemblyAI transcription client. Options missing from
// the call fall back to environment variables.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		BaseURL:      DefaultBaseURL,
		PollInterval: defaultPollInterval,
		MaxWait:      defaultMaxWait,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("ASSEMBLYAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("AssemblyAI API key must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Client{opts: cfg}, nil
}

// Transcribe downloads the referenced audio, uploads it to AssemblyAI, and
// polls the transcription job until it completes, errors, or times out.
func (c *Client) Transcribe(ctx context.Context, mediaURL string) (string, error) {
	localFile, err := c.downloadMedia(ctx, mediaURL)
	if err != nil {
		return "", err
	}
	defer func() {
		if removeErr := os.Remove(localFile); removeErr != nil && !os.IsNotExist(removeErr) {
			slog.Warn("Transcriber failed to remove temp audio", "path", localFile, "error", removeErr)
		}
	}()

	uploadURL, err := c.upload(ctx, localFile)
	if err != nil {
		return "", err
	}

	jobID, err := c.submitJob(ctx, uploadURL)
	if err != nil {
		return "", err
	}

	return c.pollJob(ctx, jobID)
}

// downloadMedia fetches the audio bytes into a temp file, naming it by the
// response content type so the upload keeps a sensible extension.
func (c *Client) downloadMedia(ctx context.Context, mediaURL string) (string, error) {
	slog.Info("Transcriber downloading media", "url", mediaURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build media request: %w", err)
	}
	if c.opts.MediaUsername != "" {
		req.SetBasicAuth(c.opts.MediaUsername, c.opts.MediaPassword)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media download returned status %d", resp.StatusCode)
	}

	// A unique temp file per download keeps concurrent requests from
	// different users off each other's audio.
	ext := extensionForContentType(resp.Header.Get("Content-Type"))
	out, err := os.CreateTemp(c.opts.TempDir, "voicebot_media_*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp audio file: %w", err)
	}
	localFile := out.Name()
	written, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		os.Remove(localFile)
		return "", fmt.Errorf("failed to write temp audio file: %w", err)
	}
	if closeErr != nil {
		os.Remove(localFile)
		return "", fmt.Errorf("failed to close temp audio file: %w", closeErr)
	}
	// Empty uploads cause a 422 at AssemblyAI; fail early instead.
	if written == 0 {
		os.Remove(localFile)
		return "", fmt.Errorf("downloaded media is empty")
	}

	slog.Debug("Transcriber media downloaded", "path", localFile, "bytes", written, "content_type", resp.Header.Get("Content-Type"))
	return localFile, nil
}

func extensionForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "ogg"):
		return ".ogg"
	case strings.Contains(contentType, "wav"):
		return ".wav"
	default:
		return ".mp3"
	}
}

// upload pushes the audio bytes to AssemblyAI. The first attempt sends the
// whole buffer with an explicit length; on failure it retries once with a
// chunked transfer by streaming the file directly.
func (c *Client) upload(ctx context.Context, localFile string) (string, error) {
	slog.Info("Transcriber uploading audio", "path", localFile)

	data, err := os.ReadFile(localFile)
	if err != nil {
		return "", fmt.Errorf("failed to read temp audio file: %w", err)
	}

	uploadURL, err := c.doUpload(ctx, bytes.NewReader(data))
	if err == nil {
		return uploadURL, nil
	}
	slog.Warn("Transcriber upload attempt 1 failed, retrying chunked", "error", err)

	fh, openErr := os.Open(localFile)
	if openErr != nil {
		return "", fmt.Errorf("failed to reopen temp audio file: %w", openErr)
	}
	defer fh.Close()

	// An io.Reader with unknown length forces chunked transfer encoding.
	uploadURL, err = c.doUpload(ctx, io.Reader(fh))
	if err != nil {
		return "", fmt.Errorf("upload failed after chunked retry: %w", err)
	}
	return uploadURL, nil
}

func (c *Client) doUpload(ctx context.Context, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/upload", body)
	if err != nil {
		return "", fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Authorization", c.opts.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if payload.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return payload.UploadURL, nil
}

// submitJob creates a transcription job for the uploaded audio.
func (c *Client) submitJob(ctx context.Context, uploadURL string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"audio_url":    uploadURL,
		"speech_model": defaultSpeechModel,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal transcript request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build transcript request: %w", err)
	}
	req.Header.Set("Authorization", c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode transcript response: %w", err)
	}
	if payload.ID == "" {
		return "", fmt.Errorf("transcript response missing job id")
	}

	slog.Debug("Transcriber job submitted", "job_id", payload.ID)
	return payload.ID, nil
}

// pollJob checks the job status on a fixed interval until completion, error,
// or the wait budget elapses.
func (c *Client) pollJob(ctx context.Context, jobID string) (string, error) {
	deadline := time.Now().Add(c.opts.MaxWait)
	endpoint := c.opts.BaseURL + "/transcript/" + jobID

	for time.Now().Before(deadline) {
		status, text, detail, err := c.checkJob(ctx, endpoint)
		if err != nil {
			return "", err
		}
		switch status {
		case "completed":
			slog.Info("Transcriber transcription complete", "job_id", jobID, "chars", len(text))
			return text, nil
		case "error":
			return "", fmt.Errorf("transcription job failed: %s", detail)
		}

		select {
		case <-time.After(c.opts.PollInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("transcription timed out after %s", c.opts.MaxWait)
}

func (c *Client) checkJob(ctx context.Context, endpoint string) (status, text, detail string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to build poll request: %w", err)
	}
	req.Header.Set("Authorization", c.opts.APIKey)

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return "", "", "", fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Status string `json:"status"`
		Text   string `json:"text"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", "", "", fmt.Errorf("failed to decode poll response: %w", err)
	}
	return payload.Status, payload.Text, payload.Error, nil
}
