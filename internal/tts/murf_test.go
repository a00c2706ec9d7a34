package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/thevedantt/voicebot/internal/retry"
)

// recordingSynthesizer captures fallback invocations.
type recordingSynthesizer struct {
	calls []string
	ref   string
	err   error
}

func (r *recordingSynthesizer) Synthesize(ctx context.Context, text, basename string) (string, error) {
	r.calls = append(r.calls, text)
	return r.ref, r.err
}

func fastDownloadPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		Backoff:     retry.CappedLinearBackoff(time.Millisecond, time.Millisecond),
	}
}

// murfServer serves /speech/generate pointing at its own /artifact endpoint.
func murfServer(t *testing.T, artifactBody string, artifactStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var downloads atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /speech/generate", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "murf-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["voiceId"] != DefaultMurfVoiceID || req["format"] != DefaultMurfFormat {
			http.Error(w, "bad voice profile", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"audioFile": srv.URL + "/artifact"})
	})
	mux.HandleFunc("GET /artifact", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		w.WriteHeader(artifactStatus)
		w.Write([]byte(artifactBody))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &downloads
}

func TestMurfSynthesizeDownloadsArtifact(t *testing.T) {
	srv, downloads := murfServer(t, "mp3-bytes", http.StatusOK)
	dir := t.TempDir()

	m, err := NewMurfSynthesizer(
		WithMurfAPIKey("murf-key"),
		WithMurfBaseURL(srv.URL),
		WithMurfAudioDir(dir),
		WithMurfDownloadPolicy(fastDownloadPolicy()),
	)
	if err != nil {
		t.Fatalf("failed to create synthesizer: %v", err)
	}

	ref, err := m.Synthesize(context.Background(), "hello", "reply.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != filepath.Join(dir, "reply.mp3") {
		t.Errorf("unexpected ref %q", ref)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("unexpected artifact content %q", data)
	}
	if got := downloads.Load(); got != 1 {
		t.Errorf("expected 1 download, got %d", got)
	}
}

func TestMurfSynthesizePreferURLSkipsDownload(t *testing.T) {
	srv, downloads := murfServer(t, "mp3-bytes", http.StatusOK)

	m, err := NewMurfSynthesizer(
		WithMurfAPIKey("murf-key"),
		WithMurfBaseURL(srv.URL),
		WithMurfAudioDir(t.TempDir()),
		WithMurfPreferURL(true),
		WithMurfDownloadPolicy(fastDownloadPolicy()),
	)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := m.Synthesize(context.Background(), "hello", "reply.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != srv.URL+"/artifact" {
		t.Errorf("expected direct artifact URL, got %q", ref)
	}
	if got := downloads.Load(); got != 0 {
		t.Errorf("expected no downloads in prefer-URL mode, got %d", got)
	}
}

func TestMurfSynthesizeRetriesDownload(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /speech/generate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"audioFile": srv.URL + "/artifact"})
	})
	mux.HandleFunc("GET /artifact", func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		w.Write([]byte("eventually"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	m, err := NewMurfSynthesizer(
		WithMurfAPIKey("murf-key"),
		WithMurfBaseURL(srv.URL),
		WithMurfAudioDir(dir),
		WithMurfDownloadPolicy(fastDownloadPolicy()),
	)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := m.Synthesize(context.Background(), "hello", "retry.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(ref)
	if string(data) != "eventually" {
		t.Errorf("unexpected content %q", data)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 download attempts, got %d", got)
	}
}

func TestMurfSynthesizeFallsBackOnGenerationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	fb := &recordingSynthesizer{ref: "audio/fallback.mp3"}
	m, err := NewMurfSynthesizer(
		WithMurfAPIKey("murf-key"),
		WithMurfBaseURL(srv.URL),
		WithMurfAudioDir(t.TempDir()),
		WithMurfFallback(fb),
		WithMurfDownloadPolicy(fastDownloadPolicy()),
	)
	if err != nil {
		t.Fatal(err)
	}

	long := strings.Repeat("a", MurfMaxChars+100)
	ref, err := m.Synthesize(context.Background(), long, "reply.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "audio/fallback.mp3" {
		t.Errorf("expected fallback ref, got %q", ref)
	}
	// The fallback engine gets the original text, not the truncated form.
	if len(fb.calls) != 1 || len(fb.calls[0]) != MurfMaxChars+100 {
		t.Errorf("fallback received truncated text: %d calls", len(fb.calls))
	}
}

func TestMurfSynthesizeFallsBackOnDownloadFailure(t *testing.T) {
	srv, _ := murfServer(t, "nope", http.StatusServiceUnavailable)

	fb := &recordingSynthesizer{ref: "audio/fallback.mp3"}
	m, err := NewMurfSynthesizer(
		WithMurfAPIKey("murf-key"),
		WithMurfBaseURL(srv.URL),
		WithMurfAudioDir(t.TempDir()),
		WithMurfFallback(fb),
		WithMurfDownloadPolicy(fastDownloadPolicy()),
	)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := m.Synthesize(context.Background(), "hello", "reply.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != "audio/fallback.mp3" {
		t.Errorf("expected fallback ref, got %q", ref)
	}
	if len(fb.calls) != 1 {
		t.Errorf("expected 1 fallback call, got %d", len(fb.calls))
	}
}

func TestMurfSynthesizeTruncatesOnRuneBoundary(t *testing.T) {
	var sent string
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("POST /speech/generate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		sent, _ = req["text"].(string)
		json.NewEncoder(w).Encode(map[string]string{"audioFile": srv.URL + "/artifact"})
	})
	mux.HandleFunc("GET /artifact", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mp3"))
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	m, err := NewMurfSynthesizer(
		WithMurfAPIKey("murf-key"),
		WithMurfBaseURL(srv.URL),
		WithMurfAudioDir(t.TempDir()),
		WithMurfDownloadPolicy(fastDownloadPolicy()),
	)
	if err != nil {
		t.Fatal(err)
	}

	// Two-byte runes: a byte-indexed cut would land mid-rune.
	long := strings.Repeat("é", MurfMaxChars+50)
	if _, err := m.Synthesize(context.Background(), long, "long.mp3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utf8.ValidString(sent) {
		t.Error("truncated text is not valid UTF-8")
	}
	if got := utf8.RuneCountInString(sent); got != MurfMaxChars {
		t.Errorf("sent %d runes, want %d", got, MurfMaxChars)
	}
}

func TestMurfSynthesizeNoFallbackPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := NewMurfSynthesizer(
		WithMurfAPIKey("murf-key"),
		WithMurfBaseURL(srv.URL),
		WithMurfAudioDir(t.TempDir()),
		WithMurfDownloadPolicy(fastDownloadPolicy()),
	)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Synthesize(context.Background(), "hello", "reply.mp3"); err == nil {
		t.Fatal("expected error without a fallback engine")
	}
}

func TestMurfSynthesizeCopiesLocalArtifact(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "murf_local.mp3")
	if err := os.WriteFile(local, []byte("local-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"audioFile": local})
	}))
	defer srv.Close()

	m, err := NewMurfSynthesizer(
		WithMurfAPIKey("murf-key"),
		WithMurfBaseURL(srv.URL),
		WithMurfAudioDir(dir),
		WithMurfDownloadPolicy(fastDownloadPolicy()),
	)
	if err != nil {
		t.Fatal(err)
	}

	ref, err := m.Synthesize(context.Background(), "hello", "copy.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref != filepath.Join(dir, "copy.mp3") {
		t.Errorf("unexpected ref %q", ref)
	}
	data, _ := os.ReadFile(ref)
	if string(data) != "local-bytes" {
		t.Errorf("unexpected copied content %q", data)
	}
}

func TestNewMurfSynthesizerRequiresAPIKey(t *testing.T) {
	t.Setenv("MURF_API_KEY", "")
	if _, err := NewMurfSynthesizer(); err == nil {
		t.Fatal("expected error when no API key is configured")
	}
}
