package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
)

func TestGoogleTranslateSynthesizeWritesFile(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		if q.Get("client") != "tw-ob" || q.Get("ie") != "UTF-8" {
			t.Errorf("unexpected query params: %v", q)
		}
		if q.Get("tl") != "en" {
			t.Errorf("expected language en, got %q", q.Get("tl"))
		}
		w.Write([]byte("MP3[" + q.Get("q") + "]"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	g := NewGoogleTranslateSynthesizer(
		WithTranslateAudioDir(dir),
		WithTranslateBaseURL(srv.URL),
	)

	ref, err := g.Synthesize(context.Background(), "hello there", "reply.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		t.Fatalf("failed to read synthesized file: %v", err)
	}
	if string(data) != "MP3[hello there]" {
		t.Errorf("unexpected audio content %q", data)
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("expected a single request for short text, got %d", got)
	}
}

func TestGoogleTranslateSynthesizeConcatenatesChunks(t *testing.T) {
	var chunks []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		chunks = append(chunks, q)
		w.Write([]byte("<" + q + ">"))
	}))
	defer srv.Close()

	long := strings.Repeat("word ", 100) // well past the per-request limit
	g := NewGoogleTranslateSynthesizer(
		WithTranslateAudioDir(t.TempDir()),
		WithTranslateBaseURL(srv.URL),
	)

	ref, err := g.Synthesize(context.Background(), long, "long.mp3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len([]rune(c)) > translateChunkLimit {
			t.Errorf("chunk %d exceeds limit: %d runes", i, len([]rune(c)))
		}
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		t.Fatalf("failed to read synthesized file: %v", err)
	}
	if got := strings.Count(string(data), "<"); got != len(chunks) {
		t.Errorf("expected %d concatenated segments, got %d", len(chunks), got)
	}
}

func TestGoogleTranslateSynthesizeRejectsBlankText(t *testing.T) {
	g := NewGoogleTranslateSynthesizer(WithTranslateAudioDir(t.TempDir()))
	if _, err := g.Synthesize(context.Background(), "   ", "blank.mp3"); err == nil {
		t.Fatal("expected error for blank text")
	}
}

func TestGoogleTranslateSynthesizeCleansUpOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "throttled", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	dir := t.TempDir()
	g := NewGoogleTranslateSynthesizer(
		WithTranslateAudioDir(dir),
		WithTranslateBaseURL(srv.URL),
	)
	if _, err := g.Synthesize(context.Background(), "hello", "fail.mp3"); err == nil {
		t.Fatal("expected error from failing endpoint")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected partial file to be removed, found %d entries", len(entries))
	}
}

func TestSplitChunksPrefersWhitespace(t *testing.T) {
	text := "alpha beta gamma delta"
	chunks := splitChunks(text, 12)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %v", len(chunks), chunks)
	}
	if chunks[0] != "alpha beta" || chunks[1] != "gamma delta" {
		t.Errorf("unexpected chunks %v", chunks)
	}
}

func TestSplitChunksHandlesUnbrokenText(t *testing.T) {
	text := strings.Repeat("x", 25)
	chunks := splitChunks(text, 10)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if joined := strings.Join(chunks, ""); joined != text {
		t.Errorf("chunks lost content: %q", joined)
	}
}
