// Package api provides the HTTP surface of voicebot: the Twilio inbound
// webhook, the static audio serving endpoint, and a liveness banner.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thevedantt/voicebot/internal/bot"
)

// DefaultAddr is the default listen address.
const DefaultAddr = ":5000"

// shutdownGrace bounds graceful shutdown of the HTTP server and the delivery
// pool drain.
const shutdownGrace = 15 * time.Second

// Opts holds configuration options for the API server.
type Opts struct {
	Addr     string
	AudioDir string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithAudioDir sets the directory audio artifacts are served from.
func WithAudioDir(dir string) Option {
	return func(o *Opts) { o.AudioDir = dir }
}

// Server hosts the webhook and audio endpoints on top of the pipeline.
type Server struct {
	pipeline *bot.Pipeline
	opts     Opts
}

// NewServer creates the API server around a pipeline.
func NewServer(pipeline *bot.Pipeline, opts ...Option) *Server {
	cfg := Opts{
		Addr:     DefaultAddr,
		AudioDir: "audio",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{pipeline: pipeline, opts: cfg}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.indexHandler)
	r.Post("/webhook", s.webhookHandler)
	r.Get("/audio/{filename}", s.audioHandler)
	return r
}

// Run serves until ctx is cancelled, then shuts down the HTTP server and
// drains the delivery pool so in-flight audio replies finish.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server listening", "addr", s.opts.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server HTTP shutdown failed", "error", err)
	}
	if err := s.pipeline.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server delivery pool drain failed", "error", err)
	}
	slog.Info("Server stopped")
	return nil
}
