package api

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/twilio/twilio-go/twiml"

	"github.com/thevedantt/voicebot/internal/models"
	"github.com/thevedantt/voicebot/internal/util"
)

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("WhatsApp AI bot with AssemblyAI STT & Murf.ai TTS is running!"))
}

// webhookHandler accepts the Twilio inbound form, runs the reply cycle, and
// acknowledges with TwiML. An empty message list means the reply arrives
// asynchronously as media.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Server.webhookHandler: failed to parse form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	if from == "" {
		from = "unknown"
	}
	msg := models.IncomingMessage{
		From:     from,
		Body:     strings.TrimSpace(r.FormValue("Body")),
		MediaURL: r.FormValue("MediaUrl0"),
	}
	slog.Info("Server.webhookHandler: inbound message", "from", msg.From, "has_media", msg.MediaURL != "", "body_length", len(msg.Body))

	reply := s.pipeline.HandleMessage(r.Context(), msg)
	writeTwiML(w, reply)
}

// audioHandler serves synthesized artifacts from the audio directory with a
// MIME type derived from the file extension.
func (s *Server) audioHandler(w http.ResponseWriter, r *http.Request) {
	safeName := util.SanitizeFilename(chi.URLParam(r, "filename"))
	path := filepath.Join(s.opts.AudioDir, safeName)

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("Server.audioHandler: audio file not found", "name", safeName)
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mimeTypeForAudio(safeName))
	http.ServeContent(w, r, safeName, info.ModTime(), f)
}

func mimeTypeForAudio(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}

// writeTwiML renders the acknowledgment body. An empty reply produces an
// empty <Response/> so Twilio sends nothing on the text channel.
func writeTwiML(w http.ResponseWriter, reply string) {
	var verbs []twiml.Element
	if reply != "" {
		verbs = append(verbs, &twiml.MessagingMessage{Body: reply})
	}

	doc, err := twiml.Messages(verbs)
	if err != nil {
		slog.Error("Server.writeTwiML: failed to render TwiML", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	if _, err := w.Write([]byte(doc)); err != nil {
		slog.Error("Server.writeTwiML: failed to write response", "error", err)
	}
}
