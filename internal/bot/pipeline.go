package bot

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/thevedantt/voicebot/internal/conversation"
	"github.com/thevedantt/voicebot/internal/genai"
	"github.com/thevedantt/voicebot/internal/messaging"
	"github.com/thevedantt/voicebot/internal/models"
	"github.com/thevedantt/voicebot/internal/transcribe"
	"github.com/thevedantt/voicebot/internal/tts"
	"github.com/thevedantt/voicebot/internal/util"
)

// DefaultPersona is the system prompt prepended to every generation request.
const DefaultPersona = "You are a friendly WhatsApp assistant. Answer clearly and briefly."

// Fixed user-facing replies.
const (
	greetingReply     = "Hey there! 👋 How are you doing today?"
	farewellReply     = "Thanks for chatting! Goodbye 👋"
	closingReply      = "Thanks for chatting! Have a great day 👋"
	transcribeApology = "Sorry, I couldn’t transcribe your voice note. Please try again."
	thankYouSuffix    = " — Thanks for chatting!"
	continuePrompt    = "\n\nWould you like to continue? (yes/no)"
)

// Opts holds configuration options for the pipeline.
type Opts struct {
	Persona       string
	PublicBaseURL string
	// AsyncDeliver offloads synthesis and delivery to the worker pool; when
	// disabled the delivery unit runs inline, which is useful for debugging.
	AsyncDeliver bool
	Pool         *DeliveryPool
	Transcriber  transcribe.Transcriber
}

// PipelineOption defines a configuration option for the pipeline.
type PipelineOption func(*Opts)

// WithPersona overrides the system persona.
func WithPersona(persona string) PipelineOption {
	return func(o *Opts) { o.Persona = persona }
}

// WithPublicBaseURL sets the base used to resolve local audio artifacts into
// publicly reachable URLs.
func WithPublicBaseURL(base string) PipelineOption {
	return func(o *Opts) { o.PublicBaseURL = base }
}

// WithSyncDelivery runs delivery units inline instead of on the pool.
func WithSyncDelivery() PipelineOption {
	return func(o *Opts) { o.AsyncDeliver = false }
}

// WithDeliveryPool injects the bounded worker pool for delivery units.
func WithDeliveryPool(p *DeliveryPool) PipelineOption {
	return func(o *Opts) { o.Pool = p }
}

// WithTranscriber enables voice-note transcription.
func WithTranscriber(t transcribe.Transcriber) PipelineOption {
	return func(o *Opts) { o.Transcriber = t }
}

// Pipeline drives the reply cycle for each inbound message: classification,
// state transitions, generation, and scheduling of the delivery unit.
type Pipeline struct {
	history     *conversation.History
	states      *conversation.StateTracker
	generator   genai.Generator
	synthesizer tts.Synthesizer
	msgService  messaging.Service
	opts        Opts

	// userLocks serializes requests per user so concurrent messages from the
	// same user cannot interleave history appends.
	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex
}

// NewPipeline wires the orchestrator. The stores are injected so tests can
// observe them and so the delivery path shares them with the handlers.
func NewPipeline(history *conversation.History, states *conversation.StateTracker, generator genai.Generator, synthesizer tts.Synthesizer, msgService messaging.Service, opts ...PipelineOption) *Pipeline {
	cfg := Opts{
		Persona:      DefaultPersona,
		AsyncDeliver: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Pool == nil {
		cfg.Pool = NewDeliveryPool(DefaultPoolWorkers, DefaultPoolQueue)
	}

	return &Pipeline{
		history:     history,
		states:      states,
		generator:   generator,
		synthesizer: synthesizer,
		msgService:  msgService,
		opts:        cfg,
		userLocks:   make(map[string]*sync.Mutex),
	}
}

// HandleMessage runs one reply cycle and returns the text to acknowledge with
// on the webhook. An empty return means an empty acknowledgment: the real
// reply arrives asynchronously as media.
func (p *Pipeline) HandleMessage(ctx context.Context, msg models.IncomingMessage) string {
	from := msg.From
	unlock := p.lockUser(from)
	defer unlock()

	// Greeting is matched on the raw text only; voice notes never greet.
	kind := classify(normalize(msg.Body), p.states.Get(from))
	if kind == intentGreeting {
		slog.Info("Pipeline greeting", "user", from)
		p.history.Append(from, models.ConversationTurn{Role: models.RoleAssistant, Content: greetingReply})
		p.states.Clear(from)
		return greetingReply
	}

	text := msg.Body
	if msg.MediaURL != "" {
		transcript, ok := p.transcribeVoiceNote(ctx, from, msg.MediaURL)
		if !ok {
			return transcribeApology
		}
		text = transcript
		kind = classify(normalize(text), p.states.Get(from))
		if kind == intentGreeting {
			// A spoken greeting flows through as ordinary input.
			kind = intentFreeText
		}
	}

	switch kind {
	case intentFarewell:
		slog.Info("Pipeline farewell", "user", from)
		p.history.Clear(from)
		p.states.Clear(from)
		return farewellReply
	case intentContinueNo:
		slog.Info("Pipeline continuation declined", "user", from)
		p.history.Clear(from)
		p.states.Clear(from)
		return closingReply
	case intentContinueYes:
		// The affirmative unblocks the state; the message itself still
		// flows through as ordinary input.
		p.states.Clear(from)
	}

	return p.respond(ctx, from, text)
}

// transcribeVoiceNote resolves a media reference to text. A failed or empty
// transcription short-circuits the cycle with no state change.
func (p *Pipeline) transcribeVoiceNote(ctx context.Context, from, mediaURL string) (string, bool) {
	if p.opts.Transcriber == nil {
		slog.Warn("Pipeline received voice note but no transcriber is configured", "user", from)
		return "", false
	}
	transcript, err := p.opts.Transcriber.Transcribe(ctx, mediaURL)
	if err != nil {
		slog.Error("Pipeline transcription failed", "error", err, "user", from)
		return "", false
	}
	if strings.TrimSpace(transcript) == "" {
		slog.Error("Pipeline transcription produced no text", "user", from)
		return "", false
	}
	slog.Info("Pipeline voice note transcribed", "user", from, "chars", len(transcript))
	return transcript, true
}

// respond runs the free-text generation cycle and schedules the delivery
// unit. The webhook acknowledgment stays empty; the audio reply is delivered
// out of band.
func (p *Pipeline) respond(ctx context.Context, from, text string) string {
	p.history.Append(from, models.ConversationTurn{Role: models.RoleUser, Content: text})

	window := p.history.Turns(from)
	turns := make([]models.ConversationTurn, 0, len(window)+1)
	turns = append(turns, models.ConversationTurn{Role: models.RoleSystem, Content: p.opts.Persona})
	turns = append(turns, window...)

	reply, err := p.generator.Generate(ctx, turns)
	if err != nil || strings.TrimSpace(reply) == "" {
		if err != nil {
			slog.Error("Pipeline generation failed", "error", err, "user", from)
		}
		reply = genai.ApologyText
	}
	if !strings.Contains(reply, thankYouSuffix) {
		reply += thankYouSuffix
	}

	// The speech variant omits the continuation prompt; only the stored text
	// variant carries it.
	speechText := reply
	textReply := reply + continuePrompt
	p.history.Append(from, models.ConversationTurn{Role: models.RoleAssistant, Content: textReply})

	basename := util.UniqueAudioBasename(from, "response")
	unit := func(dctx context.Context) {
		p.deliver(dctx, from, speechText, basename)
	}
	if p.opts.AsyncDeliver {
		p.opts.Pool.Submit(unit)
	} else {
		unit(context.WithoutCancel(ctx))
	}

	p.states.Set(from, models.StateContinue)
	return ""
}

// deliver synthesizes the speech variant and sends the artifact to the user.
// Failures are logged and otherwise silent; the user already received the
// empty acknowledgment, so there is no channel left for an error message.
func (p *Pipeline) deliver(ctx context.Context, to, speechText, basename string) {
	ref, err := p.synthesizer.Synthesize(ctx, speechText, basename)
	if err != nil || ref == "" {
		slog.Error("Pipeline synthesis failed, no audio will be delivered", "error", err, "user", to)
		return
	}

	mediaURL := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		mediaURL = util.BuildPublicURL(p.opts.PublicBaseURL, "audio/"+filepath.Base(ref))
	}

	if _, err := p.msgService.SendMedia(ctx, to, "", []string{mediaURL}); err != nil {
		slog.Error("Pipeline media delivery failed", "error", err, "user", to)
	}
}

// Shutdown drains the delivery pool so in-flight audio replies complete.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	return p.opts.Pool.Shutdown(ctx)
}

func (p *Pipeline) lockUser(userID string) func() {
	p.lockMu.Lock()
	lock, ok := p.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		p.userLocks[userID] = lock
	}
	p.lockMu.Unlock()

	lock.Lock()
	return lock.Unlock
}
