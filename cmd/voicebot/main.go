package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/thevedantt/voicebot/internal/api"
	"github.com/thevedantt/voicebot/internal/bot"
	"github.com/thevedantt/voicebot/internal/conversation"
	"github.com/thevedantt/voicebot/internal/genai"
	"github.com/thevedantt/voicebot/internal/messaging"
	"github.com/thevedantt/voicebot/internal/transcribe"
	"github.com/thevedantt/voicebot/internal/tts"
	"github.com/thevedantt/voicebot/internal/util"
)

// Default configuration constants
const (
	// DefaultAudioDir is the default directory for synthesized audio artifacts.
	DefaultAudioDir = "audio"
	// DefaultKeyFile is the optional KEY=VALUE secrets file loaded at startup.
	DefaultKeyFile = "key.txt"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := os.MkdirAll(*flags.audioDir, 0o755); err != nil {
		slog.Error("Failed to create audio directory", "dir", *flags.audioDir, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := buildPipeline(ctx, config, flags)
	if err != nil {
		slog.Error("voicebot failed to initialize", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(pipeline,
		api.WithAddr(*flags.addr),
		api.WithAudioDir(*flags.audioDir),
	)

	slog.Info("Bootstrapping voicebot", "addr", *flags.addr, "audio_dir", *flags.audioDir, "simple_tts", *flags.simpleTTS)
	if err := server.Run(ctx); err != nil {
		slog.Error("voicebot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("voicebot exited successfully")
}

// Config holds environment configuration
type Config struct {
	TwilioAccountSID     string
	TwilioAuthToken      string
	TwilioWhatsAppNumber string
	OpenRouterKey        string
	GeminiKey            string
	AssemblyAIKey        string
	MurfKey              string
	PublicBaseURL        string
	APIAddr              string
	AudioDir             string
	UseSimpleTTS         bool
	DeliverMediaAsync    bool
}

// Flags holds command line flag values
type Flags struct {
	addr          *string
	audioDir      *string
	publicBaseURL *string
	simpleTTS     *bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables, a
// .env file, and the optional key file. Values already in the environment
// take precedence over both files.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}
	keyFile := os.Getenv("VOICEBOT_KEY_FILE")
	if keyFile == "" {
		keyFile = DefaultKeyFile
	}
	if _, err := os.Stat(keyFile); err == nil {
		if err := godotenv.Load(keyFile); err != nil {
			slog.Warn("failed to load key file", "path", keyFile, "error", err)
		} else {
			slog.Debug("loaded secrets from key file", "path", keyFile)
		}
	} else {
		slog.Debug("key file not found", "path", keyFile)
	}

	config := Config{
		TwilioAccountSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppNumber: os.Getenv("TWILIO_WHATSAPP_NUMBER"),
		OpenRouterKey:        os.Getenv("OPENROUTER_API_KEY"),
		GeminiKey:            os.Getenv("GEMINI_API_KEY"),
		AssemblyAIKey:        os.Getenv("ASSEMBLYAI_API_KEY"),
		MurfKey:              os.Getenv("MURF_API_KEY"),
		PublicBaseURL:        os.Getenv("PUBLIC_BASE_URL"),
		APIAddr:              os.Getenv("API_ADDR"),
		AudioDir:             os.Getenv("VOICEBOT_AUDIO_DIR"),
		UseSimpleTTS:         util.ParseBoolEnv("USE_SIMPLE_TTS", true),
		DeliverMediaAsync:    util.ParseBoolEnv("DELIVER_MEDIA_ASYNC", true),
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}
	if config.AudioDir == "" {
		config.AudioDir = DefaultAudioDir
	}
	return config
}

// parseCommandLineFlags parses command line flags with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		addr:          flag.String("addr", config.APIAddr, "API listen address"),
		audioDir:      flag.String("audio-dir", config.AudioDir, "directory for synthesized audio artifacts"),
		publicBaseURL: flag.String("public-base-url", config.PublicBaseURL, "public base URL for serving local audio"),
		simpleTTS:     flag.Bool("simple-tts", config.UseSimpleTTS, "use the fast free synthesis engine instead of Murf"),
	}
	flag.Parse()
	return flags
}

// buildPipeline wires the stores, adapters, and orchestrator.
func buildPipeline(ctx context.Context, config Config, flags Flags) (*bot.Pipeline, error) {
	history := conversation.NewHistory()
	states := conversation.NewStateTracker()

	msgService, err := messaging.NewTwilioService(
		messaging.WithAccountSID(config.TwilioAccountSID),
		messaging.WithAuthToken(config.TwilioAuthToken),
		messaging.WithFromWhats(config.TwilioWhatsAppNumber),
	)
	if err != nil {
		return nil, err
	}

	generator := buildGenerator(ctx, config)
	synthesizer := buildSynthesizer(config, flags)

	pipelineOpts := []bot.PipelineOption{
		bot.WithPublicBaseURL(*flags.publicBaseURL),
	}
	if !config.DeliverMediaAsync {
		pipelineOpts = append(pipelineOpts, bot.WithSyncDelivery())
	}

	if config.AssemblyAIKey != "" {
		transcriber, err := transcribe.NewClient(
			transcribe.WithAPIKey(config.AssemblyAIKey),
			transcribe.WithMediaCredentials(config.TwilioAccountSID, config.TwilioAuthToken),
		)
		if err != nil {
			return nil, err
		}
		pipelineOpts = append(pipelineOpts, bot.WithTranscriber(transcriber))
	} else {
		slog.Warn("ASSEMBLYAI_API_KEY not set, voice notes will not be transcribed")
	}

	return bot.NewPipeline(history, states, generator, synthesizer, msgService, pipelineOpts...), nil
}

// buildGenerator assembles the provider fallback chain from the configured
// API keys: OpenRouter first, then Gemini.
func buildGenerator(ctx context.Context, config Config) genai.Generator {
	var providers []genai.Generator

	if config.OpenRouterKey != "" {
		primary, err := genai.NewOpenRouterGenerator(genai.WithOpenRouterAPIKey(config.OpenRouterKey))
		if err != nil {
			slog.Warn("OpenRouter generator unavailable", "error", err)
		} else {
			providers = append(providers, primary)
		}
	} else {
		slog.Warn("OPENROUTER_API_KEY not set, skipping primary provider")
	}

	if config.GeminiKey != "" {
		secondary, err := genai.NewGeminiGenerator(ctx, genai.WithGeminiAPIKey(config.GeminiKey))
		if err != nil {
			slog.Warn("Gemini generator unavailable", "error", err)
		} else {
			providers = append(providers, secondary)
		}
	} else {
		slog.Warn("GEMINI_API_KEY not set, skipping secondary provider")
	}

	if len(providers) == 0 {
		slog.Warn("No generation providers configured, replies will be the fixed apology")
	}
	return genai.NewFallbackGenerator(providers...)
}

// buildSynthesizer picks the synthesis engine: the fast free engine in simple
// mode, otherwise Murf with the fast engine as last-resort fallback.
func buildSynthesizer(config Config, flags Flags) tts.Synthesizer {
	fast := tts.NewGoogleTranslateSynthesizer(tts.WithTranslateAudioDir(*flags.audioDir))
	if *flags.simpleTTS {
		return fast
	}

	murf, err := tts.NewMurfSynthesizer(
		tts.WithMurfAPIKey(config.MurfKey),
		tts.WithMurfAudioDir(*flags.audioDir),
		tts.WithMurfFallback(fast),
	)
	if err != nil {
		slog.Warn("Murf synthesizer unavailable, using fast engine", "error", err)
		return fast
	}
	return murf
}
