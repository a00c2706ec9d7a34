package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// whatsappPrefix is the channel address scheme Twilio expects.
const whatsappPrefix = "whatsapp:"

var nonPhoneChars = regexp.MustCompile(`[^0-9+]`)

// Opts holds configuration options for the Twilio WhatsApp client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option defines a configuration option for the Twilio WhatsApp client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sending WhatsApp number.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

// messageCreator is the slice of the Twilio REST API the service uses,
// extracted for testing.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioService implements Service using the Twilio REST API.
type TwilioService struct {
	api       messageCreator
	fromWhats string // WhatsApp number in "whatsapp:+1234567890" format
}

// NewTwilioService creates a Twilio-backed delivery service. Options missing
// from the call fall back to environment variables.
func NewTwilioService(opts ...Option) (*TwilioService, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromWhats == "" {
		cfg.FromWhats = os.Getenv("TWILIO_WHATSAPP_NUMBER")
	}
	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromWhats_set", cfg.FromWhats != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromWhats == "" {
		return nil, fmt.Errorf("fromWhats number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &TwilioService{
		api:       client.Api,
		fromWhats: cfg.FromWhats,
	}, nil
}

// ValidateAndCanonicalizeRecipient validates a WhatsApp recipient address.
// The "whatsapp:" scheme is stripped, the rest must be a plausible phone
// number; the canonical form keeps the leading "+" when present.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	trimmed := strings.TrimPrefix(strings.TrimSpace(recipient), whatsappPrefix)
	canonical := nonPhoneChars.ReplaceAllString(trimmed, "")
	digits := strings.TrimPrefix(canonical, "+")

	if digits == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(digits) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", digits)
	}

	if canonical != trimmed {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendMedia sends a WhatsApp media message and returns the Twilio message SID.
func (s *TwilioService) SendMedia(ctx context.Context, to, body string, mediaURLs []string) (string, error) {
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMedia validation error", "error", err, "to", to)
		return "", err
	}
	if len(mediaURLs) == 0 {
		return "", fmt.Errorf("at least one media URL is required")
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappPrefix + canonicalTo)
	params.SetFrom(s.fromWhats)
	params.SetMediaUrl(mediaURLs)
	if body != "" {
		params.SetBody(body)
	}

	msg, err := s.api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMedia failed", "to", canonicalTo, "error", err)
		return "", fmt.Errorf("failed to send media to %s: %w", canonicalTo, err)
	}

	sid := ""
	if msg != nil && msg.Sid != nil {
		sid = *msg.Sid
	}
	slog.Info("Queued WhatsApp media message", "sid", sid, "to", canonicalTo)
	return sid, nil
}

// MockService records sends for tests.
type MockService struct {
	SentMedia []SentMedia
	// Err, when set, is returned by SendMedia.
	Err error
}

// SentMedia is one recorded SendMedia call.
type SentMedia struct {
	To        string
	Body      string
	MediaURLs []string
}

// NewMockService creates an empty mock delivery service.
func NewMockService() *MockService {
	return &MockService{SentMedia: []SentMedia{}}
}

func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if strings.TrimSpace(recipient) == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	return strings.TrimPrefix(strings.TrimSpace(recipient), whatsappPrefix), nil
}

func (m *MockService) SendMedia(ctx context.Context, to, body string, mediaURLs []string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	m.SentMedia = append(m.SentMedia, SentMedia{To: to, Body: body, MediaURLs: mediaURLs})
	return fmt.Sprintf("SM%04d", len(m.SentMedia)), nil
}
