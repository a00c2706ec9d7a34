// Package messaging wraps the Twilio API for outbound WhatsApp delivery.
//
// The synchronous webhook acknowledgment is TwiML handled by the api package;
// this package covers the asynchronous media sends the pipeline schedules.
package messaging

import "context"

// Service defines the outbound message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMedia sends a message with one or more publicly reachable media
	// URLs and an optional text body. Returns the provider message id.
	SendMedia(ctx context.Context, to, body string, mediaURLs []string) (string, error)
}
