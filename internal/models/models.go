// Package models defines the shared data types used across voicebot modules.
//
// It contains conversation turns, session states, and the inbound message
// envelope parsed from the Twilio webhook.
package models

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles as sent to the generation providers.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one role-tagged message in a conversation history.
// Turns are immutable once created.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// SessionState is the per-user position in the reply cycle state machine.
type SessionState string

// Session states. Absence of a tracker entry is equivalent to StateIdle.
const (
	// StateIdle means the user has no pending continuation question.
	StateIdle SessionState = "idle"
	// StateContinue means the user was asked "would you like to continue?"
	// and their next message is interpreted as a possible yes/no answer.
	StateContinue SessionState = "continue"
)

// IncomingMessage is the inbound webhook envelope relevant to the pipeline.
type IncomingMessage struct {
	// From is the channel-specific sender address, e.g. "whatsapp:+15551234567".
	From string
	// Body is the text content, empty for pure voice notes.
	Body string
	// MediaURL references a voice note to transcribe, empty for text messages.
	MediaURL string
}
