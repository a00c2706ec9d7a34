// Package conversation provides the in-memory per-user conversation state:
// a bounded history window and a session state tracker.
//
// Both stores live for the process lifetime and are safe for concurrent use.
// Persistence across restarts is explicitly out of scope.
package conversation

import (
	"log/slog"
	"sync"

	"github.com/thevedantt/voicebot/internal/models"
)

// DefaultMaxHistory is the default capacity of a user's history window.
const DefaultMaxHistory = 6

// History keeps a bounded, FIFO-evicted window of conversation turns per user.
type History struct {
	mu       sync.Mutex
	capacity int
	windows  map[string][]models.ConversationTurn
}

// HistoryOption configures a History store.
type HistoryOption func(*History)

// WithCapacity overrides the per-user window capacity.
func WithCapacity(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// NewHistory creates an empty history store with the default capacity.
func NewHistory(opts ...HistoryOption) *History {
	h := &History{
		capacity: DefaultMaxHistory,
		windows:  make(map[string][]models.ConversationTurn),
	}
	for _, opt := range opts {
		opt(h)
	}
	slog.Debug("History store created", "capacity", h.capacity)
	return h
}

// Append adds a turn to the user's window, evicting the oldest turn when the
// window is full. The window is created lazily on first append.
func (h *History) Append(userID string, turn models.ConversationTurn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	window := h.windows[userID]
	if len(window) >= h.capacity {
		evicted := len(window) - h.capacity + 1
		window = window[evicted:]
	}
	h.windows[userID] = append(window, turn)
	slog.Debug("History appended turn", "user", userID, "role", turn.Role, "len", len(h.windows[userID]))
}

// Turns returns a copy of the user's history in insertion order.
// Unknown users yield an empty slice.
func (h *History) Turns(userID string) []models.ConversationTurn {
	h.mu.Lock()
	defer h.mu.Unlock()

	window := h.windows[userID]
	out := make([]models.ConversationTurn, len(window))
	copy(out, window)
	return out
}

// Clear empties the user's window in place. Future reads return an empty
// history until new turns are appended.
func (h *History) Clear(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.windows[userID]) > 0 {
		h.windows[userID] = h.windows[userID][:0]
	}
	slog.Debug("History cleared", "user", userID)
}

// Len returns the current number of turns stored for the user.
func (h *History) Len(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.windows[userID])
}
