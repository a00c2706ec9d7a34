package conversation

import (
	"log/slog"
	"sync"

	"github.com/thevedantt/voicebot/internal/models"
)

// StateTracker keeps the current session state per user. A missing entry is
// equivalent to models.StateIdle.
type StateTracker struct {
	mu     sync.RWMutex
	states map[string]models.SessionState
}

// NewStateTracker creates an empty state tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{states: make(map[string]models.SessionState)}
}

// Set records the current state for a user.
func (t *StateTracker) Set(userID string, state models.SessionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[userID] = state
	slog.Debug("StateTracker set", "user", userID, "state", state)
}

// Get returns the user's current state, defaulting to idle when absent.
func (t *StateTracker) Get(userID string) models.SessionState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if state, ok := t.states[userID]; ok {
		return state
	}
	return models.StateIdle
}

// Clear removes the user's entry, which is equivalent to resetting to idle.
func (t *StateTracker) Clear(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, userID)
	slog.Debug("StateTracker cleared", "user", userID)
}
