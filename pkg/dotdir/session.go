package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	sessionFile = "session.json"
)

// SessionState records the last chat session so "ragtube chat --resume" can
// reload its transcript from history storage and keep appending to it.
type SessionState struct {
	// SessionID identifies the stored transcript.
	SessionID string `json:"session_id"`

	// ChannelID is the channel filter that was active, empty for all channels.
	ChannelID string `json:"channel_id,omitempty"`

	// UpdatedAt is when the state was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadSessionState loads the session state from a target .ragtube/session.json.
// Returns nil, nil if no session state exists.
func (m *Manager) LoadSessionState(overrideDir string) (*SessionState, error) {
	path, err := m.File(overrideDir, sessionFile)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session state: %w", err)
	}

	state := &SessionState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing session state: %w", err)
	}

	return state, nil
}

// SaveSessionState persists the session state to a target .ragtube/session.json.
func (m *Manager) SaveSessionState(state *SessionState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil session state")
	}
	if state.SessionID == "" {
		return errors.New("cannot save session state without a session id")
	}

	path, err := m.File(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session state: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing session state: %w", err)
	}

	return nil
}

// ClearSessionState removes the session state file so the next chat starts a
// new session. Returns nil if the file doesn't exist.
func (m *Manager) ClearSessionState(overrideDir string) error {
	path, err := m.File(overrideDir, sessionFile)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing session state: %w", err)
	}

	return nil
}
