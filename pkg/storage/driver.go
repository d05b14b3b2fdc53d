// Package storage persists chat history: the messages of each session, in
// order, with the retrieved context that backed each answer.
package storage

import (
	"context"
	"time"

	"github.com/papercomputeco/ragtube/pkg/chat"
	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/transcript"
)

// Driver defines the interface for persisting and retrieving chat history
// in a storage backend.
type Driver interface {
	// PutMessages stores msgs under sessionID. Messages whose ID already
	// exists are skipped, so replaying a batch is a no-op. New messages get
	// the next sequence numbers of the session in slice order.
	PutMessages(ctx context.Context, sessionID string, msgs []StoredMessage) error

	// ListSessions returns session summaries, most recently updated first.
	ListSessions(ctx context.Context, query SessionQuery) ([]SessionSummary, error)

	// GetSession returns the messages of a session in sequence order.
	// Returns NotFoundError when the session has no messages.
	GetSession(ctx context.Context, sessionID string) ([]StoredMessage, error)

	// Close closes the store and releases any resources.
	Close() error
}

// StoredMessage is one persisted transcript message.
type StoredMessage struct {
	ID        string               `json:"id"`
	SessionID string               `json:"session_id"`
	Seq       int                  `json:"seq"`
	Role      string               `json:"role"`
	Text      string               `json:"text"`
	Timestamp time.Time            `json:"timestamp"`
	Context   []rag.SourceDocument `json:"context,omitempty"`
	IsError   bool                 `json:"is_error"`
}

// SessionSummary describes one stored session.
type SessionSummary struct {
	ID            string    `json:"id"`
	FirstQuestion string    `json:"first_question"`
	MessageCount  int       `json:"message_count"`
	StartedAt     time.Time `json:"started_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionQuery pages through ListSessions. A zero Limit means no limit.
type SessionQuery struct {
	Limit  int
	Offset int
}

// FromTranscript converts a transcript message for storage.
func FromTranscript(sessionID string, m transcript.Message) StoredMessage {
	return StoredMessage{
		ID:        m.ID,
		SessionID: sessionID,
		Role:      string(m.Role),
		Text:      m.Text,
		Timestamp: m.Timestamp,
		Context:   m.Context,
		IsError:   m.IsError,
	}
}

// FromExchange returns the user message followed by every reply.
func FromExchange(ex chat.Exchange) []StoredMessage {
	msgs := make([]StoredMessage, 0, 1+len(ex.Replies))
	msgs = append(msgs, FromTranscript(ex.SessionID, ex.User))
	for _, r := range ex.Replies {
		msgs = append(msgs, FromTranscript(ex.SessionID, r))
	}
	return msgs
}

// ToTranscript converts a stored message back into a frozen transcript message.
func (m StoredMessage) ToTranscript() transcript.Message {
	return transcript.Message{
		ID:        m.ID,
		Role:      transcript.Role(m.Role),
		Text:      m.Text,
		Timestamp: m.Timestamp,
		Context:   m.Context,
		IsError:   m.IsError,
		Frozen:    true,
	}
}
