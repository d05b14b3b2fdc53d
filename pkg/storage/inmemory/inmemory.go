// Package inmemory provides a map-backed storage driver for tests and for
// running without persistence.
package inmemory

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/papercomputeco/ragtube/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex guarding sessions and ids
	mu sync.RWMutex

	// sessions maps a session ID to its messages in sequence order
	sessions map[string][]storage.StoredMessage

	// ids holds every stored message ID for idempotent inserts
	ids map[string]struct{}
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		sessions: make(map[string][]storage.StoredMessage),
		ids:      make(map[string]struct{}),
	}
}

// PutMessages stores msgs, skipping IDs that already exist.
func (s *Driver) PutMessages(_ context.Context, sessionID string, msgs []storage.StoredMessage) error {
	if sessionID == "" {
		return errors.New("cannot store messages without a session id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.sessions[sessionID]
	for _, m := range msgs {
		if m.ID == "" {
			return errors.New("cannot store message without an id")
		}
		if _, ok := s.ids[m.ID]; ok {
			continue
		}

		m.SessionID = sessionID
		m.Seq = len(existing)
		existing = append(existing, m)
		s.ids[m.ID] = struct{}{}
	}
	s.sessions[sessionID] = existing

	return nil
}

// ListSessions returns summaries, most recently updated first.
func (s *Driver) ListSessions(_ context.Context, query storage.SessionQuery) ([]storage.SessionSummary, error) {
	s.mu.RLock()
	summaries := make([]storage.SessionSummary, 0, len(s.sessions))
	for id, msgs := range s.sessions {
		summaries = append(summaries, summarize(id, msgs))
	}
	s.mu.RUnlock()

	slices.SortFunc(summaries, func(a, b storage.SessionSummary) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return page(summaries, query), nil
}

// GetSession returns the messages of a session in order.
func (s *Driver) GetSession(_ context.Context, sessionID string) ([]storage.StoredMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs, ok := s.sessions[sessionID]
	if !ok || len(msgs) == 0 {
		return nil, storage.NotFoundError{SessionID: sessionID}
	}

	return slices.Clone(msgs), nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func summarize(id string, msgs []storage.StoredMessage) storage.SessionSummary {
	sum := storage.SessionSummary{ID: id, MessageCount: len(msgs)}
	for i, m := range msgs {
		if i == 0 || m.Timestamp.Before(sum.StartedAt) {
			sum.StartedAt = m.Timestamp
		}
		if m.Timestamp.After(sum.UpdatedAt) {
			sum.UpdatedAt = m.Timestamp
		}
		if sum.FirstQuestion == "" && m.Role == "user" {
			sum.FirstQuestion = m.Text
		}
	}
	return sum
}

func page(in []storage.SessionSummary, q storage.SessionQuery) []storage.SessionSummary {
	if q.Offset > 0 {
		if q.Offset >= len(in) {
			return []storage.SessionSummary{}
		}
		in = in[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(in) {
		in = in[:q.Limit]
	}
	return in
}

var _ storage.Driver = (*Driver)(nil)
