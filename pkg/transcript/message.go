// Package transcript holds the ordered, append-only conversation shown to
// the user. Renderers follow it through observers.
package transcript

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ragtube/pkg/rag"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the transcript. Text may grow while an assistant
// reply streams in and never changes once Frozen is set.
type Message struct {
	ID        string
	Role      Role
	Text      string
	Timestamp time.Time
	Context   []rag.SourceDocument
	IsError   bool
	Frozen    bool
}

// NewUserMessage builds a frozen user message.
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		Timestamp: time.Now(),
		Frozen:    true,
	}
}

// NewAssistantMessage builds an open assistant message that can still grow.
func NewAssistantMessage(text string, docs []rag.SourceDocument) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Text:      text,
		Timestamp: time.Now(),
		Context:   docs,
	}
}

// NewErrorMessage builds a frozen assistant message flagged as an error.
func NewErrorMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Text:      text,
		Timestamp: time.Now(),
		IsError:   true,
		Frozen:    true,
	}
}

// HasContext reports whether retrieved documents are attached.
func (m Message) HasContext() bool {
	return len(m.Context) > 0
}
