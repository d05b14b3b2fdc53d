package chat

import (
	"time"

	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/transcript"
)

// Outcome summarizes one finished submission.
type Outcome struct {
	State State
	Query rag.Query

	// AssistantIndex is the transcript index of the reply built from the
	// stream (or the no-results reply), or -1 when none was appended.
	AssistantIndex int

	// ErrorIndex is the transcript index of the error reply, or -1.
	ErrorIndex int

	// EmptyResult is set when the stream ended without any context. It is a
	// normal completion, not a failure.
	EmptyResult bool

	// Err is the transport failure that ended the stream, if any.
	Err error

	StartedAt   time.Time
	CompletedAt time.Time
}

// Duration is the wall time between submission and completion.
func (o Outcome) Duration() time.Duration {
	return o.CompletedAt.Sub(o.StartedAt)
}

// Exchange is one question with every assistant reply it produced. It is
// handed to completion hooks for persistence and publishing.
type Exchange struct {
	SessionID string
	Outcome   Outcome
	User      transcript.Message
	Replies   []transcript.Message
}

// Answer returns the text of the non-error reply, if any.
func (e Exchange) Answer() string {
	for _, m := range e.Replies {
		if !m.IsError {
			return m.Text
		}
	}
	return ""
}

// Sources returns the documents attached to the replies.
func (e Exchange) Sources() []rag.SourceDocument {
	for _, m := range e.Replies {
		if m.HasContext() {
			return m.Context
		}
	}
	return nil
}

// Failed reports whether the exchange ended with an error reply.
func (e Exchange) Failed() bool {
	return e.Outcome.State == Failed
}
