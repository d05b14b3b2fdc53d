package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ragtube/pkg/chat"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeExchangeCompleted is emitted after a chat exchange finishes.
	EventTypeExchangeCompleted = "ragtube.exchange.completed"
)

// ExchangeCompletedEvent is a transport-neutral event payload for one
// finished question and its reply.
type ExchangeCompletedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	SessionID     string         `json:"session_id"`
	Query         QueryMeta      `json:"query"`
	State         string         `json:"state"`
	Answer        string         `json:"answer"`
	Sources       []SourceRef    `json:"sources"`
	IsError       bool           `json:"is_error"`
	Timing        ExchangeTiming `json:"timing"`
}

// QueryMeta describes the question that was asked.
type QueryMeta struct {
	Input     string `json:"input"`
	ChannelID string `json:"channel_id,omitempty"`
}

// SourceRef identifies one retrieved transcript chunk without its content.
type SourceRef struct {
	ID          int    `json:"id"`
	VideoID     string `json:"video_id"`
	Title       string `json:"title"`
	PublishTime string `json:"publish_time,omitempty"`
}

// ExchangeTiming captures request lifecycle metadata for the event.
type ExchangeTiming struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// NewExchangeCompletedEvent builds the event for ex.
func NewExchangeCompletedEvent(ex chat.Exchange) *ExchangeCompletedEvent {
	out := ex.Outcome

	sources := make([]SourceRef, 0, len(ex.Sources()))
	for _, doc := range ex.Sources() {
		sources = append(sources, SourceRef{
			ID:          doc.ID,
			VideoID:     doc.VideoID,
			Title:       doc.Title,
			PublishTime: doc.PublishTime,
		})
	}

	return &ExchangeCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeExchangeCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     ex.SessionID,
		Query: QueryMeta{
			Input:     out.Query.Text,
			ChannelID: out.Query.ChannelID,
		},
		State:   out.State.String(),
		Answer:  ex.Answer(),
		Sources: sources,
		IsError: ex.Failed(),
		Timing: ExchangeTiming{
			StartedAt:   out.StartedAt,
			CompletedAt: out.CompletedAt,
			DurationMs:  out.Duration().Milliseconds(),
		},
	}
}
