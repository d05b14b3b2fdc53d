package rag

// EventKind discriminates stream events.
type EventKind int

const (
	// KindContext marks a ContextEvent.
	KindContext EventKind = iota

	// KindAnswer marks an AnswerEvent.
	KindAnswer
)

func (k EventKind) String() string {
	switch k {
	case KindContext:
		return "context"
	case KindAnswer:
		return "answer"
	default:
		return "unknown"
	}
}

// Event is one decoded item of a RAG response stream.
type Event interface {
	Kind() EventKind
}

// ContextEvent carries the documents retrieved for the query. The backend
// sends it at most once, before any answer tokens.
type ContextEvent struct {
	Documents []SourceDocument
}

// Kind implements Event.
func (ContextEvent) Kind() EventKind { return KindContext }

// AnswerEvent carries one incremental fragment of the generated answer.
type AnswerEvent struct {
	Token string
}

// Kind implements Event.
func (AnswerEvent) Kind() EventKind { return KindAnswer }

// wireEvent is one ndjson line as sent by the backend. Either key may be
// absent; pointers tell absence apart from an empty value.
type wireEvent struct {
	Context *[]SourceDocument `json:"context"`
	Answer  *string           `json:"answer"`
}
