package chat

// State is the per-request lifecycle of a submitted query.
type State int

const (
	// AwaitingContext means the request is open but no context has arrived.
	AwaitingContext State = iota

	// Streaming means the assistant message exists and answer tokens grow it.
	Streaming

	// Completed means the stream ended normally, with or without results.
	Completed

	// Failed means the stream ended with a transport failure or cancellation.
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingContext:
		return "awaiting_context"
	case Streaming:
		return "streaming"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
