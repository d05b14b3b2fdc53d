package rag

import (
	"encoding/json"
	"io"
	"iter"
	"log/slog"

	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/ndjson"
)

// StreamOption configures a Stream.
type StreamOption func(*streamConfig)

type streamConfig struct {
	logger      *slog.Logger
	readBuf     int
	onMalformed func(*ndjson.MalformedLineError)
}

// WithStreamLogger sets the logger used for stream diagnostics.
func WithStreamLogger(l *slog.Logger) StreamOption {
	return func(c *streamConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStreamReadBufferSize sets the chunk size read from the body.
func WithStreamReadBufferSize(n int) StreamOption {
	return func(c *streamConfig) {
		c.readBuf = n
	}
}

// WithMalformedHandler is called for every line that is not valid JSON.
func WithMalformedHandler(fn func(*ndjson.MalformedLineError)) StreamOption {
	return func(c *streamConfig) {
		c.onMalformed = fn
	}
}

// Stream yields the events of one RAG response in arrival order.
type Stream struct {
	reader *ndjson.Reader
	logger *slog.Logger

	// pending holds the answer half of a line that carried both keys.
	pending Event
}

// NewStream decodes events from body. Stream takes ownership of body.
func NewStream(body io.ReadCloser, opts ...StreamOption) *Stream {
	cfg := &streamConfig{
		logger:  logger.Nop(),
		readBuf: ndjson.DefaultReadBufferSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	decoderOpts := []ndjson.DecoderOption{ndjson.WithLogger(cfg.logger)}
	if cfg.onMalformed != nil {
		decoderOpts = append(decoderOpts, ndjson.WithMalformedHandler(cfg.onMalformed))
	}

	return &Stream{
		reader: ndjson.NewReader(body,
			ndjson.WithReadBufferSize(cfg.readBuf),
			ndjson.WithDecoderOptions(decoderOpts...),
		),
		logger: cfg.logger,
	}
}

// Next returns the next event, or (nil, nil) once the stream is exhausted.
// Read failures are returned as TransportErrors.
func (s *Stream) Next() (Event, error) {
	if s.pending != nil {
		ev := s.pending
		s.pending = nil
		return ev, nil
	}

	for {
		raw, err := s.reader.Next()
		if err != nil {
			return nil, &TransportError{Op: "rag", Err: err}
		}
		if raw == nil {
			return nil, nil
		}

		first, second, ok := s.interpret(raw)
		if !ok {
			continue
		}
		s.pending = second
		return first, nil
	}
}

// Events is the iterator form of Next. Breaking out of the loop closes the
// stream.
func (s *Stream) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer s.Close()

		for {
			ev, err := s.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if ev == nil {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// Close releases the response body. Safe to call more than once.
func (s *Stream) Close() error {
	s.pending = nil
	return s.reader.Close()
}

// interpret maps one JSON line to up to two events. A line carrying both
// keys yields the context first.
func (s *Stream) interpret(raw json.RawMessage) (Event, Event, bool) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		s.logger.Warn("ignoring non-object rag line", "error", err)
		return nil, nil, false
	}

	var events []Event
	if w.Context != nil {
		events = append(events, ContextEvent{Documents: *w.Context})
	}
	if w.Answer != nil {
		events = append(events, AnswerEvent{Token: *w.Answer})
	}

	switch len(events) {
	case 0:
		s.logger.Debug("ignoring rag line without context or answer")
		return nil, nil, false
	case 1:
		return events[0], nil, true
	default:
		return events[0], events[1], true
	}
}
