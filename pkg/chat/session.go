// Package chat drives RAG queries and reduces their event streams into a
// conversation transcript.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/rag"
	"github.com/papercomputeco/ragtube/pkg/transcript"
)

const (
	// NoResultsText is shown when the backend retrieved no context.
	NoResultsText = "No relevant transcriptions were retrieved for your query."

	// ErrorText is shown when a request fails.
	ErrorText = "I apologize, but I encountered an error while processing your request. Please try again."

	// DefaultGreeting is the welcome message shown at the top of a new chat.
	DefaultGreeting = "Hello! I'm here to help answer any questions you may have about the YouTubers listed. " +
		"Feel free to ask me anything, and I will provide you with accurate and helpful answers using transcriptions from their videos."
)

var (
	// ErrEmptyQuery is returned for a submission that is blank after trimming.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrBusy is returned when a submission arrives while another is in flight.
	ErrBusy = errors.New("a request is already in flight")
)

// Streamer opens a RAG response stream. *rag.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, q rag.Query) (*rag.Stream, error)
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGreeting seeds the transcript with an assistant welcome message.
func WithGreeting(text string) Option {
	return func(s *Session) {
		s.greeting = text
	}
}

// WithCompletionHook registers fn to run after every finished submission.
// Hooks run on the submitting goroutine after the in-flight flag is cleared.
func WithCompletionHook(fn func(Exchange)) Option {
	return func(s *Session) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	}
}

// WithSessionID sets the session identifier instead of a random one.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithChannel sets the initial channel filter.
func WithChannel(channelID string) Option {
	return func(s *Session) {
		s.channel = strings.TrimSpace(channelID)
	}
}

// WithTranscript makes the session write into an existing transcript.
func WithTranscript(t *transcript.Transcript) Option {
	return func(s *Session) {
		if t != nil {
			s.transcript = t
		}
	}
}

// Session is one conversation with the backend. It allows at most one
// request in flight; everything it learns from a stream lands in its
// Transcript.
type Session struct {
	id         string
	streamer   Streamer
	transcript *transcript.Transcript
	logger     *slog.Logger
	greeting   string
	hooks      []func(Exchange)

	inFlight atomic.Bool

	mu      sync.RWMutex
	channel string
}

// NewSession creates a session that sends queries through streamer.
func NewSession(streamer Streamer, opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		streamer:   streamer,
		transcript: transcript.New(),
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.greeting != "" {
		idx := s.transcript.Append(transcript.NewAssistantMessage(s.greeting, nil))
		_ = s.transcript.Freeze(idx)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Transcript returns the conversation this session writes to.
func (s *Session) Transcript() *transcript.Transcript {
	return s.transcript
}

// Busy reports whether a request is in flight.
func (s *Session) Busy() bool {
	return s.inFlight.Load()
}

// Channel returns the current channel filter, "" for all channels.
func (s *Session) Channel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

// SetChannel changes the channel filter used by subsequent submissions.
func (s *Session) SetChannel(channelID string) {
	s.mu.Lock()
	s.channel = strings.TrimSpace(channelID)
	s.mu.Unlock()

	s.logger.Debug("channel filter changed", "channel_id", channelID)
}

// Bind makes the session follow sel's selection. The returned function
// stops following.
func (s *Session) Bind(sel *Selector) func() {
	s.SetChannel(sel.Selected())
	return sel.Subscribe(s.SetChannel)
}

// Submit sends text as a query and streams the reply into the transcript.
// It blocks until the stream ends. Transport failures and cancellation are
// reported through Outcome, never as the returned error; the error is only
// ErrEmptyQuery or ErrBusy, in which case nothing was changed.
func (s *Session) Submit(ctx context.Context, text string) (Outcome, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, ErrEmptyQuery
	}

	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Debug("rejecting submission while a request is in flight")
		return Outcome{}, ErrBusy
	}

	ex := func() Exchange {
		defer s.inFlight.Store(false)
		return s.run(ctx, rag.Query{Text: text, ChannelID: s.Channel()})
	}()

	for _, hook := range s.hooks {
		hook(ex)
	}
	return ex.Outcome, nil
}

// run executes one request. The caller holds the in-flight flag.
func (s *Session) run(ctx context.Context, q rag.Query) Exchange {
	out := Outcome{
		State:          AwaitingContext,
		Query:          q,
		AssistantIndex: -1,
		ErrorIndex:     -1,
		StartedAt:      time.Now(),
	}

	user := transcript.NewUserMessage(q.Text)
	userIdx := s.transcript.Append(user)

	s.logger.Info("submitting query",
		"session_id", s.id,
		"channel_id", q.ChannelID,
	)

	err := s.consume(ctx, q, &out)

	switch {
	case err != nil:
		s.fail(&out, err)

	case out.State == AwaitingContext:
		out.AssistantIndex = s.appendFrozen(transcript.NewAssistantMessage(NoResultsText, nil))
		out.EmptyResult = true
		out.State = Completed

	default:
		_ = s.transcript.Freeze(out.AssistantIndex)
		out.State = Completed
	}

	out.CompletedAt = time.Now()

	s.logger.Info("query finished",
		"session_id", s.id,
		"state", out.State.String(),
		"duration", out.Duration(),
	)

	return s.exchange(userIdx, out)
}

// consume reduces the stream into the transcript. It returns the failure
// that ended the stream, if any.
func (s *Session) consume(ctx context.Context, q rag.Query, out *Outcome) error {
	stream, err := s.streamer.Stream(ctx, q)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ev, err := stream.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			return nil
		}

		switch e := ev.(type) {
		case rag.ContextEvent:
			if out.State != AwaitingContext {
				s.logger.Debug("ignoring repeated context event")
				continue
			}
			out.AssistantIndex = s.transcript.Append(transcript.NewAssistantMessage("", e.Documents))
			out.State = Streaming

		case rag.AnswerEvent:
			if out.State != Streaming {
				s.logger.Debug("ignoring answer before context")
				continue
			}
			if e.Token == "" {
				continue
			}
			if err := s.transcript.AppendText(out.AssistantIndex, e.Token); err != nil {
				s.logger.Warn("failed to append answer token", "error", err)
			}
		}
	}
}

func (s *Session) fail(out *Outcome, err error) {
	if out.AssistantIndex >= 0 {
		_ = s.transcript.Freeze(out.AssistantIndex)
	}
	out.ErrorIndex = s.transcript.Append(transcript.NewErrorMessage(ErrorText))
	out.State = Failed
	out.Err = err

	s.logger.Error("query failed",
		"session_id", s.id,
		"status", rag.StatusCode(err),
		"error", err,
	)
}

func (s *Session) appendFrozen(m transcript.Message) int {
	idx := s.transcript.Append(m)
	_ = s.transcript.Freeze(idx)
	return idx
}

func (s *Session) exchange(userIdx int, out Outcome) Exchange {
	ex := Exchange{SessionID: s.id, Outcome: out}
	if m, ok := s.transcript.At(userIdx); ok {
		ex.User = m
	}
	for _, idx := range []int{out.AssistantIndex, out.ErrorIndex} {
		if m, ok := s.transcript.At(idx); ok {
			ex.Replies = append(ex.Replies, m)
		}
	}
	return ex
}
