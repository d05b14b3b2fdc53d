package transcript

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrOutOfRange is returned for an index past the end of the transcript.
	ErrOutOfRange = errors.New("message index out of range")

	// ErrFrozen is returned when appending text to a frozen message.
	ErrFrozen = errors.New("message is frozen")

	// ErrNotAssistant is returned when appending text to a non-assistant message.
	ErrNotAssistant = errors.New("only assistant messages can grow")
)

// ChangeKind describes a transcript mutation.
type ChangeKind int

const (
	// Appended means a new message was added at Index.
	Appended ChangeKind = iota

	// TextAppended means Delta was added to the text of the message at Index.
	TextAppended

	// Frozen means the message at Index will no longer change.
	Frozen
)

func (k ChangeKind) String() string {
	switch k {
	case Appended:
		return "appended"
	case TextAppended:
		return "text_appended"
	case Frozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Change is delivered to observers after each mutation. Message is a
// snapshot taken after the change was applied.
type Change struct {
	Kind    ChangeKind
	Index   int
	Message Message
	Delta   string
}

// Transcript is safe for concurrent use. Observers run synchronously on the
// mutating goroutine, outside the lock, in registration order.
type Transcript struct {
	mu        sync.RWMutex
	messages  []Message
	observers map[int]func(Change)
	nextID    int
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{
		observers: make(map[int]func(Change)),
	}
}

// Append adds m and returns its index.
func (t *Transcript) Append(m Message) int {
	t.mu.Lock()
	t.messages = append(t.messages, m)
	idx := len(t.messages) - 1
	t.mu.Unlock()

	t.notify(Change{Kind: Appended, Index: idx, Message: m})
	return idx
}

// AppendText grows the assistant message at index by token.
func (t *Transcript) AppendText(index int, token string) error {
	t.mu.Lock()
	if index < 0 || index >= len(t.messages) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}

	m := &t.messages[index]
	switch {
	case m.Role != RoleAssistant:
		t.mu.Unlock()
		return ErrNotAssistant
	case m.Frozen:
		t.mu.Unlock()
		return ErrFrozen
	}

	m.Text += token
	snapshot := *m
	t.mu.Unlock()

	t.notify(Change{Kind: TextAppended, Index: index, Message: snapshot, Delta: token})
	return nil
}

// Freeze marks the message at index as final. Freezing twice is a no-op.
func (t *Transcript) Freeze(index int) error {
	t.mu.Lock()
	if index < 0 || index >= len(t.messages) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}

	m := &t.messages[index]
	if m.Frozen {
		t.mu.Unlock()
		return nil
	}
	m.Frozen = true
	snapshot := *m
	t.mu.Unlock()

	t.notify(Change{Kind: Frozen, Index: index, Message: snapshot})
	return nil
}

// Messages returns a copy of all messages.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// At returns a copy of the message at index.
func (t *Transcript) At(index int) (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if index < 0 || index >= len(t.messages) {
		return Message{}, false
	}
	return t.messages[index], true
}

// Last returns the most recent message.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Subscribe registers fn for every subsequent change. The returned function
// removes it.
func (t *Transcript) Subscribe(fn func(Change)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.observers[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.observers, id)
		t.mu.Unlock()
	}
}

func (t *Transcript) notify(c Change) {
	t.mu.RLock()
	ids := make([]int, 0, len(t.observers))
	for id := range t.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, t.observers[id])
	}
	t.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
}
