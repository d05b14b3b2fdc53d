package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/rag"
)

// AllChannels is the label of the empty selection.
const AllChannels = "All Channels"

// ChannelLister loads the channels a query can be filtered by. *rag.Client
// implements it.
type ChannelLister interface {
	Channels(ctx context.Context) ([]rag.Channel, error)
}

// Selector holds the channel list and the current selection. Observers are
// told about every selection change.
type Selector struct {
	mu        sync.RWMutex
	channels  []rag.Channel
	selected  string
	loadErr   error
	observers map[int]func(string)
	nextID    int
	logger    *slog.Logger
}

// NewSelector returns a selector with nothing loaded and all channels
// selected.
func NewSelector(l *slog.Logger) *Selector {
	if l == nil {
		l = logger.Nop()
	}
	return &Selector{
		observers: make(map[int]func(string)),
		logger:    l,
	}
}

// Load fetches the channel list. On failure the list stays empty, the error
// is kept for Err, and the error is returned.
func (s *Selector) Load(ctx context.Context, lister ChannelLister) error {
	channels, err := lister.Channels(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.channels = nil
		s.loadErr = err
		s.logger.Error("failed to load channels", "error", err)
		return err
	}

	s.channels = channels
	s.loadErr = nil
	s.logger.Debug("loaded channels", "count", len(channels))
	return nil
}

// Err returns the last load failure, if any.
func (s *Selector) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Channels returns a copy of the loaded channels.
func (s *Selector) Channels() []rag.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.channels)
}

// Selected returns the selected channel ID, "" for all channels.
func (s *Selector) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Label returns the title of the selection for display.
func (s *Selector) Label() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == "" {
		return AllChannels
	}
	for _, c := range s.channels {
		if c.ID == s.selected {
			return c.Title
		}
	}
	return s.selected
}

// Select changes the selection to id. An empty id selects all channels. An
// id that is not in a loaded list is rejected.
func (s *Selector) Select(id string) error {
	id = strings.TrimSpace(id)

	s.mu.Lock()
	if id != "" && len(s.channels) > 0 && !slices.ContainsFunc(s.channels, func(c rag.Channel) bool { return c.ID == id }) {
		s.mu.Unlock()
		return fmt.Errorf("unknown channel %q", id)
	}
	changed := s.selected != id
	s.selected = id
	s.mu.Unlock()

	if changed {
		s.notify(id)
	}
	return nil
}

// SelectByTitle selects the channel whose ID or title matches, ignoring
// case. "all" and "" select all channels.
func (s *Selector) SelectByTitle(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "all") || strings.EqualFold(name, AllChannels) {
		return s.Select("")
	}

	s.mu.RLock()
	var match string
	for _, c := range s.channels {
		if c.ID == name || strings.EqualFold(c.Title, name) {
			match = c.ID
			break
		}
	}
	s.mu.RUnlock()

	if match == "" {
		return fmt.Errorf("no channel matches %q", name)
	}
	return s.Select(match)
}

// Cycle advances the selection: all channels, then each channel in order,
// then back to all. It returns the new selection.
func (s *Selector) Cycle() string {
	s.mu.Lock()
	next := ""
	if len(s.channels) > 0 {
		i := slices.IndexFunc(s.channels, func(c rag.Channel) bool { return c.ID == s.selected })
		if i+1 < len(s.channels) {
			next = s.channels[i+1].ID
		}
	}
	changed := s.selected != next
	s.selected = next
	s.mu.Unlock()

	if changed {
		s.notify(next)
	}
	return next
}

// Subscribe registers fn for selection changes. The returned function
// removes it.
func (s *Selector) Subscribe(fn func(channelID string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Selector) notify(channelID string) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(string), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(channelID)
	}
}
