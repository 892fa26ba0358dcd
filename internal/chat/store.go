package chat

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Channel is a named room with an unread marker.
type Channel struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Unread bool   `json:"unread"`
}

// MessageListener receives every message appended to the store.
// Render sinks and the event bus hang off this.
type MessageListener interface {
	OnMessage(msg Message)
}

// Store holds all channels and their message history in memory. It is the
// authoritative transcript; external persistence tails it through listeners.
type Store struct {
	order     []string
	channels  map[string]*Channel
	history   map[string][]Message
	active    string
	listeners []MessageListener
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewStore creates an empty channel store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		channels: make(map[string]*Channel),
		history:  make(map[string][]Message),
		logger:   logger,
	}
}

// ChannelID derives the stable channel ID from a display name.
func ChannelID(name string) string {
	return "ch-" + url.QueryEscape(strings.ToLower(name))
}

// AddChannel registers a channel. The first channel added becomes active.
func (s *Store) AddChannel(name string) *Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ChannelID(name)
	if ch, ok := s.channels[id]; ok {
		return ch
	}
	ch := &Channel{ID: id, Name: name}
	s.channels[id] = ch
	s.order = append(s.order, id)
	if s.active == "" {
		s.active = id
	}
	return ch
}

// Subscribe registers a listener for all future messages.
func (s *Store) Subscribe(l MessageListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Append stores a message and notifies listeners. Messages landing outside
// the active channel flip its unread marker.
func (s *Store) Append(msg Message) error {
	s.mu.Lock()
	ch, ok := s.channels[msg.ChannelID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown channel %s", msg.ChannelID)
	}
	s.history[msg.ChannelID] = append(s.history[msg.ChannelID], msg)
	if msg.ChannelID != s.active {
		ch.Unread = true
	}
	listeners := append([]MessageListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l.OnMessage(msg)
	}
	return nil
}

// Channels returns the channel list in creation order.
func (s *Store) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.channels[id])
	}
	return out
}

// ActiveChannel returns the currently focused channel ID.
func (s *Store) ActiveChannel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActive switches focus to a channel and clears its unread marker.
func (s *Store) SetActive(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return fmt.Errorf("unknown channel %s", channelID)
	}
	s.active = channelID
	ch.Unread = false
	return nil
}

// History returns a copy of a channel's full transcript.
func (s *Store) History(channelID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Message(nil), s.history[channelID]...)
}

// Recent returns the last n messages of a channel, oldest first.
func (s *Store) Recent(channelID string, n int) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.history[channelID]
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]Message(nil), msgs...)
}

// LastMessage returns the newest message in a channel, if any.
func (s *Store) LastMessage(channelID string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.history[channelID]
	if len(msgs) == 0 {
		return Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// IdleSince reports how long a channel has been quiet as of now.
// A channel with no messages counts as idle forever.
func (s *Store) IdleSince(channelID string, now time.Time) time.Duration {
	if last, ok := s.LastMessage(channelID); ok {
		return now.Sub(last.Timestamp)
	}
	return time.Duration(1<<62 - 1)
}

// Clear wipes a channel's transcript.
func (s *Store) Clear(channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.channels[channelID]; !ok {
		return fmt.Errorf("unknown channel %s", channelID)
	}
	s.history[channelID] = nil
	return nil
}

// Len returns the message count of a channel.
func (s *Store) Len(channelID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history[channelID])
}
