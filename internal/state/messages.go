package state

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/potrolco/tarsdeck/internal/live"
	"github.com/potrolco/tarsdeck/internal/tars"
	"pkt.systems/pslog"
)

// MessageStreamer adds the dismiss command to Streamer.
type MessageStreamer interface {
	Streamer
	Dismiss(id string) error
}

// MessagesSnapshot is the current set of server notifications.
type MessagesSnapshot struct {
	Messages  []tars.FrontendMessage
	Error     string
	UpdatedAt time.Time
}

// Empty reports whether there is nothing to show.
func (s MessagesSnapshot) Empty() bool { return len(s.Messages) == 0 }

// MessagesStore mirrors the frontend_messages stream. There is no REST
// source; every push replaces the list.
type MessagesStore struct {
	stream MessageStreamer
	log    pslog.Logger
	sub    subscription

	mu       sync.RWMutex
	messages []tars.FrontendMessage
	err      string
	updated  time.Time
}

// NewMessagesStore builds a push-only store.
func NewMessagesStore(stream MessageStreamer, logger pslog.Logger) *MessagesStore {
	return &MessagesStore{
		stream: stream,
		log:    loggerOrDefault(logger).With("store", "messages"),
	}
}

// Snapshot returns a copy of the current state.
func (s *MessagesStore) Snapshot() MessagesSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return MessagesSnapshot{
		Messages:  cloneSlice(s.messages),
		Error:     s.err,
		UpdatedAt: s.updated,
	}
}

// SetupStream subscribes to frontend_message pushes.
func (s *MessagesStore) SetupStream() error {
	var stream Streamer
	if s.stream != nil {
		stream = s.stream
	}
	return s.sub.setup(stream, live.TypeFrontendMessage, live.StreamFrontendMessages, s.handlePush)
}

// Close drops the push handler.
func (s *MessagesStore) Close() { s.sub.close() }

// Dismiss removes id locally and tells the server. The local removal stands
// even when the command is dropped; the next push is authoritative.
func (s *MessagesStore) Dismiss(id string) error {
	s.mu.Lock()
	s.messages = slices.DeleteFunc(slices.Clone(s.messages), func(m tars.FrontendMessage) bool { return m.ID == id })
	s.updated = time.Now()
	s.mu.Unlock()

	if s.stream == nil {
		return fmt.Errorf("dismiss message %s: no stream client", id)
	}
	if err := s.stream.Dismiss(id); err != nil {
		s.mu.Lock()
		s.err = DismissMessageFailed
		s.mu.Unlock()
		s.log.Warn(DismissMessageFailed, "message_id", id, "err", err)
		return fmt.Errorf("dismiss message %s: %w", id, err)
	}
	return nil
}

func (s *MessagesStore) handlePush(msg live.Message) {
	fm, ok := msg.Payload.(*live.FrontendMessages)
	if !ok {
		return
	}
	s.mu.Lock()
	s.messages = cloneSlice(fm.Messages)
	s.err = ""
	s.updated = time.Now()
	s.mu.Unlock()
	s.log.Trace("frontend messages pushed", "count", len(fm.Messages))
}
