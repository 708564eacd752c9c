package state

import (
	"context"
	"errors"
	"sync"

	"github.com/potrolco/tarsdeck/internal/live"
	"pkt.systems/pslog"
)

// User-visible error messages. Stores never expose transport errors directly.
const (
	FetchWorkersFailed   = "Failed to fetch workers"
	PauseWorkerFailed    = "Failed to pause worker"
	ResumeWorkerFailed   = "Failed to resume worker"
	FetchQueueFailed     = "Failed to fetch pending tasks"
	DeleteTaskFailed     = "Failed to delete task"
	FetchHistoryFailed   = "Failed to fetch task history"
	ClearHistoryFailed   = "Failed to clear completed tasks"
	DismissMessageFailed = "Failed to dismiss message"
)

// Streamer is the slice of live.Client a store needs to receive pushes.
type Streamer interface {
	On(t live.MessageType, h live.Handler) (off func())
	StartStream(name string) error
}

// subscription registers one handler and starts one stream. It is safe to
// call setup more than once.
type subscription struct {
	mu  sync.Mutex
	off func()
}

func (s *subscription) setup(stream Streamer, t live.MessageType, name string, h live.Handler) error {
	if stream == nil {
		return errors.New("no stream client")
	}
	s.mu.Lock()
	if s.off == nil {
		s.off = stream.On(t, h)
	}
	s.mu.Unlock()
	// while offline the stream stays desired and is started on connect
	if err := stream.StartStream(name); err != nil && !errors.Is(err, live.ErrNotConnected) {
		return err
	}
	return nil
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.off != nil {
		s.off()
		s.off = nil
	}
}

func loggerOrDefault(logger pslog.Logger) pslog.Logger {
	if logger == nil {
		return pslog.Ctx(context.Background())
	}
	return logger
}

// appendUnique appends the items of page whose key is not already in dst.
func appendUnique[T any, K comparable](dst, page []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(dst))
	for _, item := range dst {
		seen[key(item)] = struct{}{}
	}
	for _, item := range page {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dst = append(dst, item)
	}
	return dst
}

func cloneSlice[T any](items []T) []T {
	if len(items) == 0 {
		return nil
	}
	dup := make([]T, len(items))
	copy(dup, items)
	return dup
}
