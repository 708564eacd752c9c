package state

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/potrolco/tarsdeck/internal/live"
	"github.com/potrolco/tarsdeck/internal/tars"
	"pkt.systems/pslog"
)

// QueueSnapshot is a point-in-time copy of the pending queue.
type QueueSnapshot struct {
	Tasks     []tars.QueueTask
	Total     int
	Loading   bool
	Error     string
	UpdatedAt time.Time
}

// Empty reports whether no pending tasks are loaded.
func (s QueueSnapshot) Empty() bool { return len(s.Tasks) == 0 }

// QueueStore holds the pending task list in server order.
type QueueStore struct {
	api    tars.QueueAPI
	stream Streamer
	log    pslog.Logger
	sub    subscription

	mu       sync.RWMutex
	tasks    []tars.QueueTask
	total    int
	inflight int
	err      string
	updated  time.Time
	// gen counts wholesale replacements; a failed delete only rolls back
	// when nothing replaced the list in between.
	gen uint64
}

// NewQueueStore wires a store to its REST and push sources.
func NewQueueStore(api tars.QueueAPI, stream Streamer, logger pslog.Logger) *QueueStore {
	return &QueueStore{
		api:    api,
		stream: stream,
		log:    loggerOrDefault(logger).With("store", "queue"),
	}
}

// Snapshot returns a copy of the current state.
func (s *QueueStore) Snapshot() QueueSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return QueueSnapshot{
		Tasks:     cloneSlice(s.tasks),
		Total:     s.total,
		Loading:   s.inflight > 0,
		Error:     s.err,
		UpdatedAt: s.updated,
	}
}

// Fetch loads one page. start == 0 replaces the list; later pages append
// tasks whose id is not already present.
func (s *QueueStore) Fetch(ctx context.Context, start, length int) error {
	s.begin()
	defer s.end()

	page, err := s.api.FetchPendingTasks(ctx, start, length)
	if err != nil {
		s.fail(FetchQueueFailed, err)
		return fmt.Errorf("fetch pending tasks: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if start == 0 {
		s.tasks = cloneSlice(page.Data)
		s.gen++
	} else {
		s.tasks = appendUnique(s.tasks, page.Data, queueTaskID)
	}
	s.total = page.RecordsTotal
	s.updated = time.Now()
	return nil
}

// SetupStream subscribes to pending_tasks pushes.
func (s *QueueStore) SetupStream() error {
	return s.sub.setup(s.stream, live.TypePendingTasks, live.StreamPendingTasks, s.handlePush)
}

// Close drops the push handler.
func (s *QueueStore) Close() { s.sub.close() }

// DeleteTask removes id locally and decrements Total before asking the
// server. Total drops even when id is outside the loaded pages. If the server
// refuses, both are restored unless a fetch or push has since replaced the
// list.
func (s *QueueStore) DeleteTask(ctx context.Context, id int64) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.tasks, func(t tars.QueueTask) bool { return t.ID == id })
	var removed tars.QueueTask
	if idx >= 0 {
		removed = s.tasks[idx]
		s.tasks = slices.Delete(slices.Clone(s.tasks), idx, idx+1)
	}
	decremented := s.total > 0
	if decremented {
		s.total--
	}
	s.updated = time.Now()
	gen := s.gen
	s.mu.Unlock()

	err := s.api.DeletePendingTask(ctx, id)
	if err == nil {
		s.log.Debug("pending task deleted", "task_id", id)
		return nil
	}

	s.mu.Lock()
	s.err = DeleteTaskFailed
	rolledBack := false
	if s.gen == gen {
		if idx >= 0 && !slices.ContainsFunc(s.tasks, func(t tars.QueueTask) bool { return t.ID == id }) {
			at := min(idx, len(s.tasks))
			s.tasks = slices.Insert(slices.Clone(s.tasks), at, removed)
			rolledBack = true
		}
		if decremented {
			s.total++
			rolledBack = true
		}
	}
	s.mu.Unlock()

	s.log.Warn(DeleteTaskFailed, "task_id", id, "rolled_back", rolledBack, "err", err)
	return fmt.Errorf("delete pending task %d: %w", id, err)
}

func (s *QueueStore) handlePush(msg live.Message) {
	pending, ok := msg.Payload.(*live.PendingTasks)
	if !ok {
		return
	}
	s.mu.Lock()
	s.tasks = cloneSlice(pending.Tasks)
	s.total = pending.Total
	s.err = ""
	s.updated = time.Now()
	s.gen++
	s.mu.Unlock()
	s.log.Trace("pending tasks pushed", "count", len(pending.Tasks), "total", pending.Total)
}

func (s *QueueStore) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.err = ""
}

func (s *QueueStore) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
}

func (s *QueueStore) fail(msg string, err error) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
	s.log.Warn(msg, "err", err)
}

func queueTaskID(t tars.QueueTask) int64 { return t.ID }
