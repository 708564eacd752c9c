package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/potrolco/tarsdeck/internal/tars"
	"pkt.systems/pslog"
)

const defaultPageSize = 30

// HistorySnapshot is a point-in-time copy of completed tasks.
type HistorySnapshot struct {
	Tasks     []tars.HistoryTask
	Total     int
	Loading   bool
	Error     string
	UpdatedAt time.Time
}

// Succeeded returns tasks that finished successfully.
func (s HistorySnapshot) Succeeded() []tars.HistoryTask {
	var out []tars.HistoryTask
	for _, t := range s.Tasks {
		if t.TaskSuccess {
			out = append(out, t)
		}
	}
	return out
}

// Failed returns tasks that finished with an error.
func (s HistorySnapshot) Failed() []tars.HistoryTask {
	var out []tars.HistoryTask
	for _, t := range s.Tasks {
		if !t.TaskSuccess {
			out = append(out, t)
		}
	}
	return out
}

// Empty reports whether no history is loaded.
func (s HistorySnapshot) Empty() bool { return len(s.Tasks) == 0 }

// HistoryStore holds completed tasks. It is REST-only.
type HistoryStore struct {
	api      tars.HistoryAPI
	log      pslog.Logger
	pageSize int

	mu       sync.RWMutex
	tasks    []tars.HistoryTask
	total    int
	inflight int
	err      string
	updated  time.Time
}

// NewHistoryStore builds a store. pageSize is used to reload the first page
// after ClearCompleted.
func NewHistoryStore(api tars.HistoryAPI, pageSize int, logger pslog.Logger) *HistoryStore {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &HistoryStore{
		api:      api,
		pageSize: pageSize,
		log:      loggerOrDefault(logger).With("store", "history"),
	}
}

// Snapshot returns a copy of the current state.
func (s *HistoryStore) Snapshot() HistorySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return HistorySnapshot{
		Tasks:     cloneSlice(s.tasks),
		Total:     s.total,
		Loading:   s.inflight > 0,
		Error:     s.err,
		UpdatedAt: s.updated,
	}
}

// Fetch loads one page. start == 0 replaces the list; later pages append
// tasks whose id is not already present.
func (s *HistoryStore) Fetch(ctx context.Context, start, length int) error {
	s.mu.Lock()
	s.inflight++
	s.err = ""
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}()

	page, err := s.api.FetchHistoryTasks(ctx, start, length)
	if err != nil {
		s.setError(FetchHistoryFailed, err)
		return fmt.Errorf("fetch history: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if start == 0 {
		s.tasks = cloneSlice(page.Data)
	} else {
		s.tasks = appendUnique(s.tasks, page.Data, func(t tars.HistoryTask) int64 { return t.ID })
	}
	s.total = page.RecordsTotal
	s.updated = time.Now()
	return nil
}

// ClearCompleted deletes successful tasks on the server and reloads the
// first page.
func (s *HistoryStore) ClearCompleted(ctx context.Context) error {
	if err := s.api.DeleteCompletedTasks(ctx); err != nil {
		s.setError(ClearHistoryFailed, err)
		return fmt.Errorf("clear completed tasks: %w", err)
	}
	return s.Fetch(ctx, 0, s.pageSize)
}

func (s *HistoryStore) setError(msg string, err error) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
	s.log.Warn(msg, "err", err)
}
