package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/potrolco/tarsdeck/internal/live"
	"github.com/potrolco/tarsdeck/internal/tars"
	"pkt.systems/pslog"
)

// WorkersSnapshot is a point-in-time copy of the worker pool.
type WorkersSnapshot struct {
	Workers   []tars.Worker
	Loading   bool
	Error     string
	UpdatedAt time.Time
}

// Active returns workers that are neither paused nor idle.
func (s WorkersSnapshot) Active() []tars.Worker { return s.withStatus(tars.WorkerActive) }

// Idle returns workers waiting for a task.
func (s WorkersSnapshot) Idle() []tars.Worker { return s.withStatus(tars.WorkerIdle) }

// Paused returns paused workers, including paused workers that are also idle.
func (s WorkersSnapshot) Paused() []tars.Worker { return s.withStatus(tars.WorkerPaused) }

// Empty reports whether no workers are known.
func (s WorkersSnapshot) Empty() bool { return len(s.Workers) == 0 }

func (s WorkersSnapshot) withStatus(status tars.WorkerStatus) []tars.Worker {
	var out []tars.Worker
	for _, w := range s.Workers {
		if w.Status() == status {
			out = append(out, w)
		}
	}
	return out
}

// WorkersStore holds the worker list. It is fed by GET workers/status and by
// the workers_info stream; whichever lands last wins.
type WorkersStore struct {
	api    tars.WorkersAPI
	stream Streamer
	log    pslog.Logger
	sub    subscription

	mu       sync.RWMutex
	workers  []tars.Worker
	inflight int
	err      string
	updated  time.Time
}

// NewWorkersStore wires a store to its REST and push sources.
func NewWorkersStore(api tars.WorkersAPI, stream Streamer, logger pslog.Logger) *WorkersStore {
	return &WorkersStore{
		api:    api,
		stream: stream,
		log:    loggerOrDefault(logger).With("store", "workers"),
	}
}

// Snapshot returns a copy of the current state.
func (s *WorkersStore) Snapshot() WorkersSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return WorkersSnapshot{
		Workers:   cloneSlice(s.workers),
		Loading:   s.inflight > 0,
		Error:     s.err,
		UpdatedAt: s.updated,
	}
}

// Fetch replaces the worker list from REST. On failure the list is kept and
// Error is set.
func (s *WorkersStore) Fetch(ctx context.Context) error {
	s.begin()
	defer s.end()

	workers, err := s.api.FetchWorkers(ctx)
	if err != nil {
		s.fail(FetchWorkersFailed, err)
		return fmt.Errorf("fetch workers: %w", err)
	}
	s.replace(workers)
	return nil
}

// SetupStream subscribes to workers_info pushes.
func (s *WorkersStore) SetupStream() error {
	return s.sub.setup(s.stream, live.TypeWorkersInfo, live.StreamWorkersInfo, s.handlePush)
}

// Close drops the push handler. The stream itself stays desired.
func (s *WorkersStore) Close() { s.sub.close() }

// Pause pauses one worker and refreshes the list.
func (s *WorkersStore) Pause(ctx context.Context, id string) error {
	if err := s.api.PauseWorker(ctx, id); err != nil {
		s.fail(PauseWorkerFailed, err)
		return fmt.Errorf("pause worker %s: %w", id, err)
	}
	return s.Fetch(ctx)
}

// Resume resumes one worker and refreshes the list.
func (s *WorkersStore) Resume(ctx context.Context, id string) error {
	if err := s.api.ResumeWorker(ctx, id); err != nil {
		s.fail(ResumeWorkerFailed, err)
		return fmt.Errorf("resume worker %s: %w", id, err)
	}
	return s.Fetch(ctx)
}

func (s *WorkersStore) handlePush(msg live.Message) {
	info, ok := msg.Payload.(*live.WorkersInfo)
	if !ok {
		return
	}
	s.replace(info.Workers)
	s.log.Trace("workers pushed", "count", len(info.Workers))
}

func (s *WorkersStore) replace(workers []tars.Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = cloneSlice(workers)
	s.err = ""
	s.updated = time.Now()
}

func (s *WorkersStore) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight++
	s.err = ""
}

func (s *WorkersStore) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
}

func (s *WorkersStore) fail(msg string, err error) {
	s.mu.Lock()
	s.err = msg
	s.mu.Unlock()
	s.log.Warn(msg, "err", err)
}
