package state

import (
	"context"
	"errors"
	"sync"

	"github.com/potrolco/tarsdeck/internal/live"
	"github.com/potrolco/tarsdeck/internal/tars"
)

type fakeStreamer struct {
	mu        sync.Mutex
	handlers  map[live.MessageType][]live.Handler
	started   []string
	dismissed []string
	startErr  error
	sendErr   error
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{handlers: map[live.MessageType][]live.Handler{}}
}

func (f *fakeStreamer) On(t live.MessageType, h live.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[t] = append(f.handlers[t], h)
	idx := len(f.handlers[t]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.handlers[t][idx] = nil
	}
}

func (f *fakeStreamer) StartStream(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, name)
	return f.startErr
}

func (f *fakeStreamer) Dismiss(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
	return f.sendErr
}

func (f *fakeStreamer) push(t live.MessageType, payload live.Payload) {
	f.mu.Lock()
	handlers := append([]live.Handler(nil), f.handlers[t]...)
	f.mu.Unlock()
	for _, h := range handlers {
		if h != nil {
			h(live.Message{Type: t, Success: true, Payload: payload})
		}
	}
}

func (f *fakeStreamer) handlerCount(t live.MessageType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.handlers[t] {
		if h != nil {
			n++
		}
	}
	return n
}

var errBackend = errors.New("backend down")

type fakeWorkersAPI struct {
	mu      sync.Mutex
	workers []tars.Worker
	err     error
	calls   int
	paused  []string
	resumed []string
}

func (f *fakeWorkersAPI) FetchWorkers(context.Context) ([]tars.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]tars.Worker(nil), f.workers...), nil
}

func (f *fakeWorkersAPI) PauseWorker(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = append(f.paused, id)
	for i := range f.workers {
		if f.workers[i].ID == id {
			f.workers[i].Paused = true
		}
	}
	return nil
}

func (f *fakeWorkersAPI) ResumeWorker(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed = append(f.resumed, id)
	for i := range f.workers {
		if f.workers[i].ID == id {
			f.workers[i].Paused = false
		}
	}
	return nil
}

// fakeQueueAPI serves pages from tasks. When gate is non-nil every call
// blocks until a value is received from it.
type fakeQueueAPI struct {
	mu        sync.Mutex
	tasks     []tars.QueueTask
	total     int
	fetchErr  error
	deleteErr error
	deleted   []int64
	gate      chan struct{}
	entered   chan struct{}
}

func (f *fakeQueueAPI) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeQueueAPI) FetchPendingTasks(_ context.Context, start, length int) (tars.Page[tars.QueueTask], error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return tars.Page[tars.QueueTask]{}, f.fetchErr
	}
	end := min(start+length, len(f.tasks))
	if start > end {
		start = end
	}
	total := f.total
	if total == 0 {
		total = len(f.tasks)
	}
	return tars.Page[tars.QueueTask]{Data: append([]tars.QueueTask(nil), f.tasks[start:end]...), RecordsTotal: total}, nil
}

func (f *fakeQueueAPI) DeletePendingTask(_ context.Context, id int64) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type fakeHistoryAPI struct {
	mu       sync.Mutex
	tasks    []tars.HistoryTask
	fetchErr error
	clearErr error
	cleared  int
	requests []tars.PageRequest
}

func (f *fakeHistoryAPI) FetchHistoryTasks(_ context.Context, start, length int) (tars.Page[tars.HistoryTask], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, tars.PageRequest{Start: start, Length: length})
	if f.fetchErr != nil {
		return tars.Page[tars.HistoryTask]{}, f.fetchErr
	}
	end := min(start+length, len(f.tasks))
	if start > end {
		start = end
	}
	return tars.Page[tars.HistoryTask]{Data: append([]tars.HistoryTask(nil), f.tasks[start:end]...), RecordsTotal: len(f.tasks)}, nil
}

func (f *fakeHistoryAPI) DeleteCompletedTasks(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared++
	kept := f.tasks[:0]
	for _, t := range f.tasks {
		if !t.TaskSuccess {
			kept = append(kept, t)
		}
	}
	f.tasks = kept
	return nil
}
