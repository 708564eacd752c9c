package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pkt.systems/pslog"
)

func testLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{Mode: pslog.ModeStructured, NoColor: true, MinLevel: pslog.ErrorLevel})
}

type fakeConnector struct {
	calls atomic.Int32
	err   error
}

func (f *fakeConnector) Connect(context.Context) error {
	f.calls.Add(1)
	return f.err
}

type countingSource struct {
	name   string
	fetchN atomic.Int32
	setupN atomic.Int32
	gate   chan struct{}
	mu     sync.Mutex
	err    error
}

func (c *countingSource) source() Source {
	return Source{
		Name: c.name,
		Fetch: func(context.Context) error {
			c.fetchN.Add(1)
			if c.gate != nil {
				<-c.gate
			}
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.err
		},
		SetupStream: func() error {
			c.setupN.Add(1)
			return nil
		},
	}
}

func TestBootstrapInitLoadsEverySource(t *testing.T) {
	conn := &fakeConnector{}
	workers := &countingSource{name: "workers"}
	queue := &countingSource{name: "queue"}
	b := NewBootstrap(conn, []Source{workers.source(), queue.source(), {Name: "messages", SetupStream: func() error { return nil }}}, testLogger())

	if b.Phase() != PhaseIdle {
		t.Fatalf("Phase = %v, want idle", b.Phase())
	}
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if b.Phase() != PhaseReady || b.Err() != nil {
		t.Fatalf("Phase = %v Err = %v", b.Phase(), b.Err())
	}
	if workers.fetchN.Load() != 1 || queue.fetchN.Load() != 1 {
		t.Fatalf("fetches = %d/%d, want 1/1", workers.fetchN.Load(), queue.fetchN.Load())
	}
	if workers.setupN.Load() != 1 || queue.setupN.Load() != 1 {
		t.Fatalf("setups = %d/%d, want 1/1", workers.setupN.Load(), queue.setupN.Load())
	}
	if conn.calls.Load() != 1 {
		t.Fatalf("Connect calls = %d, want 1", conn.calls.Load())
	}

	// ready is terminal until Reset
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if workers.fetchN.Load() != 1 {
		t.Fatalf("Init while ready should not refetch")
	}
}

func TestBootstrapConcurrentInitFetchesOnce(t *testing.T) {
	gate := make(chan struct{})
	workers := &countingSource{name: "workers", gate: gate}
	queue := &countingSource{name: "queue", gate: gate}
	history := &countingSource{name: "history", gate: gate}
	b := NewBootstrap(&fakeConnector{}, []Source{workers.source(), queue.source(), history.source()}, testLogger())

	first := make(chan error, 1)
	go func() { first <- b.Init(context.Background()) }()

	for b.Phase() != PhaseLoading {
		time.Sleep(time.Millisecond)
	}
	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first Init: %v", err)
	}

	for _, src := range []*countingSource{workers, queue, history} {
		if n := src.fetchN.Load(); n != 1 {
			t.Fatalf("%s fetched %d times, want 1", src.name, n)
		}
	}
}

func TestBootstrapFailureIsRetryable(t *testing.T) {
	conn := &fakeConnector{}
	workers := &countingSource{name: "workers"}
	queue := &countingSource{name: "queue", err: errors.New("connection refused")}
	b := NewBootstrap(conn, []Source{workers.source(), queue.source()}, testLogger())

	err := b.Init(context.Background())
	if err == nil {
		t.Fatalf("Init returned nil, want error")
	}
	if !strings.Contains(err.Error(), "queue") {
		t.Fatalf("error %q should name the failing source", err)
	}
	if b.Phase() != PhaseError || b.Err() == nil {
		t.Fatalf("Phase = %v Err = %v, want error phase", b.Phase(), b.Err())
	}
	if conn.calls.Load() != 0 || workers.setupN.Load() != 0 {
		t.Fatalf("streams must not be set up after a failed load")
	}
	if workers.fetchN.Load() != 1 {
		t.Fatalf("a failing source must not cancel the others")
	}

	queue.mu.Lock()
	queue.err = nil
	queue.mu.Unlock()

	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("retry Init: %v", err)
	}
	if b.Phase() != PhaseReady || b.Err() != nil {
		t.Fatalf("Phase = %v Err = %v after retry", b.Phase(), b.Err())
	}
	if workers.fetchN.Load() != 2 || queue.fetchN.Load() != 2 {
		t.Fatalf("retry should refetch every source")
	}
}

func TestBootstrapConnectFailureIsNotFatal(t *testing.T) {
	conn := &fakeConnector{err: errors.New("dial tcp: refused")}
	workers := &countingSource{name: "workers"}
	b := NewBootstrap(conn, []Source{workers.source()}, testLogger())

	if err := b.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if b.Phase() != PhaseReady {
		t.Fatalf("Phase = %v, want ready", b.Phase())
	}
	if workers.setupN.Load() != 1 {
		t.Fatalf("streams should still be registered for replay on connect")
	}
}

func TestBootstrapResetAllowsReload(t *testing.T) {
	workers := &countingSource{name: "workers"}
	b := NewBootstrap(nil, []Source{workers.source()}, testLogger())

	_ = b.Init(context.Background())
	b.Reset()
	if b.Phase() != PhaseIdle {
		t.Fatalf("Phase = %v after Reset, want idle", b.Phase())
	}
	_ = b.Init(context.Background())
	if workers.fetchN.Load() != 2 {
		t.Fatalf("fetches = %d, want 2", workers.fetchN.Load())
	}
}

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseIdle, "idle"},
		{PhaseLoading, "loading"},
		{PhaseReady, "ready"},
		{PhaseError, "error"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}
