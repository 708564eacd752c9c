package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"
)

// Phase is the application-wide bootstrap state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

// Source is one store taking part in bootstrap. SetupStream is nil for
// stores without a push path.
type Source struct {
	Name        string
	Fetch       func(ctx context.Context) error
	SetupStream func() error
}

// Connector opens the push transport.
type Connector interface {
	Connect(ctx context.Context) error
}

// Bootstrap performs the initial load: every store's REST fetch in
// parallel, then the websocket and the push subscriptions.
type Bootstrap struct {
	conn    Connector
	sources []Source
	log     pslog.Logger

	mu    sync.Mutex
	phase Phase
	err   error
}

// NewBootstrap builds an idle coordinator.
func NewBootstrap(conn Connector, sources []Source, logger pslog.Logger) *Bootstrap {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bootstrap{
		conn:    conn,
		sources: sources,
		log:     logger.With("component", "bootstrap"),
	}
}

// Phase returns the current phase.
func (b *Bootstrap) Phase() Phase {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.phase
}

// Err returns the failure that put bootstrap into PhaseError.
func (b *Bootstrap) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Reset returns to PhaseIdle. Work already in flight is not cancelled.
func (b *Bootstrap) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.phase = PhaseIdle
	b.err = nil
}

// Init loads initial data. It is a no-op while loading or ready, so
// concurrent callers trigger a single load. From PhaseError it retries.
// A websocket that cannot connect does not fail Init; the client keeps
// retrying on its own.
func (b *Bootstrap) Init(ctx context.Context) error {
	b.mu.Lock()
	if b.phase == PhaseLoading || b.phase == PhaseReady {
		b.mu.Unlock()
		return nil
	}
	b.phase = PhaseLoading
	b.err = nil
	b.mu.Unlock()

	b.log.Info("bootstrap started", "sources", len(b.sources))

	// plain Group: one failing store must not cancel the others' fetches
	var g errgroup.Group
	errs := make([]error, len(b.sources))
	for i, src := range b.sources {
		if src.Fetch == nil {
			continue
		}
		g.Go(func() error {
			if err := src.Fetch(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
				return errs[i]
			}
			return nil
		})
	}
	if g.Wait() != nil {
		err := errors.Join(errs...)
		b.mu.Lock()
		b.phase = PhaseError
		b.err = err
		b.mu.Unlock()
		b.log.Error("bootstrap failed", "err", err)
		return err
	}

	if b.conn != nil {
		if err := b.conn.Connect(ctx); err != nil {
			b.log.Warn("websocket unavailable, retrying in background", "err", err)
		}
	}
	for _, src := range b.sources {
		if src.SetupStream == nil {
			continue
		}
		if err := src.SetupStream(); err != nil {
			b.log.Warn("stream setup failed", "source", src.Name, "err", err)
		}
	}

	b.mu.Lock()
	b.phase = PhaseReady
	b.mu.Unlock()
	b.log.Info("bootstrap ready")
	return nil
}
