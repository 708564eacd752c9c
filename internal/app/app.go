package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/potrolco/tarsdeck/internal/config"
	"github.com/potrolco/tarsdeck/internal/live"
	"github.com/potrolco/tarsdeck/internal/prefs"
	"github.com/potrolco/tarsdeck/internal/state"
	"github.com/potrolco/tarsdeck/internal/tars"
	"github.com/potrolco/tarsdeck/internal/ui"
	"pkt.systems/pslog"
)

// Deck is the assembled client: one REST client, one websocket, the stores
// they feed, and the bootstrap coordinator.
type Deck struct {
	Config    config.Config
	API       *tars.Client
	Live      *live.Client
	Workers   *state.WorkersStore
	Queue     *state.QueueStore
	History   *state.HistoryStore
	Messages  *state.MessagesStore
	Bootstrap *Bootstrap

	log pslog.Logger
}

// New wires a Deck from cfg. Nothing touches the network until
// Bootstrap.Init. The websocket disconnects when ctx is cancelled.
func New(ctx context.Context, cfg config.Config) (*Deck, error) {
	logger := pslog.Ctx(ctx)

	api, err := tars.NewClient(tars.Options{
		ServerURL: cfg.ServerURL,
		APIBase:   cfg.APIBase,
		Timeout:   cfg.RequestTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("init tars client: %w", err)
	}
	wsURL, err := live.WebSocketURL(cfg.ServerURL, cfg.WebSocketPath)
	if err != nil {
		return nil, fmt.Errorf("websocket url: %w", err)
	}
	ws := live.New(ctx, live.Options{
		URL:            wsURL,
		ReconnectDelay: cfg.ReconnectDelay(),
		Logger:         logger,
	})

	d := &Deck{
		Config:   cfg,
		API:      api,
		Live:     ws,
		Workers:  state.NewWorkersStore(api, ws, logger),
		Queue:    state.NewQueueStore(api, ws, logger),
		History:  state.NewHistoryStore(api, cfg.PageSize, logger),
		Messages: state.NewMessagesStore(ws, logger),
		log:      logger,
	}
	d.Bootstrap = NewBootstrap(ws, d.sources(), logger)
	return d, nil
}

func (d *Deck) sources() []Source {
	pageSize := d.Config.PageSize
	return []Source{
		{Name: "workers", Fetch: d.Workers.Fetch, SetupStream: d.Workers.SetupStream},
		{
			Name:        "queue",
			Fetch:       func(ctx context.Context) error { return d.Queue.Fetch(ctx, 0, pageSize) },
			SetupStream: d.Queue.SetupStream,
		},
		{Name: "history", Fetch: func(ctx context.Context) error { return d.History.Fetch(ctx, 0, pageSize) }},
		{Name: "messages", SetupStream: d.Messages.SetupStream},
	}
}

// RefreshHistory reloads the first page of history.
func (d *Deck) RefreshHistory(ctx context.Context) error {
	return d.History.Fetch(ctx, 0, d.Config.PageSize)
}

// Close drops push handlers and closes the websocket.
func (d *Deck) Close() {
	d.Workers.Close()
	d.Queue.Close()
	d.Messages.Close()
	d.Live.Disconnect()
}

// Run starts the dashboard and blocks until the user quits or ctx ends.
// Bootstrap runs inside the UI so its loading and error phases are visible.
func Run(ctx context.Context, d *Deck) error {
	defer d.Close()

	StartPoller(ctx, "history", d.RefreshHistory, d.Config.HistoryRefresh(), d.log)

	return ui.Run(ui.Options{
		Context:   ctx,
		Bootstrap: d.Bootstrap,
		Live:      d.Live,
		Workers:   d.Workers,
		Queue:     d.Queue,
		History:   d.History,
		Messages:  d.Messages,
		ServerURL: d.API.BaseURL(),
		PageSize:  d.Config.PageSize,
		LogPath:   d.Config.LogPath(),
		PrefsPath: prefs.Path(d.Config.StateDir),
	})
}

// Watch bootstraps and then logs every change pushed by the server until
// ctx ends.
func Watch(ctx context.Context, d *Deck) error {
	defer d.Close()

	if err := d.Bootstrap.Init(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	log := d.log.With("component", "watch")

	stopState := d.Live.OnStateChange(func(s live.State) {
		log.Info("connection changed", "state", s.String())
	})
	defer stopState()

	var offs []func()
	defer func() {
		for _, off := range offs {
			off()
		}
	}()

	// store handlers were registered by bootstrap and run first, so the
	// snapshots below already reflect the frame
	var lastWorkers, lastQueue string
	offs = append(offs, d.Live.On(live.TypeWorkersInfo, func(live.Message) {
		snap := d.Workers.Snapshot()
		summary := fmt.Sprintf("%d/%d/%d", len(snap.Active()), len(snap.Idle()), len(snap.Paused()))
		if summary == lastWorkers {
			return
		}
		lastWorkers = summary
		log.Info("workers", "active", len(snap.Active()), "idle", len(snap.Idle()), "paused", len(snap.Paused()))
		for _, w := range snap.Active() {
			log.Debug("worker busy", "worker", w.Name, "file", w.CurrentFile)
		}
	}))
	offs = append(offs, d.Live.On(live.TypePendingTasks, func(live.Message) {
		snap := d.Queue.Snapshot()
		summary := fmt.Sprintf("%d/%d", len(snap.Tasks), snap.Total)
		if summary == lastQueue {
			return
		}
		lastQueue = summary
		log.Info("pending tasks", "shown", len(snap.Tasks), "total", snap.Total)
	}))

	var seen []int64
	offs = append(offs, d.Live.On(live.TypeCompletedTasks, func(msg live.Message) {
		completed, ok := msg.Payload.(*live.CompletedTasks)
		if !ok {
			return
		}
		first := seen == nil
		for _, t := range completed.Tasks {
			if slices.Contains(seen, t.ID) {
				continue
			}
			seen = append(seen, t.ID)
			if !first {
				log.Info("task finished", "task", t.TaskLabel, "success", t.TaskSuccess, "worker", t.ProcessedByWorker, "duration", t.Duration().String())
			}
		}
		if seen == nil {
			seen = []int64{}
		}
	}))

	shown := map[string]bool{}
	offs = append(offs, d.Live.On(live.TypeFrontendMessage, func(live.Message) {
		for _, m := range d.Messages.Snapshot().Messages {
			if shown[m.ID] {
				continue
			}
			shown[m.ID] = true
			log.Info("server message", "id", m.ID, "type", m.Type, "message", m.Message)
		}
	}))
	if err := d.Live.StartStream(live.StreamCompletedTasks); err != nil {
		log.Debug("completed tasks stream deferred until connected", "err", err)
	}

	<-ctx.Done()
	return nil
}
