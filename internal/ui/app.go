package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/potrolco/tarsdeck/internal/live"
	"github.com/potrolco/tarsdeck/internal/logtail"
	"github.com/potrolco/tarsdeck/internal/prefs"
	"github.com/potrolco/tarsdeck/internal/state"
)

// View is the active dashboard tab.
type View int

const (
	ViewWorkers View = iota
	ViewQueue
	ViewHistory
	ViewMessages
	ViewLogs
	viewCount
)

func (v View) String() string {
	switch v {
	case ViewQueue:
		return "Pending"
	case ViewHistory:
		return "Completed"
	case ViewMessages:
		return "Messages"
	case ViewLogs:
		return "Log"
	default:
		return "Workers"
	}
}

func parseView(name string) (View, bool) {
	for v := View(0); v < viewCount; v++ {
		if v.String() == name {
			return v, true
		}
	}
	return ViewWorkers, false
}

type bootState int

const (
	bootLoading bootState = iota
	bootReady
	bootFailed
)

const (
	defaultRefreshTick = time.Second
	logTailLines       = 500
	actionTimeout      = 15 * time.Second
)

// Bootstrapper runs the initial load. Reset makes a failed load retryable.
type Bootstrapper interface {
	Init(ctx context.Context) error
	Reset()
}

// ConnectionStater reports the websocket state for the header.
type ConnectionStater interface {
	State() live.State
}

// Options configures the UI.
type Options struct {
	Context     context.Context
	Bootstrap   Bootstrapper
	Live        ConnectionStater
	Workers     *state.WorkersStore
	Queue       *state.QueueStore
	History     *state.HistoryStore
	Messages    *state.MessagesStore
	ServerURL   string
	PageSize    int
	LogPath     string
	PrefsPath   string
	ThemeName   string
	RefreshTick time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx  context.Context
	opts Options

	theme       Theme
	keys        keyMap
	help        help.Model
	currentView View
	width       int
	height      int
	ready       bool

	boot    bootState
	bootErr error

	snapshot snapshotMsg
	flash    string
	flashErr bool

	workersTable  table.Model
	queueTable    table.Model
	historyTable  table.Model
	messagesTable table.Model

	logViewport viewport.Model
	logLines    []string
	follow      bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.RefreshTick <= 0 {
		opts.RefreshTick = defaultRefreshTick
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 30
	}

	// saved prefs only fill in what the caller left unset
	saved, _ := prefs.Load(opts.PrefsPath)
	if opts.ThemeName == "" {
		opts.ThemeName = saved.Theme
	}
	view, _ := parseView(saved.View)

	m := Model{
		ctx:         ctx,
		opts:        opts,
		theme:       GetTheme(opts.ThemeName),
		keys:        DefaultKeyMap(),
		help:        help.New(),
		currentView: view,
		follow:      true,
	}
	m.workersTable = newTable(workerColumns(80))
	m.queueTable = newTable(queueColumns(80))
	m.historyTable = newTable(historyColumns(80))
	m.messagesTable = newTable(messageColumns(80))
	m.applyTheme()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.bootstrapCmd(),
		fetchSnapshotCmd(m.opts),
		tickCmd(m.opts.RefreshTick),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()
		m.ready = true
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{fetchSnapshotCmd(m.opts), tickCmd(m.opts.RefreshTick)}
		if m.currentView == ViewLogs && m.follow {
			cmds = append(cmds, readLogCmd(m.opts.LogPath))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = msg
		m.updateTables()
		return m, nil

	case bootstrapDoneMsg:
		if msg.err != nil {
			m.boot = bootFailed
			m.bootErr = msg.err
		} else {
			m.boot = bootReady
			m.bootErr = nil
		}
		return m, fetchSnapshotCmd(m.opts)

	case actionDoneMsg:
		m.flashErr = msg.err != nil
		if msg.err != nil {
			m.flash = fmt.Sprintf("%s: %v", msg.label, msg.err)
		} else {
			m.flash = msg.label
		}
		return m, fetchSnapshotCmd(m.opts)

	case logLinesMsg:
		m.logLines = msg
		m.updateLogViewport()
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.applyTheme()
		return m, m.savePrefsCmd()
	case key.Matches(msg, m.keys.Retry):
		return m.retry()
	case key.Matches(msg, m.keys.Tab):
		return m.switchView((m.currentView + 1) % viewCount)
	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView((m.currentView + viewCount - 1) % viewCount)
	case key.Matches(msg, m.keys.ViewWorkers):
		return m.switchView(ViewWorkers)
	case key.Matches(msg, m.keys.ViewQueue):
		return m.switchView(ViewQueue)
	case key.Matches(msg, m.keys.ViewHistory):
		return m.switchView(ViewHistory)
	case key.Matches(msg, m.keys.ViewMessages):
		return m.switchView(ViewMessages)
	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)
	}

	if m.boot == bootFailed {
		return m, nil
	}

	switch m.currentView {
	case ViewWorkers:
		if key.Matches(msg, m.keys.TogglePause) {
			return m, m.togglePauseCmd()
		}
		var cmd tea.Cmd
		m.workersTable, cmd = m.workersTable.Update(msg)
		return m, cmd
	case ViewQueue:
		switch {
		case key.Matches(msg, m.keys.DeleteTask):
			return m, m.deleteTaskCmd()
		case key.Matches(msg, m.keys.NextPage):
			return m, m.nextQueuePageCmd()
		}
		var cmd tea.Cmd
		m.queueTable, cmd = m.queueTable.Update(msg)
		return m, cmd
	case ViewHistory:
		switch {
		case key.Matches(msg, m.keys.ClearHistory):
			return m, m.clearHistoryCmd()
		case key.Matches(msg, m.keys.NextPage):
			return m, m.nextHistoryPageCmd()
		}
		var cmd tea.Cmd
		m.historyTable, cmd = m.historyTable.Update(msg)
		return m, cmd
	case ViewMessages:
		if key.Matches(msg, m.keys.Dismiss) {
			return m, m.dismissCmd()
		}
		var cmd tea.Cmd
		m.messagesTable, cmd = m.messagesTable.Update(msg)
		return m, cmd
	case ViewLogs:
		if key.Matches(msg, m.keys.ToggleFollow) {
			m.follow = !m.follow
			if m.follow {
				return m, readLogCmd(m.opts.LogPath)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.logViewport, cmd = m.logViewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.currentView = v
	m.focusActiveTable()
	save := m.savePrefsCmd()
	if v == ViewLogs {
		return m, tea.Batch(readLogCmd(m.opts.LogPath), save)
	}
	return m, save
}

// retry restarts a failed bootstrap, otherwise reloads the active view.
func (m Model) retry() (tea.Model, tea.Cmd) {
	if m.boot == bootFailed {
		if m.opts.Bootstrap != nil {
			m.opts.Bootstrap.Reset()
		}
		m.boot = bootLoading
		m.bootErr = nil
		return m, m.bootstrapCmd()
	}
	return m, m.refreshCmd()
}

func (m *Model) focusActiveTable() {
	tables := []*table.Model{&m.workersTable, &m.queueTable, &m.historyTable, &m.messagesTable}
	for i, t := range tables {
		if View(i) == m.currentView {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg struct {
	workers  state.WorkersSnapshot
	queue    state.QueueSnapshot
	history  state.HistorySnapshot
	messages state.MessagesSnapshot
	conn     live.State
}

type bootstrapDoneMsg struct{ err error }

type actionDoneMsg struct {
	label string
	err   error
}

type logLinesMsg []string

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		var snap snapshotMsg
		if opts.Workers != nil {
			snap.workers = opts.Workers.Snapshot()
		}
		if opts.Queue != nil {
			snap.queue = opts.Queue.Snapshot()
		}
		if opts.History != nil {
			snap.history = opts.History.Snapshot()
		}
		if opts.Messages != nil {
			snap.messages = opts.Messages.Snapshot()
		}
		if opts.Live != nil {
			snap.conn = opts.Live.State()
		}
		return snap
	}
}

func (m Model) bootstrapCmd() tea.Cmd {
	b := m.opts.Bootstrap
	ctx := m.ctx
	if b == nil {
		return func() tea.Msg { return bootstrapDoneMsg{} }
	}
	return func() tea.Msg {
		return bootstrapDoneMsg{err: b.Init(ctx)}
	}
}

func readLogCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, logTailLines)
		if err != nil {
			return logLinesMsg{fmt.Sprintf("read %s: %v", path, err)}
		}
		return logLinesMsg(lines)
	}
}

func (m Model) savePrefsCmd() tea.Cmd {
	path := m.opts.PrefsPath
	if path == "" {
		return nil
	}
	p := prefs.Prefs{Theme: m.theme.Name, View: m.currentView.String()}
	return func() tea.Msg {
		if err := prefs.Save(path, p); err != nil {
			return actionDoneMsg{label: "Save preferences", err: err}
		}
		return nil
	}
}

// action runs fn off the UI goroutine with a bounded context.
func (m Model) action(label string, fn func(ctx context.Context) error) tea.Cmd {
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		return actionDoneMsg{label: label, err: fn(ctx)}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	page := m.opts.PageSize
	switch m.currentView {
	case ViewWorkers:
		if m.opts.Workers != nil {
			return m.action("Workers refreshed", m.opts.Workers.Fetch)
		}
	case ViewQueue:
		if m.opts.Queue != nil {
			return m.action("Pending tasks refreshed", func(ctx context.Context) error {
				return m.opts.Queue.Fetch(ctx, 0, page)
			})
		}
	case ViewHistory:
		if m.opts.History != nil {
			return m.action("History refreshed", func(ctx context.Context) error {
				return m.opts.History.Fetch(ctx, 0, page)
			})
		}
	case ViewLogs:
		return readLogCmd(m.opts.LogPath)
	}
	return nil
}

func (m Model) togglePauseCmd() tea.Cmd {
	workers := m.snapshot.workers.Workers
	idx := m.workersTable.Cursor()
	if m.opts.Workers == nil || idx < 0 || idx >= len(workers) {
		return nil
	}
	w := workers[idx]
	store := m.opts.Workers
	if w.Paused {
		return m.action("Resumed "+w.Name, func(ctx context.Context) error { return store.Resume(ctx, w.ID) })
	}
	return m.action("Paused "+w.Name, func(ctx context.Context) error { return store.Pause(ctx, w.ID) })
}

func (m Model) deleteTaskCmd() tea.Cmd {
	tasks := m.snapshot.queue.Tasks
	idx := m.queueTable.Cursor()
	if m.opts.Queue == nil || idx < 0 || idx >= len(tasks) {
		return nil
	}
	task := tasks[idx]
	store := m.opts.Queue
	// the store removes the row immediately; show that before the server answers
	return tea.Batch(
		m.action(fmt.Sprintf("Removed task %d", task.ID), func(ctx context.Context) error {
			return store.DeleteTask(ctx, task.ID)
		}),
		fetchSnapshotCmd(m.opts),
	)
}

func (m Model) nextQueuePageCmd() tea.Cmd {
	if m.opts.Queue == nil {
		return nil
	}
	start, page := len(m.snapshot.queue.Tasks), m.opts.PageSize
	store := m.opts.Queue
	return m.action("Loaded more pending tasks", func(ctx context.Context) error {
		return store.Fetch(ctx, start, page)
	})
}

func (m Model) nextHistoryPageCmd() tea.Cmd {
	if m.opts.History == nil {
		return nil
	}
	start, page := len(m.snapshot.history.Tasks), m.opts.PageSize
	store := m.opts.History
	return m.action("Loaded more history", func(ctx context.Context) error {
		return store.Fetch(ctx, start, page)
	})
}

func (m Model) clearHistoryCmd() tea.Cmd {
	if m.opts.History == nil {
		return nil
	}
	return m.action("Cleared successful tasks", m.opts.History.ClearCompleted)
}

func (m Model) dismissCmd() tea.Cmd {
	messages := m.snapshot.messages.Messages
	idx := m.messagesTable.Cursor()
	if m.opts.Messages == nil || idx < 0 || idx >= len(messages) {
		return nil
	}
	id := messages[idx].ID
	store := m.opts.Messages
	return m.action("Dismissed message", func(context.Context) error { return store.Dismiss(id) })
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil {
		return nil
	}
	return err
}
