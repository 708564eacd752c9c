package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/potrolco/tarsdeck/internal/live"
	"github.com/potrolco/tarsdeck/internal/prefs"
	"github.com/potrolco/tarsdeck/internal/state"
	"github.com/potrolco/tarsdeck/internal/tars"
)

type fakeBootstrap struct {
	inits  int
	resets int
	err    error
}

func (f *fakeBootstrap) Init(context.Context) error {
	f.inits++
	return f.err
}

func (f *fakeBootstrap) Reset() { f.resets++ }

type fakeConn struct{ state live.State }

func (f fakeConn) State() live.State { return f.state }

type fakeWorkersAPI struct {
	workers []tars.Worker
	paused  []string
	resumed []string
}

func (f *fakeWorkersAPI) FetchWorkers(context.Context) ([]tars.Worker, error) {
	return append([]tars.Worker(nil), f.workers...), nil
}

func (f *fakeWorkersAPI) PauseWorker(_ context.Context, id string) error {
	f.paused = append(f.paused, id)
	return nil
}

func (f *fakeWorkersAPI) ResumeWorker(_ context.Context, id string) error {
	f.resumed = append(f.resumed, id)
	return nil
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return updated.(Model)
}

func TestBootstrapFailureOffersRetry(t *testing.T) {
	boot := &fakeBootstrap{}
	m := sized(t, New(Options{Bootstrap: boot}))

	updated, _ := m.Update(bootstrapDoneMsg{err: errors.New("queue: Failed to fetch pending tasks")})
	m = updated.(Model)
	view := m.View()
	if !strings.Contains(view, "Press r to retry") || !strings.Contains(view, "Failed to fetch pending tasks") {
		t.Fatalf("error view missing retry prompt:\n%s", view)
	}

	updated, cmd := m.Update(keyRunes("r"))
	m = updated.(Model)
	if boot.resets != 1 {
		t.Fatalf("Reset calls = %d, want 1", boot.resets)
	}
	if m.boot != bootLoading {
		t.Fatalf("boot = %v, want loading", m.boot)
	}
	if cmd == nil {
		t.Fatalf("retry should return the bootstrap command")
	}

	msg := cmd()
	done, ok := msg.(bootstrapDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("retry message = %#v", msg)
	}
	if boot.inits != 1 {
		t.Fatalf("Init calls = %d, want 1", boot.inits)
	}
	updated, _ = m.Update(done)
	if updated.(Model).boot != bootReady {
		t.Fatalf("boot should be ready after a successful retry")
	}
}

func TestTabCyclesViews(t *testing.T) {
	m := sized(t, New(Options{}))

	want := []View{ViewQueue, ViewHistory, ViewMessages, ViewLogs, ViewWorkers}
	for _, v := range want {
		updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
		m = updated.(Model)
		if m.currentView != v {
			t.Fatalf("currentView = %v, want %v", m.currentView, v)
		}
	}

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if updated.(Model).currentView != ViewLogs {
		t.Fatalf("shift+tab from workers should wrap to the log view")
	}

	updated, _ = m.Update(keyRunes("3"))
	if updated.(Model).currentView != ViewHistory {
		t.Fatalf("3 should open history")
	}
}

func TestWorkersViewRendersAndTogglesPause(t *testing.T) {
	api := &fakeWorkersAPI{workers: []tars.Worker{
		{ID: "W0", Name: "Worker-0", CurrentFile: "/media/tv/show/episode.mkv"},
		{ID: "W1", Name: "Worker-1", Paused: true},
	}}
	workers := state.NewWorkersStore(api, nil, nil)
	if err := workers.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	opts := Options{Workers: workers, Live: fakeConn{state: live.StateConnected}, ServerURL: "http://tars:8888"}
	m := sized(t, New(opts))
	updated, _ := m.Update(bootstrapDoneMsg{})
	m = updated.(Model)
	updated, _ = m.Update(fetchSnapshotCmd(opts)())
	m = updated.(Model)

	view := m.View()
	for _, want := range []string{"TARSDECK", "connected", "Worker-0", "episode.mkv", "1 active"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	_, cmd := m.Update(keyRunes("p"))
	if cmd == nil {
		t.Fatalf("p on an active worker should pause it")
	}
	if done, ok := cmd().(actionDoneMsg); !ok || done.err != nil {
		t.Fatalf("pause result = %#v", done)
	}
	if len(api.paused) != 1 || api.paused[0] != "W0" {
		t.Fatalf("paused = %v, want [W0]", api.paused)
	}

	updated, _ = m.Update(keyRunes("j"))
	_, cmd = updated.(Model).Update(keyRunes("p"))
	if cmd == nil {
		t.Fatalf("p on a paused worker should resume it")
	}
	cmd()
	if len(api.resumed) != 1 || api.resumed[0] != "W1" {
		t.Fatalf("resumed = %v, want [W1]", api.resumed)
	}
}

func TestActionErrorShowsInFooter(t *testing.T) {
	m := sized(t, New(Options{}))
	updated, _ := m.Update(bootstrapDoneMsg{})
	updated, _ = updated.(Model).Update(actionDoneMsg{label: "Removed task 42", err: errors.New("boom")})
	view := updated.(Model).View()
	if !strings.Contains(view, "Removed task 42: boom") {
		t.Fatalf("footer missing action error:\n%s", view)
	}
}

func TestPrefsRestoreAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := prefs.Save(path, prefs.Prefs{Theme: "Slate", View: "Completed"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m := New(Options{PrefsPath: path})
	if m.theme.Name != "Slate" || m.currentView != ViewHistory {
		t.Fatalf("restored theme %q view %v", m.theme.Name, m.currentView)
	}

	_, cmd := m.Update(keyRunes("T"))
	if cmd == nil {
		t.Fatalf("theme change should save prefs")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("save returned %#v", msg)
	}
	got, err := prefs.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Theme != "Nightfox" || got.View != "Completed" {
		t.Fatalf("saved prefs = %+v", got)
	}
}

type fakeQueueAPI struct {
	tasks   []tars.QueueTask
	deleted []int64
}

func (f *fakeQueueAPI) FetchPendingTasks(context.Context, int, int) (tars.Page[tars.QueueTask], error) {
	return tars.Page[tars.QueueTask]{Data: append([]tars.QueueTask(nil), f.tasks...), RecordsTotal: len(f.tasks)}, nil
}

func (f *fakeQueueAPI) DeletePendingTask(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func runCmd(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	if batch, ok := cmd().(tea.BatchMsg); ok {
		for _, c := range batch {
			runCmd(c)
		}
	}
}

func TestRowsArrivingAfterResizeAreSelectable(t *testing.T) {
	api := &fakeQueueAPI{tasks: []tars.QueueTask{{ID: 42, AbsPath: "/media/a.mkv"}, {ID: 43}}}
	queue := state.NewQueueStore(api, nil, nil)
	if err := queue.Fetch(context.Background(), 0, 30); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	opts := Options{Queue: queue}
	m := sized(t, New(opts))
	updated, _ := m.Update(bootstrapDoneMsg{})
	updated, _ = updated.(Model).Update(fetchSnapshotCmd(opts)())
	updated, _ = updated.(Model).Update(keyRunes("2"))
	m = updated.(Model)

	if got := m.queueTable.Cursor(); got != 0 {
		t.Fatalf("queue cursor = %d, want 0", got)
	}
	_, cmd := m.Update(keyRunes("d"))
	if cmd == nil {
		t.Fatalf("d should delete the first pending task")
	}
	runCmd(cmd)
	if len(api.deleted) != 1 || api.deleted[0] != 42 {
		t.Fatalf("deleted = %v, want [42]", api.deleted)
	}
}
