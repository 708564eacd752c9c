package ui

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/potrolco/tarsdeck/internal/live"
	"github.com/potrolco/tarsdeck/internal/logtail"
	"github.com/potrolco/tarsdeck/internal/tars"
)

// header, tabs, status line, footer
const chromeLines = 5

func newTable(cols []table.Column) table.Model {
	return table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(10),
	)
}

func workerColumns(width int) []table.Column {
	fixed := 12 + 10 + 10 + 10
	return []table.Column{
		{Title: "Worker", Width: 12},
		{Title: "Status", Width: 10},
		{Title: "Progress", Width: 10},
		{Title: "Elapsed", Width: 10},
		{Title: "File", Width: flexWidth(width, fixed, 4)},
	}
}

func queueColumns(width int) []table.Column {
	fixed := 8 + 9 + 12
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Priority", Width: 9},
		{Title: "Queued", Width: 12},
		{Title: "File", Width: flexWidth(width, fixed, 3)},
	}
}

func historyColumns(width int) []table.Column {
	fixed := 8 + 9 + 12 + 10
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Result", Width: 9},
		{Title: "Finished", Width: 12},
		{Title: "Took", Width: 10},
		{Title: "Task", Width: flexWidth(width, fixed, 4)},
	}
}

func messageColumns(width int) []table.Column {
	fixed := 10 + 16
	return []table.Column{
		{Title: "Type", Width: 10},
		{Title: "Code", Width: 16},
		{Title: "Message", Width: flexWidth(width, fixed, 2)},
	}
}

// flexWidth gives the last column whatever the fixed ones leave, allowing
// for cell padding.
func flexWidth(total, fixed, columns int) int {
	w := total - fixed - columns*2 - 4
	if w < 20 {
		return 20
	}
	return w
}

func (m *Model) resize() {
	if m.width == 0 || m.height == 0 {
		return
	}
	footer := 1
	if m.help.ShowAll {
		footer = 4
	}
	bodyHeight := m.height - chromeLines - footer
	if bodyHeight < 3 {
		bodyHeight = 3
	}

	m.workersTable.SetColumns(workerColumns(m.width))
	m.queueTable.SetColumns(queueColumns(m.width))
	m.historyTable.SetColumns(historyColumns(m.width))
	m.messagesTable.SetColumns(messageColumns(m.width))
	for _, t := range []*table.Model{&m.workersTable, &m.queueTable, &m.historyTable, &m.messagesTable} {
		t.SetHeight(bodyHeight)
		t.SetWidth(m.width - 2)
	}

	if m.logViewport.Width == 0 {
		m.logViewport = viewport.New(m.width-2, bodyHeight)
	} else {
		m.logViewport.Width = m.width - 2
		m.logViewport.Height = bodyHeight
	}
	m.updateTables()
	m.updateLogViewport()
}

func (m *Model) applyTheme() {
	s := m.theme.Styles()
	ts := table.DefaultStyles()
	ts.Header = s.TableHeader
	ts.Selected = s.Selected
	for _, t := range []*table.Model{&m.workersTable, &m.queueTable, &m.historyTable, &m.messagesTable} {
		t.SetStyles(ts)
	}
	m.focusActiveTable()
}

func (m *Model) updateTables() {
	now := time.Now()

	workerRows := make([]table.Row, 0, len(m.snapshot.workers.Workers))
	for _, w := range m.snapshot.workers.Workers {
		workerRows = append(workerRows, workerRow(w, now))
	}
	setRows(&m.workersTable, workerRows)

	queueRows := make([]table.Row, 0, len(m.snapshot.queue.Tasks))
	for _, t := range m.snapshot.queue.Tasks {
		queueRows = append(queueRows, table.Row{
			strconv.FormatInt(t.ID, 10),
			strconv.FormatInt(t.Priority, 10),
			formatAge(t.CreatedAt.Time, now),
			displayPath(t.AbsPath),
		})
	}
	setRows(&m.queueTable, queueRows)

	historyRows := make([]table.Row, 0, len(m.snapshot.history.Tasks))
	for _, t := range m.snapshot.history.Tasks {
		historyRows = append(historyRows, historyRow(t, now))
	}
	setRows(&m.historyTable, historyRows)

	messageRows := make([]table.Row, 0, len(m.snapshot.messages.Messages))
	for _, msg := range m.snapshot.messages.Messages {
		messageRows = append(messageRows, table.Row{msg.Type, msg.Code, singleLine(msg.Message)})
	}
	setRows(&m.messagesTable, messageRows)
}

// setRows replaces the rows and puts the cursor on the first row when the
// table was empty before, so actions have a selection to work on.
func setRows(t *table.Model, rows []table.Row) {
	t.SetRows(rows)
	if t.Cursor() < 0 && len(rows) > 0 {
		t.SetCursor(0)
	}
}

func (m *Model) updateLogViewport() {
	if m.logViewport.Width == 0 {
		return
	}
	styles := m.theme.Styles()
	rendered := make([]string, 0, len(m.logLines))
	for _, line := range m.logLines {
		entry := logtail.Parse(line)
		if entry.Level == "" {
			rendered = append(rendered, line)
			continue
		}
		rendered = append(rendered, styles.LevelStyle(entry.Level).Render(entry.Format()))
	}
	m.logViewport.SetContent(strings.Join(rendered, "\n"))
	if m.follow {
		m.logViewport.GotoBottom()
	}
}

func workerRow(w tars.Worker, now time.Time) table.Row {
	progress, elapsed := "", ""
	if w.Status() == tars.WorkerActive {
		if w.Subprocess != nil && w.Subprocess.Percent != "" {
			progress = w.Subprocess.Percent + "%"
		}
		if !w.StartTime.IsZero() {
			elapsed = formatDuration(now.Sub(w.StartTime.Time))
		}
	}
	name := w.Name
	if name == "" {
		name = w.ID
	}
	return table.Row{name, string(w.Status()), progress, elapsed, displayPath(w.CurrentFile)}
}

func historyRow(t tars.HistoryTask, now time.Time) table.Row {
	result := "failed"
	if t.TaskSuccess {
		result = "success"
	}
	label := t.TaskLabel
	if label == "" {
		label = displayPath(t.AbsPath)
	}
	took := ""
	if d := t.Duration(); d > 0 {
		took = formatDuration(d)
	}
	return table.Row{strconv.FormatInt(t.ID, 10), result, formatAge(t.FinishTime.Time, now), took, label}
}

func (m Model) renderMain() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	s := m.theme.Styles()
	conn := m.snapshot.conn
	connStyle := s.StatusStyle(connStatusKey(conn))
	server := m.opts.ServerURL
	if server == "" {
		server = "tars"
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top,
		s.Logo.Render("TARSDECK"),
		"  ",
		s.MutedText.Render(server),
		"  ",
		connStyle.Render(conn.String()),
	)
	return s.Header.Width(m.width).Render(line)
}

func connStatusKey(state live.State) string {
	switch state {
	case live.StateConnected:
		return "success"
	case live.StateConnecting, live.StateReconnecting:
		return "paused"
	default:
		return "failed"
	}
}

func (m Model) renderTabs() string {
	s := m.theme.Styles()
	counts := map[View]string{
		ViewWorkers:  fmt.Sprintf(" %d", len(m.snapshot.workers.Workers)),
		ViewQueue:    fmt.Sprintf(" %d", m.snapshot.queue.Total),
		ViewHistory:  fmt.Sprintf(" %d", m.snapshot.history.Total),
		ViewMessages: fmt.Sprintf(" %d", len(m.snapshot.messages.Messages)),
	}
	tabs := make([]string, 0, viewCount)
	for v := View(0); v < viewCount; v++ {
		label := fmt.Sprintf("%d %s%s", v+1, v, counts[v])
		if v == m.currentView {
			tabs = append(tabs, s.ActiveTab.Render(label))
		} else {
			tabs = append(tabs, s.Tab.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// renderStatusLine shows the active store's loading and error state.
func (m Model) renderStatusLine() string {
	s := m.theme.Styles()
	var loading bool
	var errText, summary string
	switch m.currentView {
	case ViewWorkers:
		w := m.snapshot.workers
		loading, errText = w.Loading, w.Error
		summary = fmt.Sprintf("%d active · %d idle · %d paused", len(w.Active()), len(w.Idle()), len(w.Paused()))
	case ViewQueue:
		q := m.snapshot.queue
		loading, errText = q.Loading, q.Error
		summary = fmt.Sprintf("showing %d of %d", len(q.Tasks), q.Total)
	case ViewHistory:
		h := m.snapshot.history
		loading, errText = h.Loading, h.Error
		summary = fmt.Sprintf("%d succeeded · %d failed · %d total", len(h.Succeeded()), len(h.Failed()), h.Total)
	case ViewMessages:
		errText = m.snapshot.messages.Error
	case ViewLogs:
		mode := "paused"
		if m.follow {
			mode = "following"
		}
		summary = fmt.Sprintf("%s (%s)", m.opts.LogPath, mode)
	}

	parts := []string{s.MutedText.Render(summary)}
	if loading {
		parts = append(parts, s.InfoText.Render("loading…"))
	}
	if errText != "" {
		parts = append(parts, s.DangerText.Render(errText))
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) renderContent() string {
	s := m.theme.Styles()
	switch m.boot {
	case bootFailed:
		msg := "Could not load data from TARS."
		if m.bootErr != nil {
			msg += "\n\n" + m.bootErr.Error()
		}
		msg += "\n\nPress r to retry."
		return s.Panel.BorderForeground(lipgloss.Color(m.theme.Danger)).Render(s.DangerText.Render(msg))
	case bootLoading:
		if m.snapshot.workers.Empty() && m.snapshot.queue.Empty() {
			return s.MutedText.Render(" Connecting to TARS…")
		}
	}

	switch m.currentView {
	case ViewWorkers:
		if m.snapshot.workers.Empty() {
			return s.MutedText.Render(" No workers configured.")
		}
		return m.workersTable.View()
	case ViewQueue:
		if m.snapshot.queue.Empty() {
			return s.MutedText.Render(" Nothing pending.")
		}
		return m.queueTable.View()
	case ViewHistory:
		if m.snapshot.history.Empty() {
			return s.MutedText.Render(" No completed tasks.")
		}
		return m.historyTable.View()
	case ViewMessages:
		if m.snapshot.messages.Empty() {
			return s.MutedText.Render(" No server messages.")
		}
		return m.messagesTable.View()
	case ViewLogs:
		return m.logViewport.View()
	}
	return ""
}

func (m Model) renderFooter() string {
	s := m.theme.Styles()
	var b strings.Builder
	if m.flash != "" {
		style := s.SuccessText
		if m.flashErr {
			style = s.DangerText
		}
		b.WriteString(style.Render(m.flash))
		b.WriteString("  ")
	}
	b.WriteString(m.help.View(m.keys))
	return s.Footer.Render(b.String())
}

// displayPath shortens a library path to its file name.
func displayPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatDuration renders d as 1h02m, 4m05s or 12s.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	mins := int(d%time.Hour) / int(time.Minute)
	secs := int(d%time.Minute) / int(time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, mins)
	case mins > 0:
		return fmt.Sprintf("%dm%02ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}

// formatAge renders how long ago t was, or "" for an unknown time.
func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	}
}
