package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the dashboard.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Retry      key.Binding

	// View switching
	ViewWorkers  key.Binding
	ViewQueue    key.Binding
	ViewHistory  key.Binding
	ViewMessages key.Binding
	ViewLogs     key.Binding

	// Actions
	TogglePause  key.Binding
	DeleteTask   key.Binding
	ClearHistory key.Binding
	Dismiss      key.Binding
	NextPage     key.Binding

	// Logs
	ToggleFollow key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "e"),
			key.WithHelp("e", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "Next view"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "Previous view"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Retry / refresh"),
		),

		ViewWorkers: key.NewBinding(
			key.WithKeys("1", "w"),
			key.WithHelp("1/w", "Workers"),
		),
		ViewQueue: key.NewBinding(
			key.WithKeys("2", "q"),
			key.WithHelp("2/q", "Pending queue"),
		),
		ViewHistory: key.NewBinding(
			key.WithKeys("3", "c"),
			key.WithHelp("3/c", "Completed tasks"),
		),
		ViewMessages: key.NewBinding(
			key.WithKeys("4", "m"),
			key.WithHelp("4/m", "Server messages"),
		),
		ViewLogs: key.NewBinding(
			key.WithKeys("5", "l"),
			key.WithHelp("5/l", "tarsdeck log"),
		),

		TogglePause: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "Pause/resume worker"),
		),
		DeleteTask: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "Remove pending task"),
		),
		ClearHistory: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "Clear successful tasks"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Dismiss message"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "Load next page"),
		),

		ToggleFollow: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "Toggle follow mode"),
		),
	}
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Retry, k.Help, k.Quit}
}

// FullHelp returns key bindings for the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.ViewWorkers, k.ViewQueue, k.ViewHistory, k.ViewMessages, k.ViewLogs},
		{k.TogglePause, k.DeleteTask, k.ClearHistory, k.Dismiss, k.NextPage},
		{k.ToggleFollow, k.Retry, k.CycleTheme, k.Help, k.Quit},
	}
}
