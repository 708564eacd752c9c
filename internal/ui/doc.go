// Package ui is the bubbletea dashboard.
//
// The model never talks to the network directly. It reads store snapshots
// on a one second tick and runs mutations (pause, delete, clear, dismiss)
// as commands that report back through actionDoneMsg. The initial load runs
// through a Bootstrapper; when it fails the content pane shows the error
// and r resets and retries it.
//
// Tabs: workers, pending, completed, messages and the tarsdeck log file.
package ui
