// Package logtail reads the end of tarsdeck's own log file for the
// dashboard's log view.
//
// While the dashboard owns the terminal, logs are written as JSON lines to
// <state_dir>/tarsdeck.log. Read returns the last N lines by reading the file
// backwards in 32 KiB chunks, so cost depends on N and not on file size.
// Parse and Entry.Format turn a JSON line back into something readable:
//
//	{"ts":"...","lvl":"warn","msg":"websocket closed","err":"EOF"}
//	→ ... WARN websocket closed err=EOF
package logtail
