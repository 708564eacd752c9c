// Command tarsdeck is a terminal dashboard and CLI for a TARS transcoding
// server.
//
// Without a subcommand it opens the dashboard. Logs go to stderr for the
// one-shot commands and to <state_dir>/tarsdeck.log while the dashboard owns
// the terminal.
//
//	tarsdeck [dash]                 interactive dashboard
//	tarsdeck watch                  log live updates
//	tarsdeck status                 workers, pending and completed tables
//	tarsdeck gpu                    GPU devices and allocations
//	tarsdeck settings               server settings as TOML
//	tarsdeck workers pause|resume <id>
//	tarsdeck queue rm <id>
//	tarsdeck history clear
//	tarsdeck config init|show
package main
