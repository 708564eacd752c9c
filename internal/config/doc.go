// Package config loads tarsdeck's own configuration.
//
// # Resolution
//
//  1. The path passed with --config, if any
//  2. Otherwise ~/.config/tarsdeck/config.toml
//  3. A missing file is fine; built-in defaults apply
//  4. TARSDECK_<KEY> environment variables override the file
//  5. Blank strings and non-positive numbers fall back to defaults
//
// # Keys
//
//	server_url              = "http://127.0.0.1:8888"
//	api_base                = "/unmanic/api/v2/"
//	websocket_path          = "/unmanic/websocket"
//	reconnect_delay_seconds = 5
//	request_timeout_seconds = 5
//	history_refresh_seconds = 10
//	page_size               = 30
//	log_level               = "info"   # trace, debug, info, warn, error
//	state_dir               = "~/.local/state/tarsdeck"
//
// state_dir holds tarsdeck.log, which receives log output while the
// dashboard owns the terminal.
//
// `tarsdeck config init` writes this file with WriteDefault.
package config
