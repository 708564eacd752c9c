// Package live keeps the dashboard's websocket to the TARS server alive and
// turns it into named push streams.
//
// # Components
//
//   - client.go: the connection transport and command channel. One Client per
//     process owns one *websocket.Conn, its lifecycle state, and the single
//     reconnect timer.
//   - streams.go: the stream registry. It records which streams the
//     application wants and replays start_<name> after every (re)connect.
//   - router.go: the message router. Inbound frames are decoded once and
//     handed to every handler registered for their "type".
//   - messages.go: wire frames and the typed payload variants.
//
// # Lifecycle
//
//	Disconnected ──Connect──> Connecting ──dial ok──> Connected
//	     ^                        │                      │
//	     │                    dial error             socket closed
//	 Disconnect                   v                      v
//	     └──────────────────── Reconnecting <────────────┘
//	                              │ after ReconnectDelay (5s)
//	                              └──> Connecting
//
// Only one reconnect timer is ever armed. Disconnect stops every stream,
// disarms the timer, and bumps the connection generation so frames still in
// flight on the old socket are ignored.
//
// # Wire format
//
// Outbound frames are {"command": "...", "params": {...}}. Inbound frames are
// {"success": bool, "type": "...", ...}; frames without a type are dropped.
// Every pushed payload is a full snapshot, never a delta.
package live
