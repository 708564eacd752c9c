// Package app is the composition root of tarsdeck.
//
// # Overview
//
// New wires one tars REST client, one live websocket client and the four
// state stores together, and hands them to a Bootstrap coordinator. Run puts
// the result in front of the bubbletea dashboard; Watch logs pushed changes
// instead.
//
// # Components
//
//   - app.go: Deck (the wired object graph), Run and Watch
//   - bootstrap.go: the initial-load state machine
//   - poller.go: periodic refresh for the REST-only history store
//
// # Bootstrap
//
//	PhaseIdle ──Init──> PhaseLoading ──all fetches ok──> PhaseReady
//	    ^                    │
//	    │                any fetch fails
//	  Reset                  v
//	    └──────────────  PhaseError ──Init (retry)──> PhaseLoading
//
// Init fetches every store's first page in parallel with an errgroup. Only
// when all succeed does it connect the websocket and register each store's
// push handler. A websocket that cannot connect is logged and left to the
// live client's reconnect timer; the dashboard still shows REST data.
//
// Init is a no-op while loading or ready, so two rapid calls result in one
// fetch per store.
//
// # Data Flow
//
//	┌──────────────┐
//	│   New()      │
//	└──────┬───────┘
//	       ├─────> tars.NewClient()        REST
//	       ├─────> live.New()              websocket, not yet dialled
//	       ├─────> state.New*Store()       workers, queue, history, messages
//	       └─────> NewBootstrap()
//
//	Run():  StartPoller(history) ──> ui.Run() (calls Bootstrap.Init)
//	Watch(): Bootstrap.Init ──> log every push until ctx ends
//
// # History Refresh
//
// History has no push path, so StartPoller reloads its first page every
// history_refresh_seconds. Consecutive failures double the delay up to 30s.
//
// # Error Handling
//
// Fatal (returned from New): an unusable server URL. Everything after that
// is recoverable: bootstrap failures put the app in PhaseError with a retry
// key, transport errors drive reconnects, and store errors become fixed
// messages in their snapshots.
package app
