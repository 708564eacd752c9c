// Package state holds the dashboard's domain data: workers, the pending
// queue, task history and server notifications.
//
// # Overview
//
// Each store owns exactly one collection and is fed from up to two sources:
//
//	REST (tars client)            Push (live client)
//	┌──────────────────┐          ┌──────────────────────┐
//	│ Fetch(ctx, ...)  │          │ workers_info         │
//	│   page 0: replace│          │ pending_tasks        │
//	│   page n: append │          │ frontend_message     │
//	└────────┬─────────┘          └──────────┬───────────┘
//	         │        store.mu (write)       │
//	         └──────────────┬────────────────┘
//	                        v
//	                 store.Snapshot()  ──>  UI / CLI
//
// # Last writer wins
//
// Every push payload is a full snapshot, so a push replaces the collection
// outright. A REST response replaces it too when it is for the first page.
// Nothing is merged: whichever of the two takes the write lock last is what
// readers see. A push that lands while a fetch is in flight is visible
// immediately and is then overwritten when the fetch returns.
//
// # Errors and loading
//
// Stores never surface transport errors to readers. A failed REST call keeps
// the previous collection and sets Error to a fixed message such as
// FetchWorkersFailed. Loading is true while any fetch is in flight and is
// cleared in a deferred cleanup whatever the outcome.
//
// # Optimistic queue deletes
//
// QueueStore.DeleteTask removes the task and decrements Total before the
// server answers. On failure the task is reinserted at its old position,
// unless a fetch or push replaced the list in the meantime; that newer list
// is kept as is.
//
// # Snapshots
//
// Snapshot returns a copy; callers may modify it freely. Derived views
// (Active, Idle, Paused, Succeeded, Failed, Empty) are methods on the
// snapshot and are recomputed on every call.
package state
