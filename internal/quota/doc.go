// Package quota enforces the daily send cap.
//
// The ledger tracks how many non-dry-run sends succeeded on the current
// calendar date. The count rolls over lazily: the first TryReserve on a new
// date resets it (and persists the reset immediately, so a crash mid-run
// cannot double-reset). Status reads use Projection, which reports the
// rolled-over view without mutating the persisted state.
package quota
