// Package dispatch runs campaigns: it turns a recipient list plus a send
// policy into a supervised, cancellable, strictly sequential run.
//
// Lifecycle
//
// There is exactly one mutable run record per process. Start claims it
// atomically (a second Start while one is running is rejected with no side
// effects), reserves quota headroom, truncates the recipient list to fit,
// and hands off to a single background worker. The worker sends one message
// at a time: the device automation is stateful and cannot tolerate
// concurrent interactions, so result order always matches input order.
//
// Cancellation
//
// Stop sets a flag that the worker observes at loop-iteration boundaries.
// An in-flight send is never abandoned; stop takes effect within one send
// plus one pacing delay.
//
// Durability
//
// When the loop ends, the quota commit and the run archive write happen
// before the record becomes observable in a terminal state, so a run is
// never reported Completed without its effects being durable.
package dispatch
