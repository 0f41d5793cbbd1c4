// Package suite is the runtime that lives inside one isolated execution
// context.
//
// A context is opened by the Host for one test href. The page registered for
// that href receives a *Suite and declares describes, its, nested tests and
// coverage goals. Every declaration is published to the orchestrator as a
// registration message; the suite keeps only what it needs to execute its own
// test bodies later (the callbacks, keyed by it id).
//
// # Registration window
//
// Readiness is declared once the page setup has returned and every function
// passed to WaitFor has finished, and only by the most recent WaitFor call.
// After that the window is closed: further Describe, It and Test calls are
// ignored. A fatal failure (a panic escaping setup, a describe body or a wait
// function, or an explicit Fail) publishes a bail and closes the window too.
//
// # Parent chains
//
// Nesting is explicit. Describe callbacks receive a *Group carrying the
// parent chain of everything declared through it, so no call-stack state is
// consulted. A describe and all of its descendants are published as one
// contiguous batch, which keeps concurrent WaitFor functions from
// interleaving registrations inside an open group.
//
// # Execution
//
// The orchestrator dispatches one run command at a time. A body runs on its
// own goroutine raced against its timeout; on timeout the body is abandoned,
// not stopped. It keeps running in the background (its context is cancelled)
// and whatever it eventually returns is discarded.
package suite
