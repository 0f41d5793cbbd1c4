// Package engine implements the root orchestrator of a test run.
//
// The orchestrator turns many asynchronously registering execution contexts
// into one strictly ordered TAP stream.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every bus message is processed on the goroutine that called Run. Suite
// runtimes never touch orchestrator state; they only publish messages. This
// gives:
// - One total order of registrations, results and bails
// - No locks around the step sequence
// - Simple reasoning about what has been emitted
//
// Step Sequence:
// Each unit of eventual output is a step. Steps live in one ordered sequence
// whose order is the final output order. Registrations insert steps at an
// anchor derived from nesting (the owning test's plan step for describes and
// its, sibling or initiator test ends for tests, the exit step for coverage
// goals), so arrival time never decides output position.
//
// Scheduling:
// After every message check runs. When no step is running it kicks off the
// first waiting one. Output-only steps complete immediately; a test-start
// step opens an execution context and runs until the suite is ready; an it
// step runs until its result arrives. At most one step is running.
//
// Output:
// A step's lines are buffered until every earlier step has produced its
// lines, then the largest complete prefix is flushed to the sinks. With a
// name filter active, groups the filter emptied are pruned before anything is
// written for them.
//
// Termination:
// The exit step writes the final plan and ends the run. A bail flushes
// pending filtered output, writes a diagnostic and a "Bail out!" line and
// ends the run. Once ended, every inbound message except a ping is ignored.
package engine
