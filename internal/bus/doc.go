// Package bus carries every message exchanged between the root orchestrator,
// the suite runtimes and automation clients.
//
// The bus is broadcast: each subscriber receives every published message, in
// publication order, through its own unbounded FIFO mailbox, including the
// messages it published itself. Participants filter by type and id. There is
// no shared state beyond the bus itself.
//
// Messages form a closed set. Each kind is a concrete struct implementing
// Message; registrations additionally implement Registration. Messages are
// validated when published and when decoded from their JSON envelope
// ({"type": ..., "data": ...}); unknown types are rejected.
package bus
