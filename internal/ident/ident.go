// Package ident generates the opaque ids carried by steps, tests, describes,
// its, coverage goals and wait generations.
package ident

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator produces unique ids. Implementations must be safe for concurrent
// use: suite runtimes and the orchestrator draw ids from separate goroutines.
type Generator interface {
	Generate() string
}

// UUIDv7 generates time-sortable UUIDv7 ids.
//
// Time ordering makes ids from one run sort by creation when they show up in
// logs; nothing in the orchestrator relies on it.
type UUIDv7 struct{}

// Generate returns a hyphenated UUIDv7. Panics if the random source fails.
func (UUIDv7) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Sequence returns "<prefix>0", "<prefix>1", ... in call order.
// Used by tests that need to predict ids.
type Sequence struct {
	prefix string
	next   atomic.Int64
}

// NewSequence creates a sequence generator starting at zero.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

// Generate returns the next id.
func (s *Sequence) Generate() string {
	n := s.next.Add(1) - 1
	return s.prefix + strconv.FormatInt(n, 10)
}

// Count returns how many ids have been handed out.
func (s *Sequence) Count() int64 {
	return s.next.Load()
}
