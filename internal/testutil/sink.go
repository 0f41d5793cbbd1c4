// Package testutil holds helpers shared by package tests.
package testutil

import (
	"strings"
	"sync"
	"time"
)

// RecordingSink records every line appended to it.
//
// Thread-safety: all methods are safe for concurrent use. The orchestrator
// appends from its Run goroutine while tests read from theirs.
type RecordingSink struct {
	mu     sync.Mutex
	lines  []string
	notify chan struct{}
}

// NewRecordingSink creates an empty sink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{notify: make(chan struct{}, 1)}
}

// Append implements engine.Sink.
func (s *RecordingSink) Append(lines ...string) {
	s.mu.Lock()
	s.lines = append(s.lines, lines...)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Lines returns a copy of the appended lines. A line may contain newlines.
func (s *RecordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Text returns the stream as written to a terminal: every line followed by a
// newline.
func (s *RecordingSink) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return ""
	}
	return strings.Join(s.lines, "\n") + "\n"
}

// WaitFor blocks until some appended line satisfies match or timeout
// elapses. Returns whether a match was seen.
func (s *RecordingSink) WaitFor(match func(line string) bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		for _, line := range s.Lines() {
			if match(line) {
				return true
			}
		}
		select {
		case <-s.notify:
		case <-deadline.C:
			return false
		}
	}
}
