package engine

import (
	"strings"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/tap"
)

// output stores a step's lines and flushes the largest prefix of the step
// sequence whose lines are all computed.
func (e *Engine) output(s *step, lines ...string) error {
	st := e.st
	from := st.pending()
	s.tap = lines
	s.computed = true
	to := st.pending()
	if from == to {
		return nil
	}
	if to < 0 {
		to = len(st.stepIDs)
	}

	var flushed []string
	for _, id := range st.stepIDs[from:to] {
		flushed = append(flushed, st.steps[id].tap...)
	}
	if e.entry.Filtering() {
		return e.handleFilteredOutput(flushed, s)
	}
	e.log(flushed...)
	return nil
}

// handleFilteredOutput holds back subtest output until it is known to contain
// something. Empty groups are pruned from their parent and never written;
// coverage lines are suppressed entirely.
func (e *Engine) handleFilteredOutput(lines []string, s *step) error {
	st := e.st

	if s.kind == StepDescribeStart || s.kind == StepTestStart {
		st.queueing = true
	}

	if s.kind == StepDescribePlan || s.kind == StepTestPlan {
		count, err := e.count(s)
		if err != nil {
			return err
		}
		if count == 0 {
			subtest := -1
			for i := len(st.queue) - 1; i >= 0; i-- {
				if strings.HasPrefix(strings.TrimSpace(st.queue[i]), "# Subtest:") {
					subtest = i
					break
				}
			}
			if subtest < 0 {
				return &RunError{Code: ErrCodeEmptyQueue, Message: "expected a subtest in the queue for an empty plan", StepID: s.id}
			}
			st.queue = st.queue[:subtest]
			return nil
		}
	}

	switch s.kind {
	case StepDescribeEnd:
		d, ok := st.describes[s.owner]
		if !ok {
			return unknownEntity("describe", s.owner)
		}
		if len(d.children) == 0 {
			parent, err := st.childrenOf(d.parents[len(d.parents)-1])
			if err != nil {
				return err
			}
			removeRef(parent, bus.Ref{Kind: bus.RefDescribe, ID: d.id})
			return nil
		}
	case StepTestEnd:
		t, ok := st.tests[s.owner]
		if !ok {
			return unknownTest(s.owner)
		}
		if len(t.children) == 0 {
			removeRef(&st.children, bus.Ref{Kind: bus.RefTest, ID: t.id})
			return nil
		}
	case StepCoverage:
		removeRef(&st.children, bus.Ref{Kind: bus.RefCoverage, ID: s.owner})
		return nil
	case StepVersion, StepExit:
		if s.kind == StepExit {
			e.flushQueue()
		}
		e.log(lines...)
		return nil
	}

	if !st.queueing {
		e.log(lines...)
		return nil
	}
	st.queue = append(st.queue, lines...)
	if s.kind == StepIt || s.kind == StepDescribeEnd || s.kind == StepTestEnd {
		e.flushQueue()
	}
	return nil
}

func (e *Engine) flushQueue() {
	st := e.st
	if len(st.queue) > 0 {
		e.log(st.queue...)
	}
	st.queue = nil
	st.queueing = false
}

// log hands lines to every sink.
func (e *Engine) log(lines ...string) {
	if len(lines) == 0 {
		return
	}
	for _, sink := range e.sinks {
		sink.Append(lines...)
	}
}

// bail ends the run early. Pending filtered output is flushed first, then
// the failure is written as a diagnostic followed by "Bail out!", naming the
// failing test when known.
func (e *Engine) bail(err *bus.Error, testID string) {
	st := e.st
	if st.ended {
		return
	}
	if e.entry.Filtering() && len(st.queue) > 0 {
		e.flushQueue()
	}
	if err != nil {
		switch {
		case err.Stack != "":
			e.log(tap.Diagnostic(err.Stack, 0))
		case err.Message != "":
			e.log(tap.Diagnostic(err.Message, 0))
		}
	}

	line := tap.BailOut("")
	if t, ok := st.tests[testID]; ok && testID != "" {
		t.err = err
		line = tap.BailOut(t.href)
	}
	e.log(line)

	e.logger.Warn("run bailed", "test_id", testID, "error", err)
	e.metrics.RecordBail()
	e.mu.Lock()
	e.summary.Bailed = true
	e.mu.Unlock()
	e.end()
}
