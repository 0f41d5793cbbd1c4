package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/coverage"
	"github.com/Netflix/x-test/internal/tap"
)

// onReady resolves the directives of the test's its and emits its subtest
// header. The test-start step must be running.
func (e *Engine) onReady(m bus.SuiteReady) error {
	st := e.st
	t, ok := st.tests[m.TestID]
	if !ok {
		return unknownTest(m.TestID)
	}
	if err := e.resolveDirectives(m.TestID); err != nil {
		return err
	}
	s := st.find(func(s *step) bool { return s.kind == StepTestStart && s.owner == m.TestID })
	if s == nil {
		return &RunError{Code: ErrCodeUnknownStep, Message: "test has no start step", TestID: m.TestID}
	}
	if s.status != StatusRunning {
		return &RunError{Code: ErrCodeNotRunning, Message: "test to ready is not running", StepID: s.id, TestID: m.TestID}
	}
	if err := e.output(s, tap.Subtest(t.href, 0)); err != nil {
		return err
	}
	e.finish(s)
	return nil
}

// resolveDirectives applies only and describe directives to the its of one
// test. With any only flag present, its that are not only and have no only
// describe ancestor are skipped. Every other it without a directive of its
// own takes the directive of its nearest describe ancestor that has one.
// Applying it twice changes nothing.
func (e *Engine) resolveDirectives(testID string) error {
	st := e.st
	only := false
	for _, it := range st.its {
		if it.only && it.parents[0].ID == testID {
			only = true
			break
		}
	}
	if !only {
		for _, d := range st.describes {
			if d.only && d.parents[0].ID == testID {
				only = true
				break
			}
		}
	}

	for _, it := range st.its {
		if it.parents[0].ID != testID {
			continue
		}
		if only && it.only {
			continue
		}
		describes, err := st.describeParents(it.parents)
		if err != nil {
			return err
		}
		if only && !anyOnly(describes) {
			it.directive = tap.DirectiveSkip
			continue
		}
		if it.directive == tap.DirectiveNone {
			it.directive = nearestDirective(describes)
		}
	}
	return nil
}

func anyOnly(describes []*describeNode) bool {
	for _, d := range describes {
		if d.only {
			return true
		}
	}
	return false
}

func nearestDirective(describes []*describeNode) tap.Directive {
	for i := len(describes) - 1; i >= 0; i-- {
		if describes[i].directive != tap.DirectiveNone {
			return describes[i].directive
		}
	}
	return tap.DirectiveNone
}

// onResult records an it's outcome and emits its test line, followed by a
// YAML block when the result carries an error.
func (e *Engine) onResult(m bus.SuiteResult) error {
	st := e.st
	it, ok := st.its[m.ItID]
	if !ok {
		return unknownEntity("it", m.ItID)
	}
	s := st.find(func(s *step) bool { return s.kind == StepIt && s.owner == m.ItID })
	if s == nil {
		return &RunError{Code: ErrCodeUnknownStep, Message: fmt.Sprintf("it %q has no step", m.ItID)}
	}
	if s.status != StatusRunning {
		return &RunError{Code: ErrCodeNotRunning, Message: "step to complete is not running", StepID: s.id}
	}
	it.ok = m.OK
	it.err = m.Error
	s.status = StatusDone

	line, err := e.testLine(s)
	if err != nil {
		return err
	}
	e.metrics.RecordItResult(it.ok, string(it.directive))
	e.metrics.RecordStep(string(s.kind))
	if m.Error == nil {
		return e.output(s, line)
	}
	y := e.yaml(it)
	return e.output(s, line, tap.YAML(y.message, y.severity, y.data, e.level(s)))
}

// check kicks off waiting steps in order until one is running, the
// coverage step has to wait for data, or the run ends.
func (e *Engine) check(ctx context.Context) error {
	st := e.st
	for !st.ended {
		if st.find(func(s *step) bool { return s.status == StatusRunning }) != nil {
			return nil
		}
		s := st.find(func(s *step) bool { return s.status == StatusWaiting })
		if s == nil {
			return nil
		}

		var err error
		switch s.kind {
		case StepVersion:
			err = e.kickoffVersion(s)
		case StepDescribeStart:
			err = e.kickoffDescribeStart(s)
		case StepDescribePlan, StepTestPlan:
			err = e.kickoffPlan(s)
		case StepDescribeEnd, StepTestEnd:
			err = e.kickoffEnd(s)
		case StepTestStart:
			err = e.kickoffTestStart(ctx, s)
		case StepIt:
			err = e.kickoffIt(s)
		case StepCoverage:
			if e.entry.Coverage && st.coverageValue == nil && !st.coverageExpired {
				if !st.waiting {
					return e.requestCoverage()
				}
				return nil
			}
			err = e.kickoffCoverage(s)
		case StepExit:
			return e.kickoffExit(s)
		default:
			err = &RunError{Code: ErrCodeUnknownStep, Message: fmt.Sprintf("unexpected step type %q", s.kind), StepID: s.id}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// finish marks a step done.
func (e *Engine) finish(s *step) {
	s.status = StatusDone
	e.metrics.RecordStep(string(s.kind))
}

func (e *Engine) kickoffVersion(s *step) error {
	if err := e.output(s, tap.Version()); err != nil {
		return err
	}
	e.finish(s)
	return nil
}

func (e *Engine) kickoffDescribeStart(s *step) error {
	text, err := e.text(s)
	if err != nil {
		return err
	}
	if err := e.output(s, tap.Subtest(text, e.level(s))); err != nil {
		return err
	}
	e.finish(s)
	return nil
}

func (e *Engine) kickoffPlan(s *step) error {
	count, err := e.count(s)
	if err != nil {
		return err
	}
	if err := e.output(s, tap.Plan(count, e.level(s))); err != nil {
		return err
	}
	e.finish(s)
	return nil
}

func (e *Engine) kickoffEnd(s *step) error {
	line, err := e.testLine(s)
	if err != nil {
		return err
	}
	if err := e.output(s, line); err != nil {
		return err
	}
	e.finish(s)
	return nil
}

// kickoffTestStart opens the test's execution context. The step stays
// running until the suite reports ready.
func (e *Engine) kickoffTestStart(ctx context.Context, s *step) error {
	t, ok := e.st.tests[s.owner]
	if !ok {
		return unknownTest(s.owner)
	}
	s.status = StatusRunning
	e.logger.Debug("opening test", "test_id", t.id, "href", t.href)
	if e.host == nil {
		e.bail(&bus.Error{Message: "Failed to load " + t.href}, "")
		return nil
	}
	if err := e.host.Open(ctx, t.id, t.href); err != nil {
		e.logger.Warn("test failed to load", "test_id", t.id, "href", t.href, "error", err)
		e.bail(&bus.Error{Message: "Failed to load " + t.href}, "")
	}
	return nil
}

// kickoffIt dispatches the run command. The step stays running until the
// result arrives.
func (e *Engine) kickoffIt(s *step) error {
	it, ok := e.st.its[s.owner]
	if !ok {
		return unknownEntity("it", s.owner)
	}
	s.status = StatusRunning
	return e.bus.Publish(bus.RootRun{ItID: it.id, Directive: it.directive, Interval: it.interval})
}

// requestCoverage asks automation for coverage data once and arms the bounded
// wait. The coverage step is not marked running.
func (e *Engine) requestCoverage() error {
	e.st.waiting = true
	e.coverageTimer = time.AfterFunc(e.coverageWait, func() {
		select {
		case e.coverageExpiry <- struct{}{}:
		default:
		}
	})
	e.logger.Debug("coverage requested", "wait", e.coverageWait)
	return e.bus.Publish(bus.RootCoverageRequest{})
}

// kickoffCoverage resolves one coverage goal. Without coverage data the goal
// is skipped. A goal whose file has no coverage entry fails with a
// diagnostic; malformed ranges bail.
func (e *Engine) kickoffCoverage(s *step) error {
	c, ok := e.st.coverages[s.owner]
	if !ok {
		return unknownEntity("coverage", s.owner)
	}

	if value := e.st.coverageValue; value != nil {
		analysis, err := coverage.Analyze(value.JS, c.href, c.goal)
		switch {
		case err == nil:
			c.ok, c.percent, c.output = analysis.OK, analysis.Percent, analysis.Output
		case errors.Is(err, coverage.ErrNoSource):
			c.ok, c.percent, c.output = false, 0, err.Error()
		default:
			c.ok, c.percent, c.output = false, 0, ""
			e.bail(&bus.Error{Message: err.Error()}, "")
			return nil
		}
	} else {
		c.ok, c.percent, c.output, c.directive = true, 0, "", tap.DirectiveSkip
	}
	e.metrics.RecordCoverage(c.ok, c.directive == tap.DirectiveSkip)

	line, err := e.testLine(s)
	if err != nil {
		return err
	}
	lines := []string{line}
	if !c.ok {
		lines = append(lines, tap.Diagnostic(c.output, e.level(s)))
	}
	if err := e.output(s, lines...); err != nil {
		return err
	}
	e.finish(s)
	return nil
}

func (e *Engine) kickoffExit(s *step) error {
	count, err := e.count(s)
	if err != nil {
		return err
	}
	if err := e.output(s, tap.Plan(count, 0)); err != nil {
		return err
	}
	e.finish(s)
	e.end()
	return nil
}
