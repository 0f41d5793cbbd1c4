package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/tap"
)

// childOK reports whether a child passed. Tests and describes pass when all
// of their children pass. With todoOK, a failing it under a TODO directive
// counts as passing.
func (e *Engine) childOK(ref bus.Ref, todoOK bool) (bool, error) {
	st := e.st
	var children []bus.Ref
	switch ref.Kind {
	case bus.RefTest:
		t, ok := st.tests[ref.ID]
		if !ok {
			return false, unknownTest(ref.ID)
		}
		children = t.children
	case bus.RefDescribe:
		d, ok := st.describes[ref.ID]
		if !ok {
			return false, unknownEntity("describe", ref.ID)
		}
		children = d.children
	case bus.RefIt:
		it, ok := st.its[ref.ID]
		if !ok {
			return false, unknownEntity("it", ref.ID)
		}
		return it.ok || (todoOK && it.directive == tap.DirectiveTodo), nil
	case bus.RefCoverage:
		c, ok := st.coverages[ref.ID]
		if !ok {
			return false, unknownEntity("coverage", ref.ID)
		}
		return c.ok, nil
	default:
		return false, unknownEntity(string(ref.Kind), ref.ID)
	}

	for _, child := range children {
		ok, err := e.childOK(child, todoOK)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *Engine) ok(s *step) (bool, error) {
	switch s.kind {
	case StepTestEnd:
		return e.childOK(bus.Ref{Kind: bus.RefTest, ID: s.owner}, true)
	case StepDescribeEnd:
		return e.childOK(bus.Ref{Kind: bus.RefDescribe, ID: s.owner}, true)
	case StepIt:
		return e.childOK(bus.Ref{Kind: bus.RefIt, ID: s.owner}, false)
	case StepCoverage:
		return e.childOK(bus.Ref{Kind: bus.RefCoverage, ID: s.owner}, false)
	default:
		return false, unexpectedStep("ok", s)
	}
}

// number is the 1-based position of the step's entity among its siblings.
func (e *Engine) number(s *step) (int, error) {
	st := e.st
	switch s.kind {
	case StepIt:
		it, ok := st.its[s.owner]
		if !ok {
			return 0, unknownEntity("it", s.owner)
		}
		siblings, err := st.childrenOf(it.parents[len(it.parents)-1])
		if err != nil {
			return 0, err
		}
		return indexRef(*siblings, bus.Ref{Kind: bus.RefIt, ID: it.id}) + 1, nil
	case StepDescribeEnd:
		d, ok := st.describes[s.owner]
		if !ok {
			return 0, unknownEntity("describe", s.owner)
		}
		siblings, err := st.childrenOf(d.parents[len(d.parents)-1])
		if err != nil {
			return 0, err
		}
		return indexRef(*siblings, bus.Ref{Kind: bus.RefDescribe, ID: d.id}) + 1, nil
	case StepTestEnd:
		return indexRef(st.children, bus.Ref{Kind: bus.RefTest, ID: s.owner}) + 1, nil
	case StepCoverage:
		return indexRef(st.children, bus.Ref{Kind: bus.RefCoverage, ID: s.owner}) + 1, nil
	default:
		return 0, unexpectedStep("number", s)
	}
}

// text is the description of a step. "#" would start a TAP directive, so it
// is replaced in user supplied text.
func (e *Engine) text(s *step) (string, error) {
	st := e.st
	switch s.kind {
	case StepTestEnd:
		return e.href(s)
	case StepDescribeStart, StepDescribeEnd:
		d, ok := st.describes[s.owner]
		if !ok {
			return "", unknownEntity("describe", s.owner)
		}
		return sanitize(d.text), nil
	case StepIt:
		it, ok := st.its[s.owner]
		if !ok {
			return "", unknownEntity("it", s.owner)
		}
		return sanitize(it.text), nil
	case StepCoverage:
		c, ok := st.coverages[s.owner]
		if !ok {
			return "", unknownEntity("coverage", s.owner)
		}
		goal := strconv.FormatFloat(c.goal, 'f', -1, 64)
		return fmt.Sprintf("%s%% coverage goal for %s (got %.2f%%)", goal, c.href, c.percent), nil
	default:
		return "", unexpectedStep("text", s)
	}
}

func sanitize(text string) string {
	return strings.ReplaceAll(text, "#", "*")
}

func (e *Engine) href(s *step) (string, error) {
	switch s.kind {
	case StepTestStart, StepTestEnd:
		t, ok := e.st.tests[s.owner]
		if !ok {
			return "", unknownTest(s.owner)
		}
		return t.href, nil
	default:
		return "", unexpectedStep("href", s)
	}
}

func (e *Engine) directive(s *step) tap.Directive {
	switch s.kind {
	case StepIt:
		if it, ok := e.st.its[s.owner]; ok {
			return it.directive
		}
	case StepCoverage:
		if c, ok := e.st.coverages[s.owner]; ok {
			return c.directive
		}
	}
	return tap.DirectiveNone
}

// level is the indentation depth of a step's lines.
func (e *Engine) level(s *step) int {
	st := e.st
	switch s.kind {
	case StepTestPlan:
		return 1
	case StepDescribePlan:
		if d, ok := st.describes[s.owner]; ok {
			return len(d.parents) + 1
		}
	case StepDescribeStart, StepDescribeEnd:
		if d, ok := st.describes[s.owner]; ok {
			return len(d.parents)
		}
	case StepIt:
		if it, ok := st.its[s.owner]; ok {
			return len(it.parents)
		}
	}
	return 0
}

func (e *Engine) count(s *step) (int, error) {
	st := e.st
	switch s.kind {
	case StepTestPlan:
		t, ok := st.tests[s.owner]
		if !ok {
			return 0, unknownTest(s.owner)
		}
		return len(t.children), nil
	case StepDescribePlan:
		d, ok := st.describes[s.owner]
		if !ok {
			return 0, unknownEntity("describe", s.owner)
		}
		return len(d.children), nil
	case StepExit:
		return len(st.children), nil
	default:
		return 0, unexpectedStep("count", s)
	}
}

// testLine renders the "ok"/"not ok" line of a step.
func (e *Engine) testLine(s *step) (string, error) {
	ok, err := e.ok(s)
	if err != nil {
		return "", err
	}
	number, err := e.number(s)
	if err != nil {
		return "", err
	}
	text, err := e.text(s)
	if err != nil {
		return "", err
	}
	return tap.TestLine(ok, number, text, e.directive(s), e.level(s)), nil
}

type yamlBlock struct {
	message  string
	severity string
	data     tap.YAMLData
}

// yaml describes an it's outcome for the YAML block.
func (e *Engine) yaml(it *itNode) yamlBlock {
	y := yamlBlock{message: "ok", severity: "comment"}
	if it.ok {
		switch it.directive {
		case tap.DirectiveSkip:
			y.message = "skip"
		case tap.DirectiveTodo:
			y.message = "todo"
		}
		return y
	}

	y.message, y.severity = "fail", "fail"
	if it.directive == tap.DirectiveTodo {
		y.message, y.severity = "todo", "todo"
	}
	if it.err != nil {
		if it.err.Message != "" {
			y.message = it.err.Message
		}
		y.data.Stack = it.err.Stack
	}
	return y
}

func unexpectedStep(op string, s *step) error {
	return &RunError{Code: ErrCodeUnknownStep, Message: fmt.Sprintf("%s: unexpected step type %q", op, s.kind), StepID: s.id}
}
