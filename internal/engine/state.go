package engine

import (
	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/tap"
)

// StepKind is the type of a step.
type StepKind string

const (
	StepVersion       StepKind = "version"
	StepTestStart     StepKind = "test-start"
	StepTestPlan      StepKind = "test-plan"
	StepTestEnd       StepKind = "test-end"
	StepDescribeStart StepKind = "describe-start"
	StepDescribePlan  StepKind = "describe-plan"
	StepDescribeEnd   StepKind = "describe-end"
	StepIt            StepKind = "it"
	StepCoverage      StepKind = "coverage"
	StepExit          StepKind = "exit"
)

// StepStatus is the lifecycle position of a step.
type StepStatus int

const (
	StatusWaiting StepStatus = iota
	StatusRunning
	StatusDone
)

func (s StepStatus) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// step is one unit of eventual output. owner is the id of the test,
// describe, it or coverage goal the step belongs to; empty for version and
// exit.
type step struct {
	id     string
	kind   StepKind
	owner  string
	status StepStatus

	// tap is set once the step's lines are computed. A computed step may
	// legitimately have no lines.
	tap      []string
	computed bool
}

type testNode struct {
	id        string
	href      string
	initiator string
	children  []bus.Ref
	err       *bus.Error
}

type describeNode struct {
	id        string
	text      string
	directive tap.Directive
	only      bool
	parents   []bus.Ref
	children  []bus.Ref
}

type itNode struct {
	id        string
	text      string
	directive tap.Directive
	only      bool
	interval  int64
	parents   []bus.Ref

	ok  bool
	err *bus.Error
}

type coverageNode struct {
	id   string
	href string
	goal float64

	ok        bool
	percent   float64
	output    string
	directive tap.Directive
}

// state is everything the orchestrator owns. It is only touched by the Run
// goroutine.
type state struct {
	stepIDs []string
	steps   map[string]*step

	tests     map[string]*testNode
	describes map[string]*describeNode
	its       map[string]*itNode
	coverages map[string]*coverageNode

	// children are the top-level children of the run: tests and coverage
	// goals.
	children []bus.Ref

	ended   bool
	waiting bool

	coverageValue   *bus.ClientCoverageResult
	coverageExpired bool

	queueing bool
	queue    []string
}

func newState() *state {
	return &state{
		steps:     make(map[string]*step),
		tests:     make(map[string]*testNode),
		describes: make(map[string]*describeNode),
		its:       make(map[string]*itNode),
		coverages: make(map[string]*coverageNode),
	}
}

// insert places steps at index in the sequence, in order.
func (s *state) insert(index int, steps ...*step) {
	ids := make([]string, len(steps))
	for i, st := range steps {
		ids[i] = st.id
		s.steps[st.id] = st
	}
	tail := append(ids, s.stepIDs[index:]...)
	s.stepIDs = append(s.stepIDs[:index], tail...)
}

// indexOf returns the index of the first step matching match, or -1.
func (s *state) indexOf(match func(*step) bool) int {
	for i, id := range s.stepIDs {
		if match(s.steps[id]) {
			return i
		}
	}
	return -1
}

// lastIndexOf returns the index of the last step matching match, or -1.
func (s *state) lastIndexOf(match func(*step) bool) int {
	for i := len(s.stepIDs) - 1; i >= 0; i-- {
		if match(s.steps[s.stepIDs[i]]) {
			return i
		}
	}
	return -1
}

// find returns the first step matching match, or nil.
func (s *state) find(match func(*step) bool) *step {
	if i := s.indexOf(match); i >= 0 {
		return s.steps[s.stepIDs[i]]
	}
	return nil
}

// pending returns the index of the first step without computed output, or -1.
func (s *state) pending() int {
	return s.indexOf(func(st *step) bool { return !st.computed })
}

// childrenOf returns the children list that holds entities whose last parent
// is ref.
func (s *state) childrenOf(ref bus.Ref) (*[]bus.Ref, error) {
	switch ref.Kind {
	case bus.RefDescribe:
		d, ok := s.describes[ref.ID]
		if !ok {
			return nil, unknownEntity("describe", ref.ID)
		}
		return &d.children, nil
	case bus.RefTest:
		t, ok := s.tests[ref.ID]
		if !ok {
			return nil, unknownTest(ref.ID)
		}
		return &t.children, nil
	default:
		return nil, unknownEntity(string(ref.Kind), ref.ID)
	}
}

// describeParents returns the describe ancestors of a chain, outermost first.
func (s *state) describeParents(parents []bus.Ref) ([]*describeNode, error) {
	var out []*describeNode
	for _, p := range parents {
		if p.Kind != bus.RefDescribe {
			continue
		}
		d, ok := s.describes[p.ID]
		if !ok {
			return nil, unknownEntity("describe", p.ID)
		}
		out = append(out, d)
	}
	return out, nil
}

func removeRef(children *[]bus.Ref, ref bus.Ref) {
	for i, c := range *children {
		if c == ref {
			*children = append((*children)[:i], (*children)[i+1:]...)
			return
		}
	}
}

func indexRef(children []bus.Ref, ref bus.Ref) int {
	for i, c := range children {
		if c == ref {
			return i
		}
	}
	return -1
}
