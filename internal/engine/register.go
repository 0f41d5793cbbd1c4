package engine

import (
	"fmt"
	"strings"

	"github.com/Netflix/x-test/internal/bus"
)

func (e *Engine) onRegister(m bus.Registration) error {
	switch r := m.(type) {
	case bus.RegisterTest:
		return e.registerTest(r)
	case bus.RegisterDescribeStart:
		return e.registerDescribeStart(r)
	case bus.RegisterDescribeEnd:
		return e.registerDescribeEnd(r)
	case bus.RegisterIt:
		return e.registerIt(r)
	case bus.RegisterCoverage:
		return e.registerCoverage(r)
	default:
		return fmt.Errorf("unexpected registration kind %q", m.Kind())
	}
}

// registerTest queues a test's start, plan and end steps after the last test
// with the same initiator, else after the initiator itself, else before the
// first coverage goal, else before exit. Top-level children mirror that
// position.
func (e *Engine) registerTest(m bus.RegisterTest) error {
	st := e.st
	if _, exists := st.tests[m.TestID]; exists {
		return duplicateID("test", m.TestID)
	}

	sameInitiator := func(testID string) bool {
		t, ok := st.tests[testID]
		return ok && t.initiator == m.InitiatorTestID
	}

	index := st.lastIndexOf(func(s *step) bool {
		return s.kind == StepTestEnd && sameInitiator(s.owner)
	})
	if index >= 0 {
		index++
	} else if index = st.lastIndexOf(func(s *step) bool {
		return s.kind == StepTestEnd && s.owner == m.InitiatorTestID
	}); index >= 0 {
		index++
	} else if index = st.indexOf(func(s *step) bool { return s.kind == StepCoverage }); index < 0 {
		index = st.lastIndexOf(func(s *step) bool { return s.kind == StepExit })
	}

	childIndex := -1
	for i := len(st.children) - 1; i >= 0; i-- {
		if c := st.children[i]; c.Kind == bus.RefTest && sameInitiator(c.ID) {
			childIndex = i + 1
			break
		}
	}
	if childIndex < 0 {
		for i := len(st.children) - 1; i >= 0; i-- {
			if c := st.children[i]; c.Kind == bus.RefTest && c.ID == m.InitiatorTestID {
				childIndex = i + 1
				break
			}
		}
	}
	if childIndex < 0 {
		childIndex = len(st.children)
		for i, c := range st.children {
			if c.Kind == bus.RefCoverage {
				childIndex = i
				break
			}
		}
	}

	st.insert(index,
		&step{id: e.ids.Generate(), kind: StepTestStart, owner: m.TestID},
		&step{id: e.ids.Generate(), kind: StepTestPlan, owner: m.TestID},
		&step{id: e.ids.Generate(), kind: StepTestEnd, owner: m.TestID},
	)
	st.tests[m.TestID] = &testNode{id: m.TestID, href: m.Href, initiator: m.InitiatorTestID}
	st.children = append(st.children[:childIndex], append([]bus.Ref{{Kind: bus.RefTest, ID: m.TestID}}, st.children[childIndex:]...)...)

	e.metrics.RecordTestRegistered()
	e.logger.Debug("test registered", "test_id", m.TestID, "href", m.Href, "initiator_test_id", m.InitiatorTestID, "index", index)
	return nil
}

// bodyIndex is the insertion point for a test's describes and its: right
// before the test's plan step, so bodies keep declaration order and the plan
// trails them.
func (e *Engine) bodyIndex(testID string) (int, error) {
	index := e.st.lastIndexOf(func(s *step) bool {
		return s.kind == StepTestPlan && s.owner == testID
	})
	if index < 0 {
		return 0, unknownTest(testID)
	}
	return index, nil
}

func (e *Engine) registerDescribeStart(m bus.RegisterDescribeStart) error {
	st := e.st
	if _, exists := st.describes[m.DescribeID]; exists {
		return duplicateID("describe", m.DescribeID)
	}
	index, err := e.bodyIndex(m.Parents[0].ID)
	if err != nil {
		return err
	}
	parent, err := st.childrenOf(m.Parents[len(m.Parents)-1])
	if err != nil {
		return err
	}

	st.insert(index, &step{id: e.ids.Generate(), kind: StepDescribeStart, owner: m.DescribeID})
	st.describes[m.DescribeID] = &describeNode{
		id:        m.DescribeID,
		text:      m.Text,
		directive: m.Directive,
		only:      m.Only,
		parents:   m.Parents,
	}
	*parent = append(*parent, bus.Ref{Kind: bus.RefDescribe, ID: m.DescribeID})
	return nil
}

func (e *Engine) registerDescribeEnd(m bus.RegisterDescribeEnd) error {
	st := e.st
	d, ok := st.describes[m.DescribeID]
	if !ok {
		return unknownEntity("describe", m.DescribeID)
	}
	index, err := e.bodyIndex(d.parents[0].ID)
	if err != nil {
		return err
	}
	st.insert(index,
		&step{id: e.ids.Generate(), kind: StepDescribePlan, owner: m.DescribeID},
		&step{id: e.ids.Generate(), kind: StepDescribeEnd, owner: m.DescribeID},
	)
	return nil
}

// registerIt queues an it unless the name filter rejects it. A rejected it
// leaves no trace.
func (e *Engine) registerIt(m bus.RegisterIt) error {
	st := e.st
	if _, exists := st.its[m.ItID]; exists {
		return duplicateID("it", m.ItID)
	}
	if e.entry.Name != nil {
		name, err := e.fullName(m)
		if err != nil {
			return err
		}
		if !e.entry.Name.MatchString(name) {
			e.logger.Debug("it filtered out", "it_id", m.ItID, "name", name)
			return nil
		}
	}
	index, err := e.bodyIndex(m.Parents[0].ID)
	if err != nil {
		return err
	}
	parent, err := st.childrenOf(m.Parents[len(m.Parents)-1])
	if err != nil {
		return err
	}

	st.insert(index, &step{id: e.ids.Generate(), kind: StepIt, owner: m.ItID})
	st.its[m.ItID] = &itNode{
		id:        m.ItID,
		text:      m.Text,
		directive: m.Directive,
		only:      m.Only,
		interval:  m.Interval,
		parents:   m.Parents,
	}
	*parent = append(*parent, bus.Ref{Kind: bus.RefIt, ID: m.ItID})
	return nil
}

// fullName joins the ancestor describe texts and the it text with spaces.
func (e *Engine) fullName(m bus.RegisterIt) (string, error) {
	describes, err := e.st.describeParents(m.Parents)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(describes)+1)
	for _, d := range describes {
		parts = append(parts, d.text)
	}
	parts = append(parts, m.Text)
	return strings.Join(parts, " "), nil
}

// registerCoverage queues a coverage goal right before exit.
func (e *Engine) registerCoverage(m bus.RegisterCoverage) error {
	st := e.st
	if _, exists := st.coverages[m.CoverageID]; exists {
		return duplicateID("coverage", m.CoverageID)
	}
	index := st.lastIndexOf(func(s *step) bool { return s.kind == StepExit })
	st.insert(index, &step{id: e.ids.Generate(), kind: StepCoverage, owner: m.CoverageID})
	st.coverages[m.CoverageID] = &coverageNode{id: m.CoverageID, href: m.Href, goal: m.Goal}
	st.children = append(st.children, bus.Ref{Kind: bus.RefCoverage, ID: m.CoverageID})
	return nil
}
