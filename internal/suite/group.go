package suite

import (
	"time"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/tap"
)

// ItOption configures a single it.
type ItOption func(*bus.RegisterIt)

// Timeout bounds the body of one it, overriding the suite timeout. The
// duration is rounded up to whole milliseconds.
func Timeout(d time.Duration) ItOption {
	return func(m *bus.RegisterIt) {
		ms := d.Milliseconds()
		if d > 0 && d%time.Millisecond != 0 {
			ms++
		}
		m.Interval = ms
	}
}

// Group is the registration scope handed to a describe callback. Everything
// declared through it is nested under the describe. A group is only usable
// while its callback runs.
type Group struct {
	suite   *Suite
	parents []bus.Ref
	batch   *[]bus.Message
	closed  bool
}

// Describe declares a nested describe group.
func (g *Group) Describe(text string, fn func(g *Group)) {
	g.describe("describe", text, fn, tap.DirectiveNone, false)
}

// DescribeSkip declares a nested describe group whose its are skipped.
func (g *Group) DescribeSkip(text string, fn func(g *Group)) {
	g.describe("describe.skip", text, fn, tap.DirectiveSkip, false)
}

// DescribeOnly declares a nested describe group that is exclusively run.
func (g *Group) DescribeOnly(text string, fn func(g *Group)) {
	g.describe("describe.only", text, fn, tap.DirectiveNone, true)
}

// DescribeTodo declares a nested describe group whose its are todo.
func (g *Group) DescribeTodo(text string, fn func(g *Group)) {
	g.describe("describe.todo", text, fn, tap.DirectiveTodo, false)
}

// It declares a test case.
func (g *Group) It(text string, fn TestFunc, opts ...ItOption) {
	g.it("it", text, fn, tap.DirectiveNone, false, opts)
}

// ItSkip declares a test case that is reported but never run.
func (g *Group) ItSkip(text string, fn TestFunc, opts ...ItOption) {
	g.it("it.skip", text, fn, tap.DirectiveSkip, false, opts)
}

// ItOnly declares a test case that is exclusively run.
func (g *Group) ItOnly(text string, fn TestFunc, opts ...ItOption) {
	g.it("it.only", text, fn, tap.DirectiveNone, true, opts)
}

// ItTodo declares a test case whose failure is tolerated.
func (g *Group) ItTodo(text string, fn TestFunc, opts ...ItOption) {
	g.it("it.todo", text, fn, tap.DirectiveTodo, false, opts)
}

// Test registers another page. Same as Suite.Test.
func (g *Group) Test(href string) {
	g.check("test")
	g.suite.Test(href)
}

// Coverage registers a coverage goal. Same as Suite.Coverage.
func (g *Group) Coverage(href string, goal float64) {
	g.check("coverage")
	g.suite.Coverage(href, goal)
}

func (g *Group) check(op string) {
	if g.closed {
		misuse(op, "describe group used after its callback returned")
	}
}

func (g *Group) describe(op, text string, fn func(g *Group), directive tap.Directive, only bool) {
	g.check(op)
	if fn == nil {
		misuse(op, "callback is required")
	}
	s := g.suite
	s.mu.Lock()
	if s.closedLocked(op) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	id := s.ids.Generate()
	batch := g.batch
	if batch == nil {
		batch = new([]bus.Message)
	}
	*batch = append(*batch, bus.RegisterDescribeStart{
		DescribeID: id,
		Parents:    append([]bus.Ref(nil), g.parents...),
		Text:       text,
		Directive:  directive,
		Only:       only,
	})

	child := &Group{
		suite:   s,
		parents: append(append([]bus.Ref(nil), g.parents...), bus.Ref{Kind: bus.RefDescribe, ID: id}),
		batch:   batch,
	}
	func() {
		defer func() { child.closed = true }()
		fn(child)
	}()
	*batch = append(*batch, bus.RegisterDescribeEnd{DescribeID: id})

	if g.batch != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedLocked(op) {
		return
	}
	s.publishLocked(*batch...)
}

func (g *Group) it(op, text string, fn TestFunc, directive tap.Directive, only bool, opts []ItOption) {
	g.check(op)
	if fn == nil {
		misuse(op, "test function is required")
	}
	s := g.suite
	msg := bus.RegisterIt{
		ItID:      s.ids.Generate(),
		Parents:   append([]bus.Ref(nil), g.parents...),
		Text:      text,
		Directive: directive,
		Only:      only,
	}
	for _, opt := range opts {
		opt(&msg)
	}
	if msg.Interval < 0 {
		misuse(op, "timeout must not be negative")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedLocked(op) {
		return
	}
	s.callbacks[msg.ItID] = fn
	if g.batch != nil {
		*g.batch = append(*g.batch, msg)
		return
	}
	s.publishLocked(msg)
}
