package suite

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/ident"
	"github.com/Netflix/x-test/internal/tap"
)

// DefaultTimeout bounds a test body when neither the it nor the suite sets one.
const DefaultTimeout = 30 * time.Second

// TestFunc is a test body. A nil return passes; an error or panic fails.
type TestFunc func(ctx context.Context) error

// WaitFunc is asynchronous work that must finish before the suite is ready.
type WaitFunc func(ctx context.Context) error

// SetupFunc is the page: it declares everything the test contains.
type SetupFunc func(s *Suite)

// Option configures a Suite.
type Option func(*Suite)

// WithIDs sets the id generator for describes, its, tests, coverage goals and
// wait generations.
func WithIDs(ids ident.Generator) Option {
	return func(s *Suite) {
		s.ids = ids
	}
}

// WithTimeout overrides DefaultTimeout for every it of the suite.
func WithTimeout(d time.Duration) Option {
	return func(s *Suite) {
		s.timeout = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Suite) {
		s.logger = logger
	}
}

// Suite is the runtime of one execution context.
type Suite struct {
	bus     *bus.Bus
	ids     ident.Generator
	logger  *slog.Logger
	timeout time.Duration

	testID string
	href   string
	base   *url.URL

	mu        sync.Mutex
	callbacks map[string]TestFunc
	ready     bool
	bailed    bool
	waitForID string
	pending   []*promise

	ctx  context.Context
	sub  *bus.Subscription
	root *Group
}

// New creates the runtime for testID. href is the test's own location; nested
// test and coverage hrefs resolve against it.
func New(b *bus.Bus, testID, href string, opts ...Option) *Suite {
	s := &Suite{
		bus:       b,
		ids:       ident.UUIDv7{},
		logger:    slog.Default(),
		timeout:   DefaultTimeout,
		testID:    testID,
		href:      href,
		callbacks: make(map[string]TestFunc),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.base, _ = url.Parse(href)
	s.root = &Group{suite: s, parents: []bus.Ref{{Kind: bus.RefTest, ID: testID}}}
	return s
}

// Start subscribes to the bus and runs setup on its own goroutine. Readiness
// follows once setup has returned and all wait functions have finished.
// Cancelling ctx tears the suite down.
func (s *Suite) Start(ctx context.Context, setup SetupFunc) {
	s.ctx = ctx
	s.sub = s.bus.Subscribe()
	go s.listen(ctx)
	go func() {
		err := protect(func() error {
			setup(s)
			return nil
		})
		if err != nil {
			s.bail(err)
			return
		}
		s.WaitFor(nil)
	}()
}

// Fail reports a failure that escaped any test body. It bails the run.
func (s *Suite) Fail(err error) {
	s.bail(err)
}

// Describe declares a top-level describe group.
func (s *Suite) Describe(text string, fn func(g *Group)) { s.root.Describe(text, fn) }

// DescribeSkip declares a top-level describe group whose its are skipped.
func (s *Suite) DescribeSkip(text string, fn func(g *Group)) { s.root.DescribeSkip(text, fn) }

// DescribeOnly declares a top-level describe group that is exclusively run.
func (s *Suite) DescribeOnly(text string, fn func(g *Group)) { s.root.DescribeOnly(text, fn) }

// DescribeTodo declares a top-level describe group whose its are todo.
func (s *Suite) DescribeTodo(text string, fn func(g *Group)) { s.root.DescribeTodo(text, fn) }

// It declares a top-level test case.
func (s *Suite) It(text string, fn TestFunc, opts ...ItOption) { s.root.It(text, fn, opts...) }

// ItSkip declares a top-level test case that is reported but never run.
func (s *Suite) ItSkip(text string, fn TestFunc, opts ...ItOption) { s.root.ItSkip(text, fn, opts...) }

// ItOnly declares a top-level test case that is exclusively run.
func (s *Suite) ItOnly(text string, fn TestFunc, opts ...ItOption) { s.root.ItOnly(text, fn, opts...) }

// ItTodo declares a top-level test case whose failure is tolerated.
func (s *Suite) ItTodo(text string, fn TestFunc, opts ...ItOption) { s.root.ItTodo(text, fn, opts...) }

// Test registers another page to run in its own context after this one.
func (s *Suite) Test(href string) {
	const op = "test"
	target := s.resolve(op, href)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedLocked(op) {
		return
	}
	s.publishLocked(bus.RegisterTest{
		TestID:          s.ids.Generate(),
		Href:            target,
		InitiatorTestID: s.testID,
	})
}

// Coverage registers a coverage goal, a percentage in [0, 100], for href.
func (s *Suite) Coverage(href string, goal float64) {
	const op = "coverage"
	if goal < 0 || goal > 100 {
		misuse(op, "goal must be a percentage between 0 and 100, got %v", goal)
	}
	target := s.resolve(op, href)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closedLocked(op) {
		return
	}
	s.publishLocked(bus.RegisterCoverage{
		CoverageID: s.ids.Generate(),
		Href:       target,
		Goal:       goal,
	})
}

// WaitFor delays readiness until fn has finished. Only the most recent call
// may declare readiness, and only once every function passed so far has
// finished. A failing or panicking fn bails the suite. A nil fn just moves
// the readiness check behind everything already pending.
func (s *Suite) WaitFor(fn WaitFunc) {
	s.mu.Lock()
	if s.bailed {
		s.mu.Unlock()
		return
	}
	id := s.ids.Generate()
	s.waitForID = id
	p := newPromise()
	s.pending = append(s.pending, p)
	pending := append([]*promise(nil), s.pending...)
	ctx := s.ctx
	s.mu.Unlock()

	go func() {
		p.resolve(protect(func() error {
			if fn == nil {
				return nil
			}
			return fn(ctx)
		}))
	}()
	go s.awaitReady(ctx, id, pending)
}

func (s *Suite) awaitReady(ctx context.Context, id string, pending []*promise) {
	for _, p := range pending {
		select {
		case <-p.done:
			if p.err != nil {
				s.bail(p.err)
				return
			}
		case <-ctx.Done():
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waitForID != id || s.ready || s.bailed {
		return
	}
	s.ready = true
	s.publishLocked(bus.SuiteReady{TestID: s.testID})
}

func (s *Suite) listen(ctx context.Context) {
	defer s.sub.Close()
	for {
		msg, err := s.sub.Next(ctx)
		if err != nil {
			return
		}
		switch m := msg.(type) {
		case bus.RootRun:
			s.onRun(ctx, m)
		case bus.SuiteBail:
			s.mu.Lock()
			s.bailed = true
			s.mu.Unlock()
		}
	}
}

func (s *Suite) onRun(ctx context.Context, m bus.RootRun) {
	s.mu.Lock()
	fn, ok := s.callbacks[m.ItID]
	bailed := s.bailed
	s.mu.Unlock()
	if !ok || bailed {
		return
	}
	go s.run(ctx, m, fn)
}

func (s *Suite) run(ctx context.Context, m bus.RootRun, fn TestFunc) {
	result := bus.SuiteResult{ItID: m.ItID, OK: true}
	if m.Directive != tap.DirectiveSkip {
		timeout := s.timeout
		if m.Interval > 0 {
			timeout = time.Duration(m.Interval) * time.Millisecond
		}
		if err := race(ctx, fn, timeout); err != nil {
			if ctx.Err() != nil {
				return
			}
			result.OK = false
			result.Error = NormalizeError(err)
		}
	}
	if err := s.bus.Publish(result); err != nil {
		s.logger.Debug("result not delivered", "it_id", m.ItID, "error", err)
	}
}

// race runs fn against timeout. The body is abandoned on timeout.
func race(ctx context.Context, fn TestFunc, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- protect(func() error { return fn(runCtx) })
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return &TimeoutError{Interval: timeout}
		}
		return err
	case <-timer.C:
		return &TimeoutError{Interval: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Suite) bail(err any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bailed {
		return
	}
	s.bailed = true
	s.logger.Debug("suite bail", "test_id", s.testID, "error", err)
	s.publishLocked(bus.SuiteBail{TestID: s.testID, Error: NormalizeError(err)})
}

// closedLocked reports whether the registration window is closed.
func (s *Suite) closedLocked(op string) bool {
	if s.ready || s.bailed {
		s.logger.Debug("registration ignored", "op", op, "test_id", s.testID, "ready", s.ready, "bailed", s.bailed)
		return true
	}
	return false
}

func (s *Suite) publishLocked(msgs ...bus.Message) {
	for _, msg := range msgs {
		if err := s.bus.Publish(msg); err != nil {
			s.logger.Debug("publish failed", "type", msg.Type(), "error", err)
			return
		}
	}
}

func (s *Suite) resolve(op, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		misuse(op, "invalid href %q: %v", href, err)
	}
	if s.base == nil {
		return ref.String()
	}
	return s.base.ResolveReference(ref).String()
}

type promise struct {
	done chan struct{}
	err  error
}

func newPromise() *promise {
	return &promise{done: make(chan struct{})}
}

func (p *promise) resolve(err error) {
	p.err = err
	close(p.done)
}
