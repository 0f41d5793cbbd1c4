package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/ident"
	"github.com/Netflix/x-test/internal/metrics"
)

// DefaultCoverageWait bounds how long a coverage step waits for data.
const DefaultCoverageWait = 5 * time.Second

// Host opens execution contexts. Opening a context tears down the previous
// one; the last one stays alive until Close.
type Host interface {
	Open(ctx context.Context, testID, href string) error
	Close()
}

// Sink consumes output lines in order. A line may span several physical
// lines (YAML blocks, multi-line diagnostics).
type Sink interface {
	Append(lines ...string)
}

// WriterSink writes each line followed by a newline.
type WriterSink struct {
	W io.Writer
}

// Append implements Sink.
func (s WriterSink) Append(lines ...string) {
	for _, line := range lines {
		fmt.Fprintln(s.W, line)
	}
}

// Summary describes a finished run.
type Summary struct {
	// OK is true when every top-level child is ok and the run did not bail.
	OK bool

	// Bailed is true when the run ended through a bail.
	Bailed bool

	// Count is the number of top-level children at exit.
	Count int
}

// Engine is the single-writer root orchestrator.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine
//   - Done(), Summary(): safe from any goroutine
//
// Everything else happens inside Run.
type Engine struct {
	bus          *bus.Bus
	sub          *bus.Subscription
	host         Host
	entry        Entry
	sinks        []Sink
	ids          ident.Generator
	logger       *slog.Logger
	metrics      *metrics.Metrics
	coverageWait time.Duration

	st             *state
	coverageExpiry chan struct{}
	coverageTimer  *time.Timer
	started        time.Time

	done    chan struct{}
	mu      sync.Mutex
	summary Summary
}

// Option configures an Engine.
type Option func(*Engine)

// WithSink adds an output sink. Sinks receive lines in registration order.
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sink)
	}
}

// WithIDs sets the generator for step and root test ids.
func WithIDs(ids ident.Generator) Option {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithCoverageWait sets how long a coverage step waits for data before it is
// skipped.
func WithCoverageWait(d time.Duration) Option {
	return func(e *Engine) {
		e.coverageWait = d
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an orchestrator for entry. It subscribes to b immediately, so
// nothing published after New returns is missed.
func New(b *bus.Bus, host Host, entry Entry, opts ...Option) *Engine {
	e := &Engine{
		bus:            b,
		host:           host,
		entry:          entry,
		ids:            ident.UUIDv7{},
		logger:         slog.Default(),
		coverageWait:   DefaultCoverageWait,
		st:             newState(),
		coverageExpiry: make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.sub = b.Subscribe()

	version := &step{id: e.ids.Generate(), kind: StepVersion}
	exit := &step{id: e.ids.Generate(), kind: StepExit}
	e.st.insert(0, version, exit)
	return e
}

// Done is closed when the run ends, normally or by bail.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Summary returns the outcome. Only meaningful once Done is closed.
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary
}

// Run registers the entry page as the first test and processes bus messages
// until ctx is cancelled or the bus is closed. The loop keeps answering pings
// after the run ended.
//
// ERROR HANDLING: a message that cannot be applied is logged with its
// context and skipped; the loop continues.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "href", e.entry.Href, "filtering", e.entry.Filtering(), "coverage", e.entry.Coverage)
	e.started = time.Now()
	defer func() {
		if e.coverageTimer != nil {
			e.coverageTimer.Stop()
		}
		if e.host != nil {
			e.host.Close()
		}
		e.sub.Close()
	}()

	root := bus.RegisterTest{TestID: e.ids.Generate(), Href: e.entry.Href}
	if err := e.bus.Publish(root); err != nil {
		return fmt.Errorf("register entry test: %w", err)
	}

	for {
		msg, ok := e.sub.TryNext()
		if ok {
			if err := e.process(ctx, msg); err != nil {
				logMessageError(e.logger, msg, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-e.coverageExpiry:
			if err := e.onCoverageExpired(ctx); err != nil {
				e.logger.Error("coverage expiry failed", "error", err)
			}

		case <-e.sub.Wait():
			if e.sub.Closed() && e.sub.Len() == 0 {
				e.logger.Info("engine stopping: bus closed")
				return nil
			}
		}
	}
}

// process routes one message to its handler, then drives the scheduler.
func (e *Engine) process(ctx context.Context, msg bus.Message) error {
	if ping, ok := msg.(bus.ClientPing); ok {
		return e.onPing(ping)
	}
	if e.st.ended {
		return nil
	}

	var err error
	switch m := msg.(type) {
	case bus.Registration:
		err = e.onRegister(m)
	case bus.SuiteReady:
		err = e.onReady(m)
	case bus.SuiteResult:
		err = e.onResult(m)
	case bus.SuiteBail:
		err = e.onBail(m)
	case bus.ClientCoverageResult:
		err = e.onCoverageResult(m)
	default:
		// Our own publications (run, pong, end, coverage request) come back
		// through the broadcast.
		return nil
	}
	if err != nil {
		return err
	}
	return e.check(ctx)
}

func (e *Engine) onPing(bus.ClientPing) error {
	return e.bus.Publish(bus.RootPong{Ended: e.st.ended, Waiting: e.st.waiting})
}

func (e *Engine) onBail(m bus.SuiteBail) error {
	e.bail(m.Error, m.TestID)
	return nil
}

func (e *Engine) onCoverageResult(m bus.ClientCoverageResult) error {
	if e.st.coverageValue != nil {
		e.logger.Debug("duplicate coverage result ignored")
		return nil
	}
	value := m
	e.st.coverageValue = &value
	if e.coverageTimer != nil {
		e.coverageTimer.Stop()
	}
	return nil
}

func (e *Engine) onCoverageExpired(ctx context.Context) error {
	if e.st.ended || e.st.coverageValue != nil {
		return nil
	}
	e.logger.Warn("coverage data did not arrive, skipping coverage goals", "wait", e.coverageWait)
	e.st.coverageExpired = true
	return e.check(ctx)
}

// end marks the run over and announces it. Called exactly once.
func (e *Engine) end() {
	e.st.ended = true
	e.st.waiting = false

	summary := Summary{Bailed: e.summaryBailed(), Count: len(e.st.children)}
	summary.OK = !summary.Bailed && e.allOK()
	e.mu.Lock()
	e.summary = summary
	e.mu.Unlock()

	e.metrics.RecordRun(summary.OK, time.Since(e.started))
	e.logger.Info("run ended", "ok", summary.OK, "bailed", summary.Bailed, "count", summary.Count)
	if err := e.bus.Publish(bus.RootEnd{}); err != nil {
		e.logger.Debug("end not delivered", "error", err)
	}
	close(e.done)
}

func (e *Engine) summaryBailed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.summary.Bailed
}

func (e *Engine) allOK() bool {
	for _, child := range e.st.children {
		ok, err := e.childOK(child, true)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// logMessageError logs a failed message with full context.
func logMessageError(logger *slog.Logger, msg bus.Message, err error) {
	attrs := []any{
		"type", msg.Type(),
		"error", err,
	}
	if reg, ok := msg.(bus.Registration); ok {
		attrs = append(attrs, "kind", reg.Kind())
	}
	switch m := msg.(type) {
	case bus.SuiteReady:
		attrs = append(attrs, "test_id", m.TestID)
	case bus.SuiteResult:
		attrs = append(attrs, "it_id", m.ItID)
	case bus.RegisterTest:
		attrs = append(attrs, "test_id", m.TestID, "href", m.Href)
	}
	logger.Error("message processing failed", attrs...)
}
