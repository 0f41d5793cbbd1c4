package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/client"
	"github.com/Netflix/x-test/internal/coverage"
	"github.com/Netflix/x-test/internal/engine"
	"github.com/Netflix/x-test/internal/ident"
	"github.com/Netflix/x-test/internal/metrics"
	"github.com/Netflix/x-test/internal/suite"
	"github.com/Netflix/x-test/internal/testutil"
)

// DefaultRunTimeout bounds a whole scenario run.
const DefaultRunTimeout = time.Minute

// Options tune how a scenario is executed.
type Options struct {
	// URL replaces the scenario's entry url when set.
	URL string

	// Sinks receive the TAP stream in addition to the recorded result.
	Sinks []engine.Sink

	// IDs generates every id of the run. Defaults to a sequence so runs are
	// reproducible.
	IDs ident.Generator

	Metrics *metrics.Metrics

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// Timeout bounds the run. Defaults to DefaultRunTimeout.
	Timeout time.Duration

	// Trace receives every bus message of the run as JSON lines.
	Trace io.Writer
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is false once any assertion failed.
	Pass bool `json:"pass"`

	// Lines holds every TAP line in emission order.
	Lines []string `json:"lines"`

	Summary engine.Summary `json:"summary"`

	// Errors contains assertion failures.
	Errors []string `json:"errors,omitempty"`

	Duration time.Duration `json:"duration"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Lines: []string{}, Errors: []string{}}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Output returns the TAP stream as text, one line per line.
func (r *Result) Output() string {
	var b strings.Builder
	for _, line := range r.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Build a page registry from the scenario
//  2. Start the orchestrator on a fresh bus with a host serving the registry
//  3. Answer coverage requests with the scenario's coverage data
//  4. Wait for the run to end
//  5. Evaluate assertions against the stream and summary
func Run(ctx context.Context, scenario *Scenario, opts Options) (*Result, error) {
	href := scenario.URL
	if opts.URL != "" {
		href = opts.URL
	}
	entry, err := engine.ParseEntry(href)
	if err != nil {
		return nil, err
	}
	if opts.IDs == nil {
		opts.IDs = ident.NewSequence("id")
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRunTimeout
	}

	registry, err := BuildRegistry(scenario)
	if err != nil {
		return nil, err
	}

	b := bus.New()
	defer b.Close()

	stopTrace := func() error { return nil }
	if opts.Trace != nil {
		stopTrace = bus.Record(b, opts.Trace)
		defer stopTrace()
	}

	suiteOpts := []suite.Option{suite.WithIDs(opts.IDs), suite.WithLogger(opts.Logger)}
	if scenario.Interval > 0 {
		suiteOpts = append(suiteOpts, suite.WithTimeout(scenario.Interval.Std()))
	}
	host := suite.NewHost(b, registry, suiteOpts...)

	recorder := testutil.NewRecordingSink()
	engineOpts := []engine.Option{
		engine.WithSink(recorder),
		engine.WithIDs(opts.IDs),
		engine.WithLogger(opts.Logger),
		engine.WithMetrics(opts.Metrics),
	}
	for _, sink := range opts.Sinks {
		engineOpts = append(engineOpts, engine.WithSink(sink))
	}
	if scenario.CoverageWait > 0 {
		engineOpts = append(engineOpts, engine.WithCoverageWait(scenario.CoverageWait.Std()))
	}
	e := engine.New(b, host, entry, engineOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if scenario.Coverage != nil {
		go automate(runCtx, client.New(b), scenario.Coverage, opts.Logger)
	}

	started := time.Now()
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(runCtx) }()

	timer := time.NewTimer(opts.Timeout)
	defer timer.Stop()
	select {
	case <-e.Done():
	case <-timer.C:
		cancel()
		<-errCh
		return nil, fmt.Errorf("scenario %s did not end within %s", scenario.Name, opts.Timeout)
	case <-ctx.Done():
		<-errCh
		return nil, ctx.Err()
	}
	cancel()
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("run scenario %s: %w", scenario.Name, err)
	}
	if err := stopTrace(); err != nil {
		return nil, fmt.Errorf("write trace: %w", err)
	}

	result := NewResult()
	result.Lines = recorder.Lines()
	result.Summary = e.Summary()
	result.Duration = time.Since(started)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// automate plays the automation client: it waits for the run to request
// coverage and hands the scenario's data back.
func automate(ctx context.Context, c *client.Client, entries []coverage.Entry, logger *slog.Logger) {
	signal, err := c.Await(ctx)
	if err != nil {
		logger.Debug("automation stopped", "error", err)
		return
	}
	if signal != client.SignalCoverageRequested {
		return
	}
	if err := c.Cover(ctx, entries); err != nil {
		logger.Debug("automation stopped", "error", err)
	}
}
