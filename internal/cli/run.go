package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Netflix/x-test/internal/client"
	"github.com/Netflix/x-test/internal/config"
	"github.com/Netflix/x-test/internal/coverage"
	"github.com/Netflix/x-test/internal/engine"
	"github.com/Netflix/x-test/internal/harness"
	"github.com/Netflix/x-test/internal/ident"
	"github.com/Netflix/x-test/internal/metrics"
	"github.com/Netflix/x-test/internal/reporter"
)

// Color modes for the reporter.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config       string
	URL          string
	Name         string
	Coverage     bool
	CoverageFile string
	NoReporter   bool
	Color        string
	Interval     time.Duration
	CoverageWait time.Duration
	Timeout      time.Duration
	MetricsAddr  string
	Trace        string

	// IDs overrides the id generator (for testing). Defaults to UUIDv7.
	IDs ident.Generator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario and stream TAP",
		Long: `Run the pages of a scenario file and write the TAP stream to stdout.

The reporter renders a colored copy of the stream and a summary table to
stderr unless --no-reporter is given or the entry url carries
x-test-no-reporter. With --format json a run report replaces both. A run
config supplies defaults; flags override it.

Exit codes:
  0 - Every test passed
  1 - A test failed or the run bailed out
  2 - Command error (invalid paths, config, flags)

Examples:
  xtest run ./scenarios/smoke.yaml
  xtest run ./scenarios/smoke.yaml --name "^math"
  xtest run ./scenarios/smoke.yaml --coverage --coverage-file ./coverage.json
  xtest run ./scenarios/smoke.yaml --config ./xtest.yaml --metrics-addr :9090
  xtest run ./scenarios/smoke.yaml --trace ./run.jsonl --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to a YAML run config")
	cmd.Flags().StringVar(&opts.URL, "url", "", "entry url (defaults to the scenario url)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "only run its whose composed name matches this regexp")
	cmd.Flags().BoolVar(&opts.Coverage, "coverage", false, "collect coverage and check coverage goals")
	cmd.Flags().StringVar(&opts.CoverageFile, "coverage-file", "", "JSON coverage data to hand back when coverage is requested")
	cmd.Flags().BoolVar(&opts.NoReporter, "no-reporter", false, "do not render the reporter")
	cmd.Flags().StringVar(&opts.Color, "color", ColorAuto, "reporter colors (auto|always|never)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "default it timeout (0 keeps the runtime default)")
	cmd.Flags().DurationVar(&opts.CoverageWait, "coverage-wait", 0, "how long to wait for coverage data (0 keeps the default)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", harness.DefaultRunTimeout, "bound for the whole run")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")
	cmd.Flags().StringVar(&opts.Trace, "trace", "", "record every bus message of the run to this file as JSON lines")

	return cmd
}

func runScenarioFile(opts *RunOptions, path string, cmd *cobra.Command) error {
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	slog.SetDefault(logger)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	if err := applyConfig(opts, cmd); err != nil {
		return err
	}
	switch opts.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid color %q: must be auto, always or never", opts.Color))
	}

	run := config.Config{
		URL:        scenario.URL,
		NoReporter: opts.NoReporter,
		Coverage:   opts.Coverage,
		Name:       opts.Name,
	}
	if opts.URL != "" {
		run.URL = opts.URL
	}
	href, err := run.EntryURL()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid entry url", err)
	}
	entry, err := engine.ParseEntry(href)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid entry url", err)
	}

	if opts.CoverageFile != "" {
		entries, err := readCoverageFile(opts.CoverageFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read coverage file", err)
		}
		scenario.Coverage = entries
	}
	if opts.Interval > 0 {
		scenario.Interval = harness.Duration(opts.Interval)
	}
	if opts.CoverageWait > 0 {
		scenario.CoverageWait = harness.Duration(opts.CoverageWait)
	}

	sinks := []engine.Sink{engine.WriterSink{W: cmd.OutOrStdout()}}
	var rep *reporter.Reporter
	switch {
	case opts.Format == "json":
		rep = reporter.New(io.Discard, reporter.WithColor(false))
		sinks = append(sinks, rep)
	case !entry.NoReporter:
		repOpts := []reporter.Option{reporter.WithGuides(true)}
		switch opts.Color {
		case ColorAlways:
			repOpts = append(repOpts, reporter.WithColor(true))
		case ColorNever:
			repOpts = append(repOpts, reporter.WithColor(false))
		}
		rep = reporter.New(cmd.ErrOrStderr(), repOpts...)
		sinks = append(sinks, rep)
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	var m *metrics.Metrics
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.New(reg)
		stop, err := serveMetrics(opts.MetricsAddr, reg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to serve metrics", err)
		}
		defer stop()
	}

	ids := opts.IDs
	if ids == nil {
		ids = ident.UUIDv7{}
	}

	var trace io.Writer
	if opts.Trace != "" {
		f, err := os.Create(opts.Trace)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create trace file", err)
		}
		defer f.Close()
		trace = f
	}

	slog.Info("run starting", "scenario", scenario.Name, "href", href)
	result, err := harness.Run(ctx, scenario, harness.Options{
		URL:     href,
		Sinks:   sinks,
		IDs:     ids,
		Metrics: m,
		Logger:  logger,
		Timeout: opts.Timeout,
		Trace:   trace,
	})
	if err != nil {
		return WrapExitError(ExitFailure, "run did not complete", err)
	}
	slog.Info("run finished", "ok", result.Summary.OK, "bailed", result.Summary.Bailed, "duration", result.Duration)

	report := newRunReport(scenario.Name, entry.Href, result, rep)
	if rep != nil && opts.Format != "json" {
		report.table = rep.Summary(result.Duration)
	}
	return newPrinter(opts.RootOptions, cmd.ErrOrStderr(), nil).Print(report)
}

// RunReport summarizes a finished run. Leaf counts are only known when the
// stream went through a reporter.
type RunReport struct {
	Scenario   string `json:"scenario"`
	Href       string `json:"href"`
	OK         bool   `json:"ok"`
	Bailed     bool   `json:"bailed"`
	Tests      int    `json:"tests"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Todo       int    `json:"todo"`
	DurationMS int64  `json:"duration_ms"`

	table string
}

func newRunReport(name, href string, result *harness.Result, rep *reporter.Reporter) *RunReport {
	report := &RunReport{
		Scenario:   name,
		Href:       href,
		OK:         result.Summary.OK,
		Bailed:     result.Summary.Bailed,
		Tests:      result.Summary.Count,
		DurationMS: result.Duration.Milliseconds(),
	}
	if rep != nil {
		counts := rep.Counts()
		report.Passed = counts.Passed
		report.Failed = counts.Failed
		report.Skipped = counts.Skipped
		report.Todo = counts.Todo
	}
	return report
}

// Failure implements Report.
func (r *RunReport) Failure() *Failure {
	switch {
	case r.Bailed:
		return &Failure{Code: ErrCodeBailed, Message: "run bailed out"}
	case !r.OK:
		return &Failure{Code: ErrCodeTestsFailed, Message: "one or more tests failed"}
	}
	return nil
}

// WriteText implements Report with the reporter's summary table, if any.
func (r *RunReport) WriteText(w io.Writer) {
	if r.table != "" {
		fmt.Fprint(w, r.table)
	}
}

// applyConfig fills options the user did not set on the command line from
// the run config.
func applyConfig(opts *RunOptions, cmd *cobra.Command) error {
	if opts.Config == "" {
		return nil
	}
	cfg, err := config.Load(opts.Config)
	if err != nil {
		if errors.Is(err, config.ErrInvalid) {
			return WrapExitError(ExitCommandError, "invalid config", err)
		}
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("url") && cfg.URL != "" {
		opts.URL = cfg.URL
	}
	if !flags.Changed("no-reporter") {
		opts.NoReporter = cfg.NoReporter
	}
	if !flags.Changed("coverage") {
		opts.Coverage = cfg.Coverage
	}
	if !flags.Changed("name") && cfg.Name != "" {
		opts.Name = cfg.Name
	}
	if !flags.Changed("interval") && cfg.Interval > 0 {
		opts.Interval = cfg.Interval
	}
	if !flags.Changed("coverage-wait") && cfg.CoverageWait > 0 {
		opts.CoverageWait = cfg.CoverageWait
	}
	if !flags.Changed("color") && cfg.Color != nil {
		opts.Color = ColorNever
		if cfg.ColorEnabled(false) {
			opts.Color = ColorAlways
		}
	}
	return nil
}

func readCoverageFile(path string) ([]coverage.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return client.ReadCoverage(f)
}

// signalContext cancels on SIGINT or SIGTERM.
// Uses the command's context if available (for testing).
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// serveMetrics exposes reg on addr until stop is called.
func serveMetrics(addr string, reg *prometheus.Registry) (stop func(), err error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
