// Package reporter renders the TAP stream for a human watching a run.
//
// The stream itself stays on its own writer untouched; the reporter receives
// the same lines, classifies them and writes a styled copy. It also tracks
// whether the run is still testing and whether it is still ok.
package reporter

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/Netflix/x-test/internal/tap"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
)

// Guide replaces each indentation level so nesting reads as a tree.
const Guide = "¦   "

type styles struct {
	version    lipgloss.Style
	subtest    lipgloss.Style
	diagnostic lipgloss.Style
	ok         lipgloss.Style
	notOK      lipgloss.Style
	directive  lipgloss.Style
	yaml       lipgloss.Style
	plan       lipgloss.Style
	bail       lipgloss.Style
	guide      lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		version:    r.NewStyle().Foreground(dim),
		subtest:    r.NewStyle().Foreground(purple).Bold(true),
		diagnostic: r.NewStyle().Foreground(dim),
		ok:         r.NewStyle().Foreground(green),
		notOK:      r.NewStyle().Foreground(red),
		directive:  r.NewStyle().Foreground(yellow),
		yaml:       r.NewStyle().Foreground(red),
		plan:       r.NewStyle().Foreground(dim),
		bail:       r.NewStyle().Foreground(red).Bold(true),
		guide:      r.NewStyle().Foreground(dim),
	}
}

// Counts tallies leaf results. Lines closing a subtest are not counted.
type Counts struct {
	Passed  int
	Failed  int
	Skipped int
	Todo    int
	Bailed  bool
}

// Total returns the number of leaf results seen.
func (c Counts) Total() int {
	return c.Passed + c.Failed + c.Skipped + c.Todo
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithColor forces styling on or off. By default the writer's terminal
// capabilities decide.
func WithColor(enabled bool) Option {
	return func(r *Reporter) {
		if !enabled {
			r.renderer.SetColorProfile(termenv.Ascii)
		} else {
			r.renderer.SetColorProfile(termenv.ANSI256)
		}
	}
}

// WithGuides replaces leading indentation with tree guides.
func WithGuides(enabled bool) Option {
	return func(r *Reporter) {
		r.guides = enabled
	}
}

// Reporter is an engine sink for humans. Safe for concurrent use.
type Reporter struct {
	mu       sync.Mutex
	out      io.Writer
	renderer *lipgloss.Renderer
	styles   styles
	guides   bool

	ok      bool
	testing bool
	counts  Counts

	// open holds the levels of subtests that have not been closed yet.
	open []int
	rows []row
}

// row tallies the leaves under one top-level subtest.
type row struct {
	name   string
	counts Counts
}

// New returns a Reporter writing to w.
func New(w io.Writer, opts ...Option) *Reporter {
	r := &Reporter{
		out:      w,
		renderer: lipgloss.NewRenderer(w),
		ok:       true,
		testing:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.styles = newStyles(r.renderer)
	return r
}

// Append implements engine.Sink.
func (r *Reporter) Append(lines ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, text := range lines {
		line := Parse(text)
		r.track(line)
		fmt.Fprintln(r.out, r.render(line))
	}
}

// OK reports whether nothing has failed so far.
func (r *Reporter) OK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ok
}

// Testing reports whether the stream is still open.
func (r *Reporter) Testing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.testing
}

// Done reports whether the stream reached its final plan or bailed.
func (r *Reporter) Done() bool {
	return !r.Testing()
}

// Counts returns the leaf tallies so far.
func (r *Reporter) Counts() Counts {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts
}

func (r *Reporter) track(line Line) {
	if line.Failed {
		r.ok = false
	}
	if line.Done {
		r.testing = false
	}

	switch line.Kind {
	case KindBail:
		r.testing = false
		r.counts.Bailed = true
	case KindSubtest:
		if line.Level == 0 {
			r.rows = append(r.rows, row{name: line.Name()})
		}
		r.open = append(r.open, line.Level)
	case KindOK, KindNotOK:
		if n := len(r.open); n > 0 && r.open[n-1] == line.Level {
			r.open = r.open[:n-1]
			return
		}
		r.counts.add(line)
		if len(r.open) == 0 && (len(r.rows) == 0 || r.rows[len(r.rows)-1].name != coverageRow) {
			r.rows = append(r.rows, row{name: coverageRow})
		}
		r.rows[len(r.rows)-1].counts.add(line)
	}
}

// Leaves outside any subtest are coverage goals.
const coverageRow = "coverage"

func (c *Counts) add(line Line) {
	switch {
	case line.Directive == tap.DirectiveSkip:
		c.Skipped++
	case line.Directive == tap.DirectiveTodo:
		c.Todo++
	case line.Kind == KindOK:
		c.Passed++
	default:
		c.Failed++
	}
}

func (r *Reporter) render(line Line) string {
	var style lipgloss.Style
	switch line.Kind {
	case KindVersion:
		style = r.styles.version
	case KindSubtest:
		style = r.styles.subtest
	case KindDiagnostic:
		style = r.styles.diagnostic
	case KindOK:
		style = r.styles.ok
		if line.Directive != tap.DirectiveNone {
			style = r.styles.directive
		}
	case KindNotOK:
		style = r.styles.notOK
		if line.Directive != tap.DirectiveNone {
			style = r.styles.directive
		}
	case KindYAML:
		style = r.styles.yaml
	case KindPlan:
		style = r.styles.plan
	case KindBail:
		style = r.styles.bail
	default:
		return line.Text
	}

	rows := strings.Split(line.Text, "\n")
	for i, row := range rows {
		indent := tap.Indent(line.Level)
		body := strings.TrimPrefix(row, indent)
		prefix := indent
		if r.guides && line.Level > 0 {
			prefix = r.styles.guide.Render(strings.Repeat(Guide, line.Level))
		}
		if len(body) == len(row) {
			prefix = ""
		}
		rows[i] = prefix + style.Render(body)
	}
	return strings.Join(rows, "\n")
}
