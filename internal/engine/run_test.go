package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/coverage"
	"github.com/Netflix/x-test/internal/suite"
	"github.com/Netflix/x-test/internal/testutil"
)

type runResult struct {
	output  string
	summary Summary
}

// runPages drives a whole run through the real bus, host and suite runtime.
// before runs after the engine subscribed and before Run starts.
func runPages(t *testing.T, href string, pages map[string]suite.SetupFunc, before func(b *bus.Bus), opts ...Option) runResult {
	t.Helper()
	entry, err := ParseEntry(href)
	require.NoError(t, err)

	registry := suite.NewRegistry()
	for path, setup := range pages {
		registry.Register(path, setup)
	}

	b := bus.New()
	defer b.Close()
	sink := testutil.NewRecordingSink()
	host := suite.NewHost(b, registry)
	e := New(b, host, entry, append([]Option{WithSink(sink)}, opts...)...)
	if before != nil {
		before(b)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- e.Run(ctx) }()

	select {
	case <-e.Done():
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatalf("run did not end; output so far:\n%s", sink.Text())
	}
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	return runResult{output: sink.Text(), summary: e.Summary()}
}

func failWith(msg string) suite.TestFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestRun_NestedTests(t *testing.T) {
	pass := func(context.Context) error { return nil }
	result := runPages(t, rootHref, map[string]suite.SetupFunc{
		"/test/index.html": func(s *suite.Suite) {
			s.Test("./a.html")
			s.ItTodo("later", failWith("nope"))
			s.ItSkip("skipped", failWith("never runs"))
		},
		"/test/a.html": func(s *suite.Suite) {
			s.Describe("group", func(g *suite.Group) {
				g.It("one", pass)
			})
			s.Test("./b.html")
		},
		"/test/b.html": func(s *suite.Suite) {
			s.WaitFor(func(context.Context) error {
				s.It("deep", pass)
				return nil
			})
		},
	}, nil)

	expected := `TAP Version 14
# Subtest: http://localhost/test/index.html
    not ok 1 - later # TODO
      ---
      message: nope
      severity: todo
      ...
    ok 2 - skipped # SKIP
    1..2
ok 1 - http://localhost/test/index.html
# Subtest: http://localhost/test/a.html
    # Subtest: group
        ok 1 - one
        1..1
    ok 1 - group
    1..1
ok 2 - http://localhost/test/a.html
# Subtest: http://localhost/test/b.html
    ok 1 - deep
    1..1
ok 3 - http://localhost/test/b.html
1..3
`
	assert.Equal(t, expected, result.output)
	assert.Equal(t, Summary{OK: true, Count: 3}, result.summary)
}

func TestRun_Timeout(t *testing.T) {
	result := runPages(t, rootHref, map[string]suite.SetupFunc{
		"/test/index.html": func(s *suite.Suite) {
			s.It("slow", func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			}, suite.Timeout(20*time.Millisecond))
		},
	}, nil)

	assert.Contains(t, result.output, `    not ok 1 - slow
      ---
      message: timeout after 20ms
      severity: fail
      ...
`)
	assert.False(t, result.summary.OK)
}

func TestRun_BailInNestedDescribe(t *testing.T) {
	pass := func(context.Context) error { return nil }
	result := runPages(t, rootHref, map[string]suite.SetupFunc{
		"/test/index.html": func(s *suite.Suite) {
			s.It("first", pass)
			s.Describe("outer", func(g *suite.Group) {
				g.Describe("inner", func(*suite.Group) {
					panic("nested boom")
				})
			})
		},
	}, nil)

	lines := strings.Split(strings.TrimSuffix(result.output, "\n"), "\n")
	bails := 0
	for _, line := range lines {
		if strings.HasPrefix(line, "Bail out!") {
			bails++
		}
	}
	assert.Equal(t, 1, bails)
	assert.Equal(t, "Bail out! http://localhost/test/index.html", lines[len(lines)-1])
	assert.Contains(t, result.output, "# panic: nested boom\n")
	assert.NotContains(t, result.output, "ok 1 - first")
	assert.True(t, result.summary.Bailed)
}

func TestRun_LoadFailure(t *testing.T) {
	result := runPages(t, rootHref, map[string]suite.SetupFunc{
		"/test/index.html": func(s *suite.Suite) {
			s.Test("./missing.html")
		},
	}, nil)

	expected := `TAP Version 14
# Subtest: http://localhost/test/index.html
    1..0
ok 1 - http://localhost/test/index.html
# Failed to load http://localhost/test/missing.html
Bail out!
`
	assert.Equal(t, expected, result.output)
}

func TestRun_CoverageHandOff(t *testing.T) {
	pages := map[string]suite.SetupFunc{
		"/test/index.html": func(s *suite.Suite) {
			s.It("works", func(context.Context) error { return nil })
			s.Coverage("../src/lib.js", 50)
		},
	}
	automation := func(b *bus.Bus) {
		sub := b.Subscribe()
		go func() {
			defer sub.Close()
			for {
				msg, err := sub.Next(context.Background())
				if err != nil {
					return
				}
				if _, ok := msg.(bus.RootCoverageRequest); ok {
					_ = b.Publish(bus.ClientCoverageResult{JS: []coverage.Entry{{
						URL:    "http://localhost/src/lib.js",
						Text:   "abcdefghij",
						Ranges: []coverage.Range{{Start: 0, End: 6}},
					}}})
					return
				}
			}
		}()
	}

	result := runPages(t, rootHref+"?x-test-run-coverage", pages, automation)
	expected := `TAP Version 14
# Subtest: http://localhost/test/index.html
    ok 1 - works
    1..1
ok 1 - http://localhost/test/index.html
ok 2 - 50% coverage goal for http://localhost/src/lib.js (got 60.00%)
1..2
`
	assert.Equal(t, expected, result.output)
	assert.True(t, result.summary.OK)
}

func TestRun_CoverageWaitExpires(t *testing.T) {
	result := runPages(t, rootHref+"?x-test-run-coverage", map[string]suite.SetupFunc{
		"/test/index.html": func(s *suite.Suite) {
			s.Coverage("../src/lib.js", 50)
		},
	}, nil, WithCoverageWait(20*time.Millisecond))

	assert.Contains(t, result.output, "ok 2 - 50% coverage goal for http://localhost/src/lib.js (got 0.00%) # SKIP\n1..2\n")
}

func TestRun_BailFlushesFilteredOutput(t *testing.T) {
	var page *suite.Suite
	result := runPages(t, rootHref+"?x-test-name=keep", map[string]suite.SetupFunc{
		"/test/index.html": func(s *suite.Suite) {
			page = s
			s.Describe("keep", func(g *suite.Group) {
				g.It("escapes", func(context.Context) error {
					page.Fail(errors.New("escaped"))
					return nil
				})
			})
		},
	}, nil)

	expected := `TAP Version 14
# Subtest: http://localhost/test/index.html?x-test-name=keep
    # Subtest: keep
# escaped
Bail out! http://localhost/test/index.html?x-test-name=keep
`
	assert.Equal(t, expected, result.output)
	assert.True(t, result.summary.Bailed)
}
