package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Netflix/x-test/internal/tap"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Line
	}{
		{
			name: "version",
			text: "TAP Version 14",
			want: Line{Kind: KindVersion},
		},
		{
			name: "subtest link",
			text: "# Subtest: http://localhost/test/page.html",
			want: Line{Kind: KindSubtest, Href: "http://localhost/test/page.html"},
		},
		{
			name: "nested subtest link",
			text: "    # Subtest: https://localhost/test/nested.html",
			want: Line{Kind: KindSubtest, Level: 1, Href: "https://localhost/test/nested.html"},
		},
		{
			name: "describe subtest",
			text: "        # Subtest: math",
			want: Line{Kind: KindSubtest, Level: 2},
		},
		{
			name: "diagnostic",
			text: "    # hello",
			want: Line{Kind: KindDiagnostic, Level: 1},
		},
		{
			name: "ok",
			text: "    ok 1 - adds",
			want: Line{Kind: KindOK, Level: 1},
		},
		{
			name: "ok skip",
			text: "    ok 2 - later # SKIP",
			want: Line{Kind: KindOK, Level: 1, Directive: tap.DirectiveSkip},
		},
		{
			name: "ok todo",
			text: "ok 3 - someday # TODO",
			want: Line{Kind: KindOK, Directive: tap.DirectiveTodo},
		},
		{
			name: "not ok",
			text: "    not ok 1 - broken",
			want: Line{Kind: KindNotOK, Level: 1, Failed: true},
		},
		{
			name: "not ok todo",
			text: "not ok 1 - known # TODO",
			want: Line{Kind: KindNotOK, Directive: tap.DirectiveTodo},
		},
		{
			name: "yaml",
			text: "      ---\n      message: boom\n      severity: fail\n      ...",
			want: Line{Kind: KindYAML, Level: 1},
		},
		{
			name: "nested plan",
			text: "    1..3",
			want: Line{Kind: KindPlan, Level: 1},
		},
		{
			name: "final plan",
			text: "1..3",
			want: Line{Kind: KindPlan, Done: true},
		},
		{
			name: "bail link",
			text: "Bail out! http://localhost/test/page.html",
			want: Line{Kind: KindBail, Href: "http://localhost/test/page.html", Failed: true},
		},
		{
			name: "bare bail",
			text: "Bail out!",
			want: Line{Kind: KindBail, Failed: true},
		},
		{
			name: "other",
			text: "hello",
			want: Line{Kind: KindOther},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want.Text = tt.text
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestLine_Name(t *testing.T) {
	assert.Equal(t, "math", Parse("    # Subtest: math").Name())
	assert.Empty(t, Parse("ok 1 - math").Name())
}

func passingRun() []string {
	return []string{
		"TAP Version 14",
		"# Subtest: http://localhost/test/index.html",
		"    # Subtest: math",
		"        ok 1 - adds",
		"        ok 2 - later # SKIP",
		"        1..2",
		"    ok 1 - math",
		"    ok 2 - someday # TODO",
		"    1..2",
		"ok 1 - http://localhost/test/index.html",
		"ok 2 - 80% coverage goal for http://localhost/src/a.js (got 90.00%)",
		"1..2",
	}
}

func TestReporter_Tracks(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithColor(false))

	assert.True(t, r.OK())
	assert.True(t, r.Testing())

	r.Append(passingRun()...)

	assert.True(t, r.OK())
	assert.False(t, r.Testing())
	assert.True(t, r.Done())
	assert.Equal(t, Counts{Passed: 2, Skipped: 1, Todo: 1}, r.Counts())
	assert.Equal(t, strings.Join(passingRun(), "\n")+"\n", buf.String())
}

func TestReporter_FailureAndBail(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithColor(false))

	r.Append(
		"TAP Version 14",
		"# Subtest: http://localhost/test/index.html",
		"    not ok 1 - broken",
		"      ---\n      message: boom\n      severity: fail\n      ...",
	)
	assert.False(t, r.OK())
	assert.True(t, r.Testing())

	r.Append("Bail out! http://localhost/test/index.html")
	assert.False(t, r.Testing())
	assert.Equal(t, Counts{Failed: 1, Bailed: true}, r.Counts())
}

func TestReporter_Guides(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithColor(false), WithGuides(true))

	r.Append("        ok 1 - deep", "ok 2 - shallow")

	assert.Equal(t, Guide+Guide+"ok 1 - deep\nok 2 - shallow\n", buf.String())
}

func TestReporter_Summary(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithColor(false))
	r.Append(passingRun()...)

	summary := r.Summary(1500 * time.Millisecond)

	require.NotEmpty(t, summary)
	assert.Contains(t, summary, "http://localhost/test/index.html")
	assert.Contains(t, summary, coverageRow)
	assert.Contains(t, summary, StatusSkip)
	assert.NotContains(t, summary, StatusFail)
}

func TestReporter_SummaryFailure(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, WithColor(false))
	r.Append(
		"TAP Version 14",
		"# Subtest: http://localhost/test/index.html",
		"    not ok 1 - broken",
		"    1..1",
		"not ok 1 - http://localhost/test/index.html",
		"1..1",
	)

	summary := r.Summary(time.Second)

	assert.Contains(t, summary, StatusFail)
	assert.Equal(t, Counts{Failed: 1}, r.Counts())
}
