package reporter

import (
	"bytes"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Status values shown in the summary table.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
	StatusBail = "BAIL"
)

func status(c Counts) string {
	switch {
	case c.Bailed:
		return StatusBail
	case c.Failed > 0:
		return StatusFail
	case c.Skipped > 0:
		return StatusSkip
	default:
		return StatusPass
	}
}

// Summary renders a table with one row per top-level test and a total
// footer. The table is colored by the overall outcome.
func (r *Reporter) Summary(elapsed time.Duration) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var buf bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle("x-test")

	t.AppendHeader(table.Row{
		"Test", "Tests", "Passed", "Failed", "Skipped", "Todo", "Status",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 120, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Todo", Align: text.AlignRight},
	})

	for _, row := range r.rows {
		t.AppendRow(table.Row{
			row.name,
			row.counts.Total(),
			row.counts.Passed,
			row.counts.Failed,
			row.counts.Skipped,
			row.counts.Todo,
			status(row.counts),
		})
	}

	overall := status(r.counts)
	switch {
	case overall == StatusFail || overall == StatusBail || !r.ok:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case overall == StatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL " + elapsed.Round(time.Millisecond).String(),
		r.counts.Total(),
		r.counts.Passed,
		r.counts.Failed,
		r.counts.Skipped,
		r.counts.Todo,
		overall,
	})

	t.Render()
	return buf.String()
}
