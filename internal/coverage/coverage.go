// Package coverage reduces pre-computed byte-range usage data into a
// line-oriented report.
//
// The analyzer never instruments code. It consumes the ranges an automation
// client collected for a whole run and answers one question per goal: how much
// of one file was executed, and does that meet the goal.
package coverage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoSource is returned when no entry matches the requested url.
var ErrNoSource = errors.New("no coverage source")

// Range is a half-open interval [Start, End) of executed bytes.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Entry holds the used ranges reported for one file.
type Entry struct {
	URL    string  `json:"url"`
	Text   string  `json:"text"`
	Ranges []Range `json:"ranges"`
}

// RangeError reports a range that does not fit the source text.
type RangeError struct {
	URL   string
	Range Range
	Len   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range [%d, %d) out of bounds for %s (length %d)", e.Range.Start, e.Range.End, e.URL, e.Len)
}

// Analysis is the outcome of checking one file against a goal.
type Analysis struct {
	OK      bool
	Percent float64
	Output  string
}

const (
	ellipsis = "…"

	// Runs longer than these are collapsed in the report.
	maxUsedLines   = 3
	maxUnusedLines = 5
)

type run struct {
	used       bool
	start, end int
}

// Analyze unions every range reported for url, splits the source into maximal
// runs of used and unused bytes and renders a numbered report. Unused lines
// carry a "!" flag. Used runs over three lines keep only their first and last
// line; unused runs over five lines keep the first two and last two.
func Analyze(entries []Entry, url string, goal float64) (Analysis, error) {
	var (
		text  string
		found bool
		used  = map[int]struct{}{}
	)
	for _, entry := range entries {
		if entry.URL != url {
			continue
		}
		found = true
		text = entry.Text
		for _, r := range entry.Ranges {
			if r.Start < 0 || r.End > len(entry.Text) || r.Start > r.End {
				return Analysis{}, &RangeError{URL: url, Range: r, Len: len(entry.Text)}
			}
			for i := r.Start; i < r.End; i++ {
				used[i] = struct{}{}
			}
		}
	}
	if !found || len(text) == 0 {
		return Analysis{}, fmt.Errorf("%w for %s", ErrNoSource, url)
	}

	runs := splitRuns(text, used)

	var b strings.Builder
	lineNumber := 1
	for _, r := range runs {
		segments := strings.Split(text[r.start:r.end], "\n")
		lines := make([]string, 0, len(segments))
		for i, segment := range segments {
			// The first segment of a run continues the previous run's line.
			if lineNumber == 1 || i > 0 {
				label := strconv.Itoa(lineNumber)
				if !r.used {
					label += " !"
				}
				lineNumber++
				lines = append(lines, fmt.Sprintf("%-8s|  %s", label, segment))
			} else {
				lines = append(lines, segment)
			}
		}
		b.WriteString(strings.Join(truncate(lines, r.used), "\n"))
	}

	percent := float64(len(used)) / float64(len(text)) * 100
	return Analysis{
		OK:      percent >= goal,
		Percent: percent,
		Output:  b.String(),
	}, nil
}

func splitRuns(text string, used map[int]struct{}) []run {
	isUsed := func(i int) bool {
		_, ok := used[i]
		return ok
	}
	var runs []run
	current := run{used: isUsed(0)}
	for i := 0; i < len(text); i++ {
		if u := isUsed(i); u != current.used {
			current.end = i
			runs = append(runs, current)
			current = run{used: u, start: i}
		}
	}
	current.end = len(text)
	return append(runs, current)
}

func truncate(lines []string, used bool) []string {
	if used {
		if len(lines) > maxUsedLines {
			return []string{lines[0], ellipsis, lines[len(lines)-1]}
		}
		return lines
	}
	if len(lines) > maxUnusedLines {
		return []string{lines[0], lines[1], ellipsis, lines[len(lines)-2], lines[len(lines)-1]}
	}
	return lines
}
