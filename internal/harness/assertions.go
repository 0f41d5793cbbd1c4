package harness

import (
	"fmt"
	"strings"
)

// Assertion validates the TAP stream or the run summary.
type Assertion struct {
	// Type specifies the assertion type:
	// - "contains": the stream has a line equal to Line
	// - "order": Lines appear in order, intervening lines allowed
	// - "count": exactly Count lines start with Prefix
	// - "summary": OK, Bailed and Tests match the run summary when set
	Type string `yaml:"type"`

	Line   string   `yaml:"line,omitempty"`
	Lines  []string `yaml:"lines,omitempty"`
	Prefix string   `yaml:"prefix,omitempty"`
	Count  int      `yaml:"count,omitempty"`

	OK     *bool `yaml:"ok,omitempty"`
	Bailed *bool `yaml:"bailed,omitempty"`
	Tests  *int  `yaml:"tests,omitempty"`
}

// Assertion type constants.
const (
	AssertContains = "contains"
	AssertOrder    = "order"
	AssertCount    = "count"
	AssertSummary  = "summary"
)

// AssertionError is returned when an assertion fails.
// It includes the stream to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Output   []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull output:\n")
	for i, line := range e.Output {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var failures []string
	for _, assertion := range assertions {
		if err := evaluate(result, assertion); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertContains:
		return assertContains(result.Lines, a)
	case AssertOrder:
		return assertOrder(result.Lines, a)
	case AssertCount:
		return assertCount(result.Lines, a)
	case AssertSummary:
		return assertSummary(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// lines splits multi-line entries so assertions address physical lines.
func lines(output []string) []string {
	var all []string
	for _, entry := range output {
		all = append(all, strings.Split(entry, "\n")...)
	}
	return all
}

func assertContains(output []string, a Assertion) error {
	for _, line := range lines(output) {
		if line == a.Line {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertContains,
		Expected: fmt.Sprintf("line %q", a.Line),
		Actual:   "not found in output",
		Output:   output,
	}
}

func assertOrder(output []string, a Assertion) error {
	next := 0
	for _, line := range lines(output) {
		if next < len(a.Lines) && line == a.Lines[next] {
			next++
		}
	}
	if next == len(a.Lines) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOrder,
		Expected: fmt.Sprintf("lines in order %q", a.Lines),
		Actual:   fmt.Sprintf("line %q not found after %q", a.Lines[next], a.Lines[:next]),
		Output:   output,
	}
}

func assertCount(output []string, a Assertion) error {
	count := 0
	for _, line := range lines(output) {
		if strings.HasPrefix(line, a.Prefix) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%d lines starting with %q", a.Count, a.Prefix),
		Actual:   fmt.Sprintf("%d lines", count),
		Output:   output,
	}
}

func assertSummary(result *Result, a Assertion) error {
	got := result.Summary
	var mismatches []string
	if a.OK != nil && *a.OK != got.OK {
		mismatches = append(mismatches, fmt.Sprintf("ok=%v", got.OK))
	}
	if a.Bailed != nil && *a.Bailed != got.Bailed {
		mismatches = append(mismatches, fmt.Sprintf("bailed=%v", got.Bailed))
	}
	if a.Tests != nil && *a.Tests != got.Count {
		mismatches = append(mismatches, fmt.Sprintf("tests=%d", got.Count))
	}
	if len(mismatches) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertSummary,
		Expected: describeSummary(a),
		Actual:   strings.Join(mismatches, ", "),
		Output:   result.Lines,
	}
}

func describeSummary(a Assertion) string {
	var parts []string
	if a.OK != nil {
		parts = append(parts, fmt.Sprintf("ok=%v", *a.OK))
	}
	if a.Bailed != nil {
		parts = append(parts, fmt.Sprintf("bailed=%v", *a.Bailed))
	}
	if a.Tests != nil {
		parts = append(parts, fmt.Sprintf("tests=%d", *a.Tests))
	}
	return strings.Join(parts, ", ")
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertContains:
		if a.Line == "" {
			return fmt.Errorf("assertions[%d]: line is required for contains", index)
		}
	case AssertOrder:
		if len(a.Lines) == 0 {
			return fmt.Errorf("assertions[%d]: lines list is required for order", index)
		}
	case AssertCount:
		if a.Prefix == "" {
			return fmt.Errorf("assertions[%d]: prefix is required for count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertSummary:
		if a.OK == nil && a.Bailed == nil && a.Tests == nil {
			return fmt.Errorf("assertions[%d]: summary needs ok, bailed or tests", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
