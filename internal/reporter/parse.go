package reporter

import (
	"regexp"
	"strings"

	"github.com/Netflix/x-test/internal/tap"
)

// Kind classifies one output line.
type Kind int

const (
	KindOther Kind = iota
	KindVersion
	KindSubtest
	KindDiagnostic
	KindOK
	KindNotOK
	KindYAML
	KindPlan
	KindBail
)

func (k Kind) String() string {
	switch k {
	case KindVersion:
		return "version"
	case KindSubtest:
		return "subtest"
	case KindDiagnostic:
		return "diagnostic"
	case KindOK:
		return "ok"
	case KindNotOK:
		return "not-ok"
	case KindYAML:
		return "yaml"
	case KindPlan:
		return "plan"
	case KindBail:
		return "bail"
	default:
		return "other"
	}
}

// Line is a classified output line.
type Line struct {
	Text      string
	Kind      Kind
	Level     int
	Href      string
	Directive tap.Directive

	// Failed is set for lines that make the run fail: a bail, or a not ok
	// line without TODO.
	Failed bool

	// Done is set for the top-level plan, the last line of a complete run.
	Done bool
}

var (
	indentPattern     = regexp.MustCompile(`^((?: {4})+)`)
	subtestURLPattern = regexp.MustCompile(`^(?: {4})*# Subtest: (https?:.*)`)
	bailURLPattern    = regexp.MustCompile(`^Bail out! (https?:.*)`)
	subtestPattern    = regexp.MustCompile(`^(?: {4})*# Subtest:`)
	diagnosticPattern = regexp.MustCompile(`^(?: {4})*# `)
	okPattern         = regexp.MustCompile(`^(?: {4})*ok `)
	notOKPattern      = regexp.MustCompile(`^(?: {4})*not ok `)
	skipPattern       = regexp.MustCompile(`^(?: {4})*[^ #][^#]* # SKIP`)
	todoPattern       = regexp.MustCompile(`^(?: {4})*[^ #][^#]* # TODO`)
	yamlPattern       = regexp.MustCompile(`^(?: {4})* {2}---`)
	versionPattern    = regexp.MustCompile(`^TAP`)
	planPattern       = regexp.MustCompile(`^(?: {4})*1\.\.\d*`)
	bailPattern       = regexp.MustCompile(`^(?: {4})*Bail out!.*`)
)

// Parse classifies text from its content alone.
func Parse(text string) Line {
	line := Line{Text: text}
	if m := indentPattern.FindStringSubmatch(text); m != nil {
		line.Level = len(m[1]) / 4
	}

	if m := subtestURLPattern.FindStringSubmatch(text); m != nil {
		line.Kind = KindSubtest
		line.Href = m[1]
		return line
	}
	if m := bailURLPattern.FindStringSubmatch(text); m != nil {
		line.Kind = KindBail
		line.Href = m[1]
		line.Failed = true
		return line
	}

	switch {
	case subtestPattern.MatchString(text):
		line.Kind = KindSubtest
	case diagnosticPattern.MatchString(text):
		line.Kind = KindDiagnostic
	case okPattern.MatchString(text):
		line.Kind = KindOK
		switch {
		case skipPattern.MatchString(text):
			line.Directive = tap.DirectiveSkip
		case todoPattern.MatchString(text):
			line.Directive = tap.DirectiveTodo
		}
	case notOKPattern.MatchString(text):
		line.Kind = KindNotOK
		if todoPattern.MatchString(text) {
			line.Directive = tap.DirectiveTodo
		} else {
			line.Failed = true
		}
	case yamlPattern.MatchString(text):
		line.Kind = KindYAML
	case versionPattern.MatchString(text):
		line.Kind = KindVersion
	case planPattern.MatchString(text):
		line.Kind = KindPlan
		line.Done = line.Level == 0
	case bailPattern.MatchString(text):
		line.Kind = KindBail
		line.Failed = true
	}
	return line
}

// Name returns the subtest name of a subtest line.
func (l Line) Name() string {
	if l.Kind != KindSubtest {
		return ""
	}
	_, name, _ := strings.Cut(l.Text, "# Subtest: ")
	return name
}
