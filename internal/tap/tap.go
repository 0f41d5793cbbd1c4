// Package tap encodes Test Anything Protocol lines.
//
// Every function is pure. Nesting is expressed through a level argument which
// callers derive from the parent chain of the node being encoded; the encoder
// never computes depth on its own. One level is four spaces.
package tap

import (
	"fmt"
	"strings"
)

// Directive modifies how a test line is interpreted by TAP consumers.
type Directive string

const (
	// DirectiveNone leaves the result as-is.
	DirectiveNone Directive = ""
	// DirectiveSkip marks a test that was not run.
	DirectiveSkip Directive = "SKIP"
	// DirectiveTodo marks a test that is expected to fail.
	DirectiveTodo Directive = "TODO"
)

// Valid reports whether d is one of the known directives.
func (d Directive) Valid() bool {
	switch d {
	case DirectiveNone, DirectiveSkip, DirectiveTodo:
		return true
	default:
		return false
	}
}

const indentUnit = "    "

// Indent returns the prefix for the given nesting level. Negative levels are
// treated as zero.
func Indent(level int) string {
	if level <= 0 {
		return ""
	}
	return strings.Repeat(indentUnit, level)
}

// Version returns the version line that opens every stream.
func Version() string {
	return "TAP Version 14"
}

// Diagnostic comment-prefixes every line of message.
func Diagnostic(message string, level int) string {
	prefix := Indent(level) + "# "
	return prefix + strings.ReplaceAll(message, "\n", "\n"+prefix)
}

// TestLine renders "ok|not ok <n> - <description>[ # DIRECTIVE]". Newlines in
// the description are collapsed to spaces.
func TestLine(ok bool, number int, description string, directive Directive, level int) string {
	status := "not ok"
	if ok {
		status = "ok"
	}
	description = strings.ReplaceAll(description, "\n", " ")
	line := fmt.Sprintf("%s%s %d - %s", Indent(level), status, number, description)
	if directive != DirectiveNone {
		line += " # " + string(directive)
	}
	return line
}

// Subtest renders the marker that opens a nested block.
func Subtest(name string, level int) string {
	return Indent(level) + "# Subtest: " + name
}

// YAMLData carries the optional fields of a YAML diagnostic block.
type YAMLData struct {
	Stack string
}

// YAML renders a diagnostic block delimited by "---" and "...". A non-empty
// stack is emitted as a literal block.
func YAML(message, severity string, data YAMLData, level int) string {
	prefix := Indent(level) + "  "
	var b strings.Builder
	b.WriteString(prefix + "---")
	b.WriteString("\n" + prefix + "message: " + strings.ReplaceAll(message, "\n", " "))
	b.WriteString("\n" + prefix + "severity: " + severity)
	if data.Stack != "" {
		stackPrefix := prefix + "  "
		b.WriteString("\n" + prefix + "stack: |-")
		b.WriteString("\n" + stackPrefix + strings.ReplaceAll(data.Stack, "\n", "\n"+stackPrefix))
	}
	b.WriteString("\n" + prefix + "...")
	return b.String()
}

// BailOut renders the line that terminates a stream early. An empty message
// yields the bare "Bail out!" form.
func BailOut(message string) string {
	if message == "" {
		return "Bail out!"
	}
	return "Bail out! " + strings.ReplaceAll(message, "\n", " ")
}

// Plan renders "1..<count>".
func Plan(count, level int) string {
	return fmt.Sprintf("%s1..%d", Indent(level), count)
}
