package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Every test passed
	ExitFailure      = 1 // A test failed, the run bailed out or a scenario failed
	ExitCommandError = 2 // Command error (bad flags, unreadable files, invalid config)
)

// Error codes carried in reports.
const (
	ErrCodeNotFound        = "E005" // Path not found
	ErrCodeInvalidScenario = "E101" // Scenario failed to parse or validate
	ErrCodeInvalidConfig   = "E102" // Run config rejected by its schema
	ErrCodeTestsFailed     = "E201" // A test or coverage goal was not ok
	ErrCodeBailed          = "E202" // The run bailed out
	ErrCodeScenarioFailed  = "E203" // A scenario missed its assertions or golden file
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps err with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps err to a process exit code. Errors that are not an
// ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Report is the result of one command. Reports render themselves as text;
// the JSON form wraps the report in a Response.
type Report interface {
	// Failure describes why the command failed, or nil.
	Failure() *Failure
	WriteText(w io.Writer)
}

// Failure is the machine-readable reason a report failed.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the JSON envelope of every report.
type Response struct {
	Status string   `json:"status"` // "ok" or "error"
	Data   Report   `json:"data"`
	Error  *Failure `json:"error,omitempty"`
}

// Printer writes reports in the format chosen with --format.
type Printer struct {
	Format  string
	Out     io.Writer
	Log     io.Writer // progress lines; never mixed into JSON output
	Verbose bool
}

func newPrinter(opts *RootOptions, out, log io.Writer) *Printer {
	return &Printer{Format: opts.Format, Out: out, Log: log, Verbose: opts.Verbose}
}

// Print writes r and converts its failure into an ExitFailure error.
func (p *Printer) Print(r Report) error {
	failure := r.Failure()
	if p.Format == "json" {
		resp := Response{Status: "ok", Data: r, Error: failure}
		if failure != nil {
			resp.Status = "error"
		}
		encoder := json.NewEncoder(p.Out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	} else {
		r.WriteText(p.Out)
	}

	if failure != nil {
		return NewExitError(ExitFailure, failure.Message)
	}
	return nil
}

// Progress reports per-item progress in text mode.
func (p *Printer) Progress(format string, args ...any) {
	if p.Format == "json" || p.Log == nil {
		return
	}
	fmt.Fprintf(p.Log, format+"\n", args...)
}

// Debugf writes a line only with --verbose.
func (p *Printer) Debugf(format string, args ...any) {
	if !p.Verbose || p.Log == nil {
		return
	}
	fmt.Fprintf(p.Log, format+"\n", args...)
}
