package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Netflix/x-test/internal/config"
	"github.com/Netflix/x-test/internal/harness"
)

// ValidationError describes one file that failed validation.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate [scenario...]",
		Short: "Validate scenarios and run config without running them",
		Long: `Validate scenario files and an optional run config.

Scenarios are parsed and checked for structural errors. The config file is
checked against its schema. Nothing is executed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.Config == "" {
				return NewExitError(ExitCommandError, "nothing to validate: pass scenario files or --config")
			}
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "run config file to validate")

	return cmd
}

func runValidate(opts *ValidateOptions, files []string, cmd *cobra.Command) error {
	printer := newPrinter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := &ValidationResult{}

	if opts.Config != "" {
		printer.Debugf("Validating config: %s", opts.Config)
		result.Files++
		if _, err := config.Load(opts.Config); err != nil {
			result.add(opts.Config, errorCode(err, ErrCodeInvalidConfig), err)
		}
	}

	for _, file := range files {
		printer.Debugf("Validating scenario: %s", file)
		result.Files++
		if _, err := harness.LoadScenario(file); err != nil {
			result.add(file, errorCode(err, ErrCodeInvalidScenario), err)
		}
	}

	result.Valid = len(result.Errors) == 0
	return printer.Print(result)
}

func (r *ValidationResult) add(file, code string, err error) {
	r.Errors = append(r.Errors, ValidationError{File: file, Code: code, Message: err.Error()})
}

// errorCode reports missing files as ErrCodeNotFound and everything else
// with the given code.
func errorCode(err error, code string) string {
	if errors.Is(err, os.ErrNotExist) {
		return ErrCodeNotFound
	}
	return code
}

// Failure implements Report. The first error names the failure.
func (r *ValidationResult) Failure() *Failure {
	if len(r.Errors) == 0 {
		return nil
	}
	return &Failure{
		Code:    r.Errors[0].Code,
		Message: fmt.Sprintf("validation failed with %d error(s)", len(r.Errors)),
	}
}

// WriteText implements Report.
func (r *ValidationResult) WriteText(w io.Writer) {
	if len(r.Errors) == 0 {
		fmt.Fprintf(w, "✓ %d file(s) valid\n", r.Files)
		return
	}
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, err := range r.Errors {
		fmt.Fprintln(w, err.File)
		fmt.Fprintf(w, "  %s: %s\n\n", err.Code, err.Message)
	}
}
