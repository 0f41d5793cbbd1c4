package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailure},
		{"command error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped", fmt.Errorf("run: %w", NewExitError(ExitCommandError, "bad flag")), ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestWrapExitError(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "failed to load scenario", cause)

	assert.EqualError(t, err, "failed to load scenario: no such file")
	assert.ErrorIs(t, err, cause)
}

func TestPrinter_RunReportText(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{Format: "text", Out: &out}

	err := p.Print(&RunReport{OK: true, table: "TABLE\n"})
	require.NoError(t, err)
	assert.Equal(t, "TABLE\n", out.String())

	out.Reset()
	err = p.Print(&RunReport{OK: true})
	require.NoError(t, err)
	assert.Empty(t, out.String(), "no table without a reporter")
}

func TestPrinter_RunReportFailures(t *testing.T) {
	tests := []struct {
		name    string
		report  RunReport
		code    string
		message string
	}{
		{"not ok", RunReport{OK: false}, ErrCodeTestsFailed, "one or more tests failed"},
		{"bailed wins", RunReport{OK: false, Bailed: true}, ErrCodeBailed, "run bailed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := &Printer{Format: "json", Out: &out}

			err := p.Print(&tt.report)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.EqualError(t, err, tt.message)

			var resp struct {
				Status string    `json:"status"`
				Data   RunReport `json:"data"`
				Error  *Failure  `json:"error"`
			}
			require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.report.Bailed, resp.Data.Bailed)
		})
	}
}

func TestPrinter_ValidationJSON(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{Format: "json", Out: &out}

	require.NoError(t, p.Print(&ValidationResult{Valid: true, Files: 2}))
	assert.JSONEq(t, `{"status": "ok", "data": {"valid": true, "files": 2}}`, out.String())
}

func TestPrinter_TestResultText(t *testing.T) {
	var out bytes.Buffer
	p := &Printer{Format: "text", Out: &out}

	err := p.Print(&TestResult{Passed: 1, Failed: 1, Total: 2})
	require.Error(t, err)
	assert.EqualError(t, err, "1 scenario(s) failed")
	assert.Contains(t, out.String(), "Test Summary: 1 passed, 1 failed, 2 total")
	assert.NotContains(t, out.String(), "All scenarios passed")
}

func TestPrinter_ProgressAndDebug(t *testing.T) {
	tests := []struct {
		name      string
		format    string
		verbose   bool
		wantLines string
	}{
		{"text", "text", false, "✓ smoke\n"},
		{"text verbose", "text", true, "✓ smoke\nRunning scenario: smoke.yaml\n"},
		{"json keeps progress out", "json", false, ""},
		{"json verbose", "json", true, "Running scenario: smoke.yaml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log bytes.Buffer
			p := &Printer{Format: tt.format, Out: &bytes.Buffer{}, Log: &log, Verbose: tt.verbose}

			p.Progress("✓ %s", "smoke")
			p.Debugf("Running scenario: %s", "smoke.yaml")
			assert.Equal(t, tt.wantLines, log.String())
		})
	}
}
