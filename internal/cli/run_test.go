package cli

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Netflix/x-test/internal/bus"
	"github.com/Netflix/x-test/internal/metrics"
	"github.com/Netflix/x-test/internal/reporter"
)

const passingScenario = `name: passing
url: http://localhost/test/index.html
pages:
  /test/index.html:
    - describe: math
      children:
        - it: adds
        - it: subtracts
`

const failingScenario = `name: failing
url: http://localhost/test/index.html
pages:
  /test/index.html:
    - it: works
    - it: breaks
      fail: boom
`

const bailingScenario = `name: bailing
url: http://localhost/test/index.html
pages:
  /test/index.html:
    - test: ./missing.html
`

func TestRun_PassingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "passing.yaml", passingScenario)

	stdout, stderr, err := executeCommand(t, "run", path, "--no-reporter")
	require.NoError(t, err)

	expected := `TAP Version 14
# Subtest: http://localhost/test/index.html
    # Subtest: math
        ok 1 - adds
        ok 2 - subtracts
        1..2
    ok 1 - math
    1..1
ok 1 - http://localhost/test/index.html
1..1
`
	assert.Equal(t, expected, stdout)
	assert.Empty(t, stderr)
}

func TestRun_FailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	stdout, stderr, err := executeCommand(t, "run", path, "--color", "never")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "one or more tests failed")

	assert.Contains(t, stdout, "    not ok 2 - breaks\n")
	assert.Contains(t, stdout, "      message: boom\n")

	// The reporter mirrors the stream and appends a summary table.
	assert.Contains(t, stderr, "not ok 2 - breaks")
	assert.Contains(t, stderr, "x-test")
	assert.Contains(t, stderr, reporter.StatusFail)
}

func TestRun_BailExitCode(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bailing.yaml", bailingScenario)

	stdout, _, err := executeCommand(t, "run", path, "--no-reporter")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "bailed out")
	assert.Contains(t, stdout, "# Failed to load http://localhost/test/missing.html\nBail out!\n")
}

func TestRun_NameFlag(t *testing.T) {
	path := writeFile(t, t.TempDir(), "passing.yaml", passingScenario)

	stdout, _, err := executeCommand(t, "run", path, "--no-reporter", "--name", "subtracts")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Subtest: http://localhost/test/index.html?x-test-name=subtracts\n")
	assert.Contains(t, stdout, "        ok 1 - subtracts\n")
	assert.NotContains(t, stdout, "adds")
}

func TestRun_ConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "passing.yaml", passingScenario)
	cfg := writeFile(t, dir, "xtest.yaml", "no_reporter: true\nname: adds\n")

	stdout, stderr, err := executeCommand(t, "run", path, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stdout, "        ok 1 - adds\n")
	assert.NotContains(t, stdout, "subtracts")
	assert.Empty(t, stderr)
}

func TestRun_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "passing.yaml", passingScenario)
	cfg := writeFile(t, dir, "xtest.yaml", "no_reporter: true\nname: adds\n")

	stdout, _, err := executeCommand(t, "run", path, "--config", cfg, "--name", "subtracts")
	require.NoError(t, err)
	assert.Contains(t, stdout, "        ok 1 - subtracts\n")
	assert.NotContains(t, stdout, "adds")
}

func TestRun_CommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "passing.yaml", passingScenario)
	badConfig := writeFile(t, dir, "bad.yaml", "interval: soon\n")

	tests := []struct {
		name string
		args []string
	}{
		{"missing scenario", []string{"run", dir + "/nope.yaml"}},
		{"bad color", []string{"run", path, "--color", "sometimes"}},
		{"invalid config", []string{"run", path, "--config", badConfig}},
		{"missing config", []string{"run", path, "--config", dir + "/nope.yaml"}},
		{"bad name pattern", []string{"run", path, "--name", "("}},
		{"missing coverage file", []string{"run", path, "--coverage-file", dir + "/nope.json"}},
		{"unwritable trace", []string{"run", path, "--trace", dir + "/nope/run.jsonl"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestRun_CoverageFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cov.yaml", `name: cov
url: http://localhost/test/index.html
pages:
  /test/index.html:
    - it: works
    - coverage: ../src/lib.js
      goal: 50
`)
	covFile := writeFile(t, dir, "coverage.json",
		`[{"url": "http://localhost/src/lib.js", "text": "abcdefghij", "ranges": [{"start": 0, "end": 6}]}]`)

	stdout, _, err := executeCommand(t, "run", path, "--no-reporter", "--coverage", "--coverage-file", covFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "ok 2 - 50% coverage goal for http://localhost/src/lib.js (got 60.00%)\n")
}

func TestRun_MetricsAddr(t *testing.T) {
	path := writeFile(t, t.TempDir(), "passing.yaml", passingScenario)

	stdout, _, err := executeCommand(t, "run", path, "--no-reporter", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1..1\n")
}

func TestServeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.RecordBail()

	stop, err := serveMetrics("127.0.0.1:0", reg)
	require.NoError(t, err)
	stop()

	_, err = serveMetrics("not-an-address", reg)
	assert.Error(t, err)
}

func TestRun_JSONReport(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	stdout, stderr, err := executeCommand(t, "run", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "    not ok 2 - breaks\n", "stdout stays a TAP stream")

	var resp struct {
		Status string    `json:"status"`
		Data   RunReport `json:"data"`
		Error  *Failure  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stderr), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestsFailed, resp.Error.Code)
	assert.Equal(t, "failing", resp.Data.Scenario)
	assert.Equal(t, "http://localhost/test/index.html", resp.Data.Href)
	assert.Equal(t, 1, resp.Data.Tests)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.False(t, resp.Data.Bailed)
}

func TestRun_TraceFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "passing.yaml", passingScenario)
	tracePath := filepath.Join(dir, "run.jsonl")

	_, _, err := executeCommand(t, "run", path, "--no-reporter", "--trace", tracePath)
	require.NoError(t, err)

	f, err := os.Open(tracePath)
	require.NoError(t, err)
	defer f.Close()

	var its []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		msg, err := bus.Decode(scanner.Bytes())
		require.NoError(t, err)
		if it, ok := msg.(bus.RegisterIt); ok {
			its = append(its, it.Text)
		}
	}
	assert.Equal(t, []string{"adds", "subtracts"}, its)
}
