package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ValidFiles(t *testing.T) {
	dir := t.TempDir()
	scenario := writeFile(t, dir, "passing.yaml", passingScenario)
	cfg := writeFile(t, dir, "xtest.yaml", "url: http://localhost/test/index.html\ninterval: 5s\n")

	stdout, _, err := executeCommand(t, "validate", scenario, "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ 2 file(s) valid")
}

func TestValidate_Errors(t *testing.T) {
	dir := t.TempDir()
	broken := writeFile(t, dir, "broken.yaml", "name: broken\n")
	cfg := writeFile(t, dir, "xtest.yaml", "interval: soon\n")

	stdout, _, err := executeCommand(t, "validate", broken, "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Validation failed")
	assert.Contains(t, stdout, ErrCodeInvalidScenario)
	assert.Contains(t, stdout, ErrCodeInvalidConfig)
}

func TestValidate_MissingFile(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", t.TempDir()+"/nope.yaml", "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *Failure         `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, ErrCodeNotFound, resp.Data.Errors[0].Code)
}

func TestValidate_NothingToValidate(t *testing.T) {
	_, _, err := executeCommand(t, "validate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
