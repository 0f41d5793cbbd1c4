package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Netflix/x-test/internal/engine"
)

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
url: http://localhost/test/index.html
coverage: true
name: "^math"
interval: 2s
coverage_wait: 1m30s
color: false
`))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost/test/index.html", cfg.URL)
	assert.True(t, cfg.Coverage)
	assert.False(t, cfg.NoReporter)
	assert.Equal(t, "^math", cfg.Name)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 90*time.Second, cfg.CoverageWait)
	assert.False(t, cfg.ColorEnabled(true))
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Zero(t, cfg.Interval)
	assert.True(t, cfg.ColorEnabled(true))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "unknown key", data: "url: http://localhost/\nretries: 3\n"},
		{name: "wrong type", data: "coverage: yes please\n"},
		{name: "non http url", data: "url: file:///tmp/index.html\n"},
		{name: "bad duration", data: "interval: soon\n"},
		{name: "zero duration", data: "interval: 0s\n"},
		{name: "bad name", data: "name: \"(\"\n"},
		{name: "not yaml", data: "url: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: http://localhost/test/index.html\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/test/index.html", cfg.URL)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfig_EntryURL(t *testing.T) {
	cfg := &Config{
		URL:        "http://localhost/test/index.html?foo=bar",
		NoReporter: true,
		Coverage:   true,
		Name:       "math adds",
	}

	href, err := cfg.EntryURL()
	require.NoError(t, err)

	entry, err := engine.ParseEntry(href)
	require.NoError(t, err)
	assert.True(t, entry.NoReporter)
	assert.True(t, entry.Coverage)
	require.True(t, entry.Filtering())
	assert.Equal(t, "math adds", entry.Name.String())
	assert.Equal(t, "http://localhost/test/index.html?foo=bar&x-test-name=math+adds", entry.Href)

	_, err = (&Config{}).EntryURL()
	assert.ErrorIs(t, err, ErrInvalid)
}
