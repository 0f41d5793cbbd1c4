// Package config loads the optional YAML run configuration.
//
// Files are checked against the closed CUE definition in schema.cue before
// they are decoded, so unknown keys and malformed values are rejected with
// the position CUE reports.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/Netflix/x-test/internal/engine"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is a run configuration. Zero durations select the runtime defaults.
type Config struct {
	URL          string        `yaml:"url"`
	NoReporter   bool          `yaml:"no_reporter"`
	Coverage     bool          `yaml:"coverage"`
	Name         string        `yaml:"name"`
	Interval     time.Duration `yaml:"-"`
	CoverageWait time.Duration `yaml:"-"`
	Color        *bool         `yaml:"color"`
}

// file mirrors Config with durations in their textual form.
type file struct {
	URL          string `yaml:"url"`
	NoReporter   bool   `yaml:"no_reporter"`
	Coverage     bool   `yaml:"coverage"`
	Name         string `yaml:"name"`
	Interval     string `yaml:"interval"`
	CoverageWait string `yaml:"coverage_wait"`
	Color        *bool  `yaml:"color"`
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse validates and decodes YAML data.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg := &Config{
		URL:        f.URL,
		NoReporter: f.NoReporter,
		Coverage:   f.Coverage,
		Name:       f.Name,
		Color:      f.Color,
	}
	var err error
	if cfg.Interval, err = duration("interval", f.Interval); err != nil {
		return nil, err
	}
	if cfg.CoverageWait, err = duration("coverage_wait", f.CoverageWait); err != nil {
		return nil, err
	}
	if cfg.Name != "" {
		if _, err := regexp.Compile(cfg.Name); err != nil {
			return nil, fmt.Errorf("%w: name: %v", ErrInvalid, err)
		}
	}
	return cfg, nil
}

func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := def.Unify(ctx.Encode(raw))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, cueerrors.Details(err, nil))
	}
	return nil
}

func duration(field, text string) (time.Duration, error) {
	if text == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalid, field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s: must be positive, got %s", ErrInvalid, field, text)
	}
	return d, nil
}

// EntryURL returns URL with the run flags folded into its query.
func (c *Config) EntryURL() (string, error) {
	if c.URL == "" {
		return "", fmt.Errorf("%w: url is required", ErrInvalid)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("%w: url: %v", ErrInvalid, err)
	}
	query := u.Query()
	if c.NoReporter {
		query.Set(engine.ParamNoReporter, "")
	}
	if c.Coverage {
		query.Set(engine.ParamRunCoverage, "")
	}
	if c.Name != "" {
		query.Set(engine.ParamName, c.Name)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// ColorEnabled resolves the color setting, falling back to def.
func (c *Config) ColorEnabled(def bool) bool {
	if c.Color == nil {
		return def
	}
	return *c.Color
}
