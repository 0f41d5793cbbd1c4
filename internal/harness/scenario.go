package harness

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Netflix/x-test/internal/coverage"
)

// Scenario is a complete run: the entry url, every page it may open and the
// coverage data automation will hand back.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description"`

	// URL is the entry href, query parameters included.
	URL string `yaml:"url"`

	// Interval is the default it timeout. Zero selects the runtime default.
	Interval Duration `yaml:"interval,omitempty"`

	// CoverageWait bounds how long the run waits for coverage data.
	CoverageWait Duration `yaml:"coverage_wait,omitempty"`

	// Pages maps a url path to the nodes its setup registers.
	Pages map[string][]Node `yaml:"pages"`

	// Coverage is delivered when the run requests coverage. A nil list means
	// automation never answers.
	Coverage []coverage.Entry `yaml:"coverage,omitempty"`

	// Assertions are checked against the finished run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Directive names accepted on describe and it nodes.
const (
	DirectiveSkip = "skip"
	DirectiveTodo = "todo"
	DirectiveOnly = "only"
)

// Node registers one thing on a page. Exactly one of Describe, It, Test,
// Coverage, WaitFor and Error is set.
type Node struct {
	Describe string    `yaml:"describe,omitempty"`
	It       string    `yaml:"it,omitempty"`
	Test     string    `yaml:"test,omitempty"`
	Coverage string    `yaml:"coverage,omitempty"`
	WaitFor  *Duration `yaml:"wait_for,omitempty"`
	Error    string    `yaml:"error,omitempty"`

	// Directive is skip, todo or only.
	Directive string `yaml:"directive,omitempty"`

	// Children of a describe or a wait_for.
	Children []Node `yaml:"children,omitempty"`

	// Fail makes an it return an error with this message. On a wait_for it
	// makes the wait fail.
	Fail string `yaml:"fail,omitempty"`

	// Panic makes an it panic with this value.
	Panic string `yaml:"panic,omitempty"`

	// Sleep delays an it body. The body honors cancellation.
	Sleep Duration `yaml:"sleep,omitempty"`

	// Timeout overrides the it timeout.
	Timeout Duration `yaml:"timeout,omitempty"`

	// Goal is the coverage percentage for a coverage node.
	Goal float64 `yaml:"goal,omitempty"`
}

// Duration is a time.Duration written as "50ms" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var text string
	if err := value.Decode(&text); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", value.Line, err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// PagePaths returns the page paths in sorted order.
func (s *Scenario) PagePaths() []string {
	paths := make([]string, 0, len(s.Pages))
	for path := range s.Pages {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if !u.IsAbs() {
		return fmt.Errorf("url must be absolute, got %q", s.URL)
	}
	if len(s.Pages) == 0 {
		return errors.New("pages map is required and must be non-empty")
	}
	if s.Interval < 0 || s.CoverageWait < 0 {
		return errors.New("durations must not be negative")
	}

	for _, path := range s.PagePaths() {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("pages[%s]: path must start with /", path)
		}
		for i, node := range s.Pages[path] {
			if err := validateNode(fmt.Sprintf("pages[%s][%d]", path, i), node, true); err != nil {
				return err
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(where string, n Node, topLevel bool) error {
	kinds := 0
	for _, set := range []bool{n.Describe != "", n.It != "", n.Test != "", n.Coverage != "", n.WaitFor != nil, n.Error != ""} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return fmt.Errorf("%s: exactly one of describe, it, test, coverage, wait_for or error is required", where)
	}

	switch n.Directive {
	case "", DirectiveSkip, DirectiveTodo, DirectiveOnly:
	default:
		return fmt.Errorf("%s: unknown directive %q", where, n.Directive)
	}
	if n.Directive != "" && n.Describe == "" && n.It == "" {
		return fmt.Errorf("%s: directive is only valid on describe and it", where)
	}

	switch {
	case n.Describe != "":
		for i, child := range n.Children {
			if err := validateNode(fmt.Sprintf("%s.children[%d]", where, i), child, false); err != nil {
				return err
			}
		}
	case n.It != "":
		if len(n.Children) > 0 {
			return fmt.Errorf("%s: it cannot have children", where)
		}
		if n.Sleep < 0 || n.Timeout < 0 {
			return fmt.Errorf("%s: durations must not be negative", where)
		}
	case n.Coverage != "":
		if n.Goal < 0 || n.Goal > 100 {
			return fmt.Errorf("%s: goal must be between 0 and 100, got %v", where, n.Goal)
		}
	case n.WaitFor != nil:
		if !topLevel {
			return fmt.Errorf("%s: wait_for is only valid at the top of a page", where)
		}
		for i, child := range n.Children {
			if err := validateNode(fmt.Sprintf("%s.children[%d]", where, i), child, false); err != nil {
				return err
			}
		}
	case n.Error != "":
		if !topLevel {
			return fmt.Errorf("%s: error is only valid at the top of a page", where)
		}
	}
	return nil
}
