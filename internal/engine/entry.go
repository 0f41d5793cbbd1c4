package engine

import (
	"fmt"
	"net/url"
	"regexp"
)

// Query parameters honored on the entry href.
const (
	ParamNoReporter  = "x-test-no-reporter"
	ParamRunCoverage = "x-test-run-coverage"
	ParamName        = "x-test-name"
)

// Entry is the parsed entry href of a run.
type Entry struct {
	// Href is the entry page with the reporter and coverage flags removed.
	// The name filter stays so nested pages see the same href the user gave.
	Href string

	// NoReporter suppresses the visual reporter.
	NoReporter bool

	// Coverage enables coverage collection.
	Coverage bool

	// Name filters its by their composed describe and it text. Nil disables
	// filtering.
	Name *regexp.Regexp
}

// Filtering reports whether a name filter is active.
func (e Entry) Filtering() bool {
	return e.Name != nil
}

// ParseEntry reads the run flags from href. Flags are presence based: any
// value, including none, turns them on.
func ParseEntry(href string) (Entry, error) {
	u, err := url.Parse(href)
	if err != nil {
		return Entry{}, fmt.Errorf("parse entry href: %w", err)
	}
	query := u.Query()

	entry := Entry{
		NoReporter: query.Has(ParamNoReporter),
		Coverage:   query.Has(ParamRunCoverage),
	}
	if pattern := query.Get(ParamName); pattern != "" {
		entry.Name, err = regexp.Compile(pattern)
		if err != nil {
			return Entry{}, fmt.Errorf("compile %s: %w", ParamName, err)
		}
	}

	query.Del(ParamNoReporter)
	query.Del(ParamRunCoverage)
	u.RawQuery = query.Encode()
	entry.Href = u.String()
	return entry, nil
}
