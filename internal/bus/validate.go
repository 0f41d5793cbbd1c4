package bus

import (
	"errors"
	"fmt"
)

// ValidationError reports a message rejected at the bus boundary.
type ValidationError struct {
	Type    Type
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s message: %s: %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s message: %s", e.Type, e.Message)
}

// IsValidationError reports whether err is, or wraps, a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(t Type, field, format string, args ...any) error {
	return &ValidationError{Type: t, Field: field, Message: fmt.Sprintf(format, args...)}
}

func required(t Type, field, value string) error {
	if value == "" {
		return invalid(t, field, "required")
	}
	return nil
}

func validateParents(t Type, parents []Ref) error {
	if len(parents) == 0 {
		return invalid(t, "parents", "required")
	}
	if parents[0].Kind != RefTest {
		return invalid(t, "parents", "first parent must be a test, got %q", parents[0].Kind)
	}
	for i, p := range parents {
		if p.ID == "" {
			return invalid(t, fmt.Sprintf("parents[%d].id", i), "required")
		}
		if i > 0 && p.Kind != RefDescribe {
			return invalid(t, fmt.Sprintf("parents[%d].type", i), "must be a describe, got %q", p.Kind)
		}
	}
	return nil
}

func (m RegisterTest) Validate() error {
	if err := required(m.Type(), "testId", m.TestID); err != nil {
		return err
	}
	return required(m.Type(), "href", m.Href)
}

func (m RegisterDescribeStart) Validate() error {
	if err := required(m.Type(), "describeId", m.DescribeID); err != nil {
		return err
	}
	if !m.Directive.Valid() {
		return invalid(m.Type(), "directive", "unknown directive %q", m.Directive)
	}
	return validateParents(m.Type(), m.Parents)
}

func (m RegisterDescribeEnd) Validate() error {
	return required(m.Type(), "describeId", m.DescribeID)
}

func (m RegisterIt) Validate() error {
	if err := required(m.Type(), "itId", m.ItID); err != nil {
		return err
	}
	if !m.Directive.Valid() {
		return invalid(m.Type(), "directive", "unknown directive %q", m.Directive)
	}
	if m.Interval < 0 {
		return invalid(m.Type(), "interval", "must not be negative, got %d", m.Interval)
	}
	return validateParents(m.Type(), m.Parents)
}

func (m RegisterCoverage) Validate() error {
	if err := required(m.Type(), "coverageId", m.CoverageID); err != nil {
		return err
	}
	if err := required(m.Type(), "href", m.Href); err != nil {
		return err
	}
	if m.Goal < 0 || m.Goal > 100 {
		return invalid(m.Type(), "goal", "unexpected goal percentage %v", m.Goal)
	}
	return nil
}

func (m SuiteReady) Validate() error {
	return required(m.Type(), "testId", m.TestID)
}

func (m SuiteResult) Validate() error {
	return required(m.Type(), "itId", m.ItID)
}

func (m SuiteBail) Validate() error { return nil }

func (m RootRun) Validate() error {
	if err := required(m.Type(), "itId", m.ItID); err != nil {
		return err
	}
	if !m.Directive.Valid() {
		return invalid(m.Type(), "directive", "unknown directive %q", m.Directive)
	}
	return nil
}

func (RootCoverageRequest) Validate() error  { return nil }
func (RootPong) Validate() error             { return nil }
func (RootEnd) Validate() error              { return nil }
func (ClientPing) Validate() error           { return nil }
func (ClientCoverageResult) Validate() error { return nil }
