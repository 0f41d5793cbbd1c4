package engine

import "fmt"

// RunError represents an inconsistency detected while processing a message.
//
// Run errors never end a run by themselves: the loop logs them with the
// offending message and keeps going.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// StepID identifies the affected step, if any.
	StepID string

	// TestID identifies the affected test, if any.
	TestID string
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeUnknownStep indicates a step referenced by a message does not exist.
	ErrCodeUnknownStep RunErrorCode = "UNKNOWN_STEP"

	// ErrCodeNotRunning indicates a ready or result message for a step that is
	// not running.
	ErrCodeNotRunning RunErrorCode = "NOT_RUNNING"

	// ErrCodeUnknownTest indicates a message names a test that was never
	// registered.
	ErrCodeUnknownTest RunErrorCode = "UNKNOWN_TEST"

	// ErrCodeUnknownEntity indicates a message names a describe, it or
	// coverage goal that was never registered.
	ErrCodeUnknownEntity RunErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeDuplicateID indicates a registration reuses an id.
	ErrCodeDuplicateID RunErrorCode = "DUPLICATE_ID"

	// ErrCodeEmptyQueue indicates an empty plan under filtering found no
	// subtest header to discard.
	ErrCodeEmptyQueue RunErrorCode = "EMPTY_QUEUE"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s: %s (step=%s)", e.Code, e.Message, e.StepID)
	}
	if e.TestID != "" {
		return fmt.Sprintf("%s: %s (test=%s)", e.Code, e.Message, e.TestID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func unknownTest(testID string) error {
	return &RunError{Code: ErrCodeUnknownTest, Message: "test is not registered", TestID: testID}
}

func unknownEntity(kind, id string) error {
	return &RunError{Code: ErrCodeUnknownEntity, Message: fmt.Sprintf("%s %q is not registered", kind, id)}
}

func duplicateID(kind, id string) error {
	return &RunError{Code: ErrCodeDuplicateID, Message: fmt.Sprintf("%s %q is already registered", kind, id)}
}
