package suite

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Netflix/x-test/internal/bus"
)

// MisuseError reports an invalid registration call. It is raised as a panic
// at the call site; the enclosing protected region turns it into a bail.
type MisuseError struct {
	Op      string
	Message string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func misuse(op, format string, args ...any) {
	panic(&MisuseError{Op: op, Message: fmt.Sprintf(format, args...)})
}

// TimeoutError is the synthetic failure substituted for an abandoned body.
type TimeoutError struct {
	Interval time.Duration
}

var printer = message.NewPrinter(language.English)

func (e *TimeoutError) Error() string {
	return printer.Sprintf("timeout after %dms", e.Interval.Milliseconds())
}

// PanicError wraps a value recovered from user code.
type PanicError struct {
	Value any
	stack string
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

// Unwrap exposes a recovered error value.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Stack returns the panic message followed by the goroutine trace.
func (e *PanicError) Stack() string {
	return "panic: " + e.Error() + "\n\n" + e.stack
}

type stackTracer interface {
	Stack() string
}

// protect runs fn and converts a panic into a *PanicError.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, stack: string(debug.Stack())}
		}
	}()
	return fn()
}

// NormalizeError reduces any failure value to a message and optional stack.
// Errors keep their message; values that are not errors are formatted with
// fmt. A stack is attached when some error in the chain provides one.
func NormalizeError(v any) *bus.Error {
	switch value := v.(type) {
	case nil:
		return nil
	case *bus.Error:
		return value
	case error:
		out := &bus.Error{Message: value.Error()}
		var st stackTracer
		if errors.As(value, &st) {
			out.Stack = st.Stack()
		}
		return out
	default:
		return &bus.Error{Message: fmt.Sprint(value)}
	}
}
