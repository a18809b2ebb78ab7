package domain

import (
	"errors"
	"fmt"
)

// Domain error types
var (
	// ErrUnknownEventType indicates a trigger was requested for an event type
	// with no registered constructor
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrTriggerClosed indicates an operation on a closed trigger
	ErrTriggerClosed = errors.New("trigger is closed")
)

// StateMismatchError indicates a state handoff between triggers of different
// identity. Handoff assumes the same name and event type; anything else is a
// caller contract violation.
type StateMismatchError struct {
	Expected string
	Got      string
}

func (e StateMismatchError) Error() string {
	return fmt.Sprintf("trigger state handoff mismatch: expected %s, got %s", e.Expected, e.Got)
}

// IsStateMismatch checks if err is or wraps a StateMismatchError
func IsStateMismatch(err error) bool {
	var mismatch StateMismatchError
	return errors.As(err, &mismatch)
}
