package adaptive

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks a precondition failure: empty text or malformed arguments.
var ErrInvalidInput = errors.New("invalid input")

// CollaboratorError describes a failed call to an external service. The
// orchestrator logs these and substitutes a fallback; they never escape it.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
