package progress

import (
	"errors"
	"fmt"
)

var (
	ErrReaderNotFound  = errors.New("reader not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrGradeNotFound   = errors.New("grade not found")
	// ErrDuplicateGrade is returned by CommitGrade when the chunk was
	// already graded in this session attempt; nothing was written.
	ErrDuplicateGrade = errors.New("chunk already graded")
)

// PersistenceError means a rating or history write was lost. Unlike
// collaborator failures it is always returned to the caller.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrReaderNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
