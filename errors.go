package taskrt

import (
	"errors"
	"fmt"
)

var (
	// ErrAborted reports that a unit was stopped without producing a result
	// while its caller expected it to complete.
	ErrAborted = errors.New("taskrt: unit stopped before producing a result")
	// ErrShutdown reports a submission to, or a unit owned by, a runtime that shut down.
	ErrShutdown = errors.New("taskrt: runtime is shut down")
	// ErrExhausted reports that a runtime had no capacity left for a unit.
	ErrExhausted = errors.New("taskrt: runtime capacity exhausted")
	// ErrDetached is returned when a detached task is observed again.
	ErrDetached = errors.New("taskrt: task is detached")
	// ErrCanceled is returned when a canceled task is awaited.
	ErrCanceled = errors.New("taskrt: task is canceled")
	// ErrLocalUnsupported matches every *LocalExecutorError.
	ErrLocalUnsupported = errors.New("taskrt: local spawning is not supported by this executor")
)

// FatalError signals a broken contract: the result of a unit can never be
// produced. Callers must not treat it as a zero value.
type FatalError struct {
	Op     string
	TaskID string
	Err    error
}

func (e *FatalError) Error() string {
	if e.TaskID == "" {
		return fmt.Sprintf("taskrt: fatal: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("taskrt: fatal: %s task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a *FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// PanicError wraps a panic recovered from a unit of work.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("taskrt: panic in unit: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// LocalExecutorError is returned by SpawnLocal when the executor cannot
// confine work to a goroutine. Work is the unit exactly as it was submitted;
// it has not been run.
type LocalExecutorError struct {
	Work LocalFuture
}

func (e *LocalExecutorError) Error() string {
	return ErrLocalUnsupported.Error()
}

func (e *LocalExecutorError) Is(target error) bool {
	return target == ErrLocalUnsupported
}

// RejectLocal builds the capability-gap error for f.
func RejectLocal(f LocalFuture) error {
	return &LocalExecutorError{Work: f}
}

// Unexecuted extracts the work carried back by a *LocalExecutorError.
func Unexecuted(err error) (LocalFuture, bool) {
	var le *LocalExecutorError
	if errors.As(err, &le) {
		return le.Work, true
	}
	return nil, false
}
