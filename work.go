package taskrt

import (
	"context"
	"errors"
	"runtime/debug"
)

// Future is a unit of asynchronous work that is safe to move across goroutines.
//
// A unit stops early by returning an error that wraps the error of its
// context once that context is done. Any other return is the unit's result,
// including a non-nil error of its own.
type Future func(ctx context.Context) (any, error)

// LocalFuture is a unit of work confined to the goroutine that drives the
// executor it was spawned on. It may close over state that is not safe for
// concurrent use.
type LocalFuture func(ctx context.Context) (any, error)

// BlockingFunc is a synchronous closure that is allowed to block its goroutine.
type BlockingFunc func() (any, error)

// Kind identifies the spawn operation that produced a task.
type Kind uint8

const (
	KindAsync Kind = iota
	KindLocal
	KindBlocking
)

func (k Kind) String() string {
	switch k {
	case KindAsync:
		return "async"
	case KindLocal:
		return "local"
	case KindBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// Info identifies one spawned unit of work.
type Info struct {
	ID       string
	Kind     Kind
	Executor string
}

// Result is the outcome a unit of work produced.
type Result struct {
	Value any
	Err   error
}

// Outcome is what a runtime reports once a unit has stopped.
//
// Aborted is set when the unit stopped without producing a result: it was
// stopped before it started, or it returned its context's error after that
// context was canceled.
type Outcome struct {
	Value   any
	Err     error
	Aborted bool
}

// Execute runs f under ctx and classifies how it stopped.
// Panics are recovered and reported as a *PanicError in Outcome.Err.
func Execute(ctx context.Context, f Future) (out Outcome) {
	if ctx.Err() != nil {
		return Outcome{Aborted: true}
	}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Err: &PanicError{Value: r, Stack: debug.Stack()}}
		}
	}()

	v, err := f(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
			return Outcome{Aborted: true}
		}
	}
	return Outcome{Value: v, Err: err}
}

// Blocking adapts a blocking closure to a Future. Once started the closure
// always runs to completion, so its return is always a result.
func Blocking(f BlockingFunc) Future {
	return func(context.Context) (any, error) {
		return f()
	}
}
