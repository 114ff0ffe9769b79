package taskrt

import (
	"context"
	"fmt"

	"github.com/casualjim/taskrt/pkg/stdx"
)

// TypedTask is a Task whose result has the static type T.
type TypedTask[T any] struct {
	Task
}

// Await waits for the unit and returns its result as T.
func (t TypedTask[T]) Await(ctx context.Context) (T, error) {
	v, err := t.Task.Await(ctx)
	return cast[T](v, err)
}

// Cancel stops the unit. ok is false when it stopped without a result;
// err carries either the unit's own error or a runtime failure.
func (t TypedTask[T]) Cancel(ctx context.Context) (v T, ok bool, err error) {
	r, err := t.Task.Cancel(ctx)
	if err != nil || r == nil {
		return stdx.Zero[T](), false, err
	}
	v, err = cast[T](r.Value, r.Err)
	return v, true, err
}

func cast[T any](v any, err error) (T, error) {
	if v == nil {
		return stdx.Zero[T](), err
	}
	tv, ok := v.(T)
	if !ok {
		return stdx.Zero[T](), fmt.Errorf("taskrt: result %T is not %T", v, stdx.Zero[T]())
	}
	return tv, err
}

func erase[T any](f func(context.Context) (T, error)) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) {
		return f(ctx)
	}
}

// Spawn submits f on e and returns a typed handle.
func Spawn[T any](e Spawner, f func(context.Context) (T, error)) TypedTask[T] {
	return TypedTask[T]{Task: e.Spawn(erase(f))}
}

// SpawnLocal submits f as local work on e. On a capability gap the returned
// error is a *LocalExecutorError whose Work runs f.
func SpawnLocal[T any](e LocalExecutor, f func(context.Context) (T, error)) (TypedTask[T], error) {
	t, err := e.SpawnLocal(erase(f))
	if err != nil {
		return TypedTask[T]{}, err
	}
	return TypedTask[T]{Task: t}, nil
}

// SpawnBlocking runs f on e's blocking capability.
func SpawnBlocking[T any](e BlockingExecutor, f func() (T, error)) TypedTask[T] {
	return TypedTask[T]{Task: e.SpawnBlocking(func() (any, error) { return f() })}
}

// BlockOn runs f on e, blocks until it finished and returns its result.
func BlockOn[T any](ctx context.Context, e Blocker, f func(context.Context) (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	e.BlockOn(ctx, func(ctx context.Context) (any, error) {
		v, err = f(ctx)
		return v, err
	})
	return v, err
}
