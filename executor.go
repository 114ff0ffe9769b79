package taskrt

import "context"

// Blocker blocks the calling goroutine until a unit of work has finished.
type Blocker interface {
	// BlockOn runs f to completion and returns only once it has finished.
	// The result of f is observed through whatever f closes over.
	// Calling BlockOn from inside a unit driven by the same executor is only
	// allowed when the adapter documents it.
	BlockOn(ctx context.Context, f Future)
}

// Spawner submits thread-safe asynchronous work.
type Spawner interface {
	// Spawn schedules f and returns its handle immediately. f may not have
	// started yet when Spawn returns.
	Spawn(f Future) Task
}

// LocalExecutor submits work that must stay on the goroutine driving the executor.
type LocalExecutor interface {
	// SpawnLocal either schedules f and returns its handle, or returns a
	// *LocalExecutorError carrying f back unexecuted. An adapter always
	// makes the same choice.
	SpawnLocal(f LocalFuture) (Task, error)
}

// Executor is the asynchronous capability set.
type Executor interface {
	Blocker
	Spawner
	LocalExecutor
}

// BlockingExecutor runs synchronous closures where blocking is acceptable.
type BlockingExecutor interface {
	// SpawnBlocking moves f off the calling goroutine. The returned task
	// never waits forever: a runtime that cannot run f resolves the task
	// with a *FatalError instead.
	SpawnBlocking(f BlockingFunc) Task
}

// FullExecutor has both the asynchronous and the blocking capability.
type FullExecutor interface {
	Executor
	BlockingExecutor
}

// Capabilities lists which capability interfaces a value implements.
type Capabilities struct {
	BlockOn       bool
	Spawn         bool
	SpawnLocal    bool
	SpawnBlocking bool
}

// Full reports whether every capability is present.
func (c Capabilities) Full() bool {
	return c.BlockOn && c.Spawn && c.SpawnLocal && c.SpawnBlocking
}

// Describe inspects e for the capability interfaces it implements.
// SpawnLocal only reports the presence of the method; whether the adapter
// accepts local work is discovered by calling it.
func Describe(e any) Capabilities {
	_, b := e.(Blocker)
	_, s := e.(Spawner)
	_, l := e.(LocalExecutor)
	_, bl := e.(BlockingExecutor)
	return Capabilities{BlockOn: b, Spawn: s, SpawnLocal: l, SpawnBlocking: bl}
}

type currentKey struct{}

// WithExecutor attaches e to ctx so that work running under ctx can find the
// executor that runs it.
func WithExecutor(ctx context.Context, e any) context.Context {
	return context.WithValue(ctx, currentKey{}, e)
}

// Current returns the executor attached to ctx, if it has the capability E.
func Current[E any](ctx context.Context) (E, bool) {
	e, ok := ctx.Value(currentKey{}).(E)
	return e, ok
}
