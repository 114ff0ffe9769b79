// Package goroutine implements taskrt on plain goroutines.
//
// Every spawned unit gets its own goroutine. BlockOn runs the unit on the
// calling goroutine. Goroutines are not pinned to threads, so SpawnLocal
// always reports the capability gap. A running task whose handle is dropped
// is detached.
package goroutine

import (
	"context"

	"github.com/casualjim/taskrt"
)

// DropPolicy is applied to running tasks whose handle becomes unreachable.
const DropPolicy = taskrt.DropDetach

var _ taskrt.FullExecutor = (*Executor)(nil)

type Executor struct {
	cfg taskrt.Config
}

// New creates an executor. Units derive their context from the configured
// root context, so canceling it stops every unit still running.
func New(options ...taskrt.Option) (*Executor, error) {
	cfg, err := taskrt.NewConfig("goroutine", options...)
	if err != nil {
		return nil, err
	}
	return &Executor{cfg: cfg}, nil
}

func (e *Executor) Config() taskrt.Config {
	return e.cfg
}

// BlockOn runs f on the calling goroutine. Panics in f propagate to the caller.
func (e *Executor) BlockOn(ctx context.Context, f taskrt.Future) {
	info := taskrt.NewInfo(e.cfg, taskrt.KindAsync)
	_, _ = e.cfg.Wrap(info, f)(taskrt.WithExecutor(ctx, e))
}

func (e *Executor) Spawn(f taskrt.Future) taskrt.Task {
	return e.spawn(taskrt.KindAsync, f)
}

// SpawnLocal never accepts work; the error carries f back unexecuted.
func (e *Executor) SpawnLocal(f taskrt.LocalFuture) (taskrt.Task, error) {
	return nil, taskrt.RejectLocal(f)
}

func (e *Executor) SpawnBlocking(f taskrt.BlockingFunc) taskrt.Task {
	return e.spawn(taskrt.KindBlocking, taskrt.Blocking(f))
}

func (e *Executor) spawn(kind taskrt.Kind, f taskrt.Future) taskrt.Task {
	info := taskrt.NewInfo(e.cfg, kind)
	ctx, cancel := context.WithCancel(taskrt.WithExecutor(e.cfg.Root(), e))
	p := taskrt.NewPromise(cancel)
	work := e.cfg.Wrap(info, f)

	e.cfg.Spawned(info)
	go func() {
		defer cancel()
		p.Resolve(taskrt.Execute(ctx, work))
	}()
	return taskrt.NewTask(info, p, DropPolicy, e.cfg)
}
