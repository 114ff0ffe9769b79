/*
Package taskrt defines a small contract for spawning, blocking on and
canceling units of work without depending on the concrete runtime that runs
them.

Capabilities are separate interfaces so that a backend only exposes what it
can do:

  - Blocker: BlockOn runs a unit and returns once it has finished
  - Spawner: Spawn schedules a thread-safe unit and returns a Task
  - LocalExecutor: SpawnLocal schedules goroutine-confined work, or hands the
    work back in a *LocalExecutorError when the backend has no such concept
  - BlockingExecutor: SpawnBlocking moves a synchronous closure off the caller
  - Executor and FullExecutor compose them

# Tasks

Every spawn returns a Task. A Task moves from running to exactly one of
completed, canceled or detached:

	t := ex.Spawn(func(ctx context.Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return "done", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	res, err := t.Cancel(ctx)
	if err != nil {
		// the runtime failed, see FatalError
	}
	if res == nil {
		// stopped before producing a result
	}

A unit stops early by returning its context's error after that context was
canceled. Cancel prefers any result that exists: a unit that finished before
the stop took effect yields its result.

Go has no destructors, so each adapter fixes a DropPolicy that is applied when
a running Task becomes unreachable.

# Adapters

The goroutine, pool, local and temporal packages implement the contract on
top of plain goroutines, a bounded worker pool, a single-driver cooperative
loop and Temporal workflows. The conformance package holds the acceptance
suite every adapter passes.
*/
package taskrt
