package taskrt

import "context"

type resolved struct {
	out Outcome
	err error
}

func (r resolved) Join(context.Context) (Outcome, error) {
	return r.out, r.err
}

func (resolved) Abort() {}

// Ready returns a task that already holds the result (v, err).
func Ready(cfg Config, kind Kind, v any, err error) Task {
	return NewTask(NewInfo(cfg, kind), resolved{out: Outcome{Value: v, Err: err}}, DropDetach, cfg)
}

// Failed returns a task that resolves with a *FatalError wrapping err.
// Adapters use it when a runtime rejects a submission.
func Failed(cfg Config, kind Kind, op string, err error) Task {
	info := NewInfo(cfg, kind)
	fe := &FatalError{Op: op, TaskID: info.ID, Err: err}
	return NewTask(info, resolved{err: fe}, DropDetach, cfg)
}

// SpawnLocalOr spawns f as local work and falls back to running it with
// BlockOn when e reports the capability gap. The fallback returns an already
// resolved task.
func SpawnLocalOr(ctx context.Context, e Executor, f LocalFuture) (Task, error) {
	t, err := e.SpawnLocal(f)
	if err == nil {
		return t, nil
	}
	work, ok := Unexecuted(err)
	if !ok {
		return nil, err
	}

	cfg := configOf(e)
	info := NewInfo(cfg, KindLocal)
	cfg.Spawned(info)

	var out Outcome
	e.BlockOn(ctx, func(ctx context.Context) (any, error) {
		out = Execute(ctx, Future(work))
		return out.Value, out.Err
	})
	return NewTask(info, resolved{out: out}, DropDetach, cfg), nil
}

func configOf(e any) Config {
	if c, ok := e.(Configured); ok {
		return c.Config()
	}
	return MustConfig("block-on-fallback")
}
