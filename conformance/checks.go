// Package conformance is the acceptance suite every taskrt adapter passes.
//
// Checks are plain functions returning an error so the same suite runs under
// go test (Run) and from the command line (Verify).
package conformance

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/pkg/reflectx"
)

// ErrSkipped is returned by checks that need a capability the executor lacks.
var ErrSkipped = errors.New("conformance: capability not available")

// Check is one acceptance property.
type Check struct {
	Name string
	Run  func(ctx context.Context, ex taskrt.Executor, s Settings) error
}

// Settings tunes the timing of the checks. Scale multiplies every delay;
// durable backends with slow scheduling need a larger scale.
type Settings struct {
	Scale   int
	Timeout time.Duration
}

func (s Settings) d(ms int) time.Duration {
	scale := s.Scale
	if scale <= 0 {
		scale = 1
	}
	return time.Duration(ms*scale) * time.Millisecond
}

// Checks returns the acceptance suite in execution order.
func Checks() []Check {
	return []Check{
		{"spawned units keep their own results", checkNoCrossTalk},
		{"cancel right after spawn yields no result", checkCancelBeforeRun},
		{"cancel after completion returns the result", checkCancelAfterComplete},
		{"detach does not block and the unit completes", checkDetach},
		{"spawn local runs the work or hands it back", checkSpawnLocal},
		{"block on returns after the unit finished", checkBlockOn},
		{"cancel during a sleep discards nothing produced", checkEndToEnd},
		{"spawn blocking runs the closure exactly once", checkSpawnBlocking},
		{"units can find their executor", checkCurrent},
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func checkNoCrossTalk(ctx context.Context, ex taskrt.Executor, s Settings) error {
	const n = 16
	tasks := make([]taskrt.TypedTask[int], n)
	for i := range tasks {
		delay := s.d(rand.IntN(10))
		tasks[i] = taskrt.Spawn(ex, func(ctx context.Context) (int, error) {
			if err := sleep(ctx, delay); err != nil {
				return 0, err
			}
			return i * i, nil
		})
	}

	for i := n - 1; i >= 0; i-- {
		v, err := tasks[i].Await(ctx)
		if err != nil {
			return fmt.Errorf("unit %d: %w", i, err)
		}
		if v != i*i {
			return fmt.Errorf("unit %d: got %d, want %d", i, v, i*i)
		}
	}
	return nil
}

func checkCancelBeforeRun(ctx context.Context, ex taskrt.Executor, s Settings) error {
	var ran atomic.Bool
	task := ex.Spawn(func(ctx context.Context) (any, error) {
		if err := sleep(ctx, s.d(1000)); err != nil {
			return nil, err
		}
		ran.Store(true)
		return "ran", nil
	})

	res, err := task.Cancel(ctx)
	if err != nil {
		return err
	}
	if res != nil {
		return fmt.Errorf("got result %v, want none", res.Value)
	}
	if ran.Load() {
		return errors.New("unit ran to completion")
	}
	if st := task.State(); st != taskrt.StateCanceled {
		return fmt.Errorf("state %s, want canceled", st)
	}
	return nil
}

func checkCancelAfterComplete(ctx context.Context, ex taskrt.Executor, s Settings) error {
	awaited := ex.Spawn(func(context.Context) (any, error) { return "first", nil })
	if _, err := awaited.Await(ctx); err != nil {
		return err
	}
	res, err := awaited.Cancel(ctx)
	if err != nil {
		return err
	}
	if res == nil || res.Value != "first" {
		return fmt.Errorf("awaited unit: got %v, want first", res)
	}

	finished := make(chan struct{})
	unobserved := ex.Spawn(func(context.Context) (any, error) {
		defer close(finished)
		return "second", nil
	})
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := sleep(ctx, s.d(20)); err != nil {
		return err
	}
	res, err = unobserved.Cancel(ctx)
	if err != nil {
		return err
	}
	if res == nil || res.Value != "second" {
		return fmt.Errorf("unobserved unit: got %v, want second", res)
	}
	return nil
}

func checkDetach(ctx context.Context, ex taskrt.Executor, s Settings) error {
	release := make(chan struct{})
	var done atomic.Bool
	task := ex.Spawn(func(context.Context) (any, error) {
		<-release
		done.Store(true)
		return nil, nil
	})

	returned := make(chan struct{})
	go func() {
		task.Detach()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(s.d(100)):
		close(release)
		return errors.New("detach blocked the caller")
	}
	task = nil

	close(release)
	deadline := time.Now().Add(s.d(1000))
	for !done.Load() {
		if time.Now().After(deadline) {
			return errors.New("detached unit did not complete")
		}
		if err := sleep(ctx, time.Millisecond); err != nil {
			return err
		}
	}
	return nil
}

func checkSpawnLocal(ctx context.Context, ex taskrt.Executor, _ Settings) error {
	var calls atomic.Int32
	var work taskrt.LocalFuture = func(context.Context) (any, error) {
		calls.Add(1)
		return "local", nil
	}

	task, err := ex.SpawnLocal(work)
	if err != nil {
		back, ok := taskrt.Unexecuted(err)
		if !ok {
			return fmt.Errorf("rejection without the work: %w", err)
		}
		if !reflectx.SameFunc(back, work) {
			return fmt.Errorf("rejection returned different work: %s", reflectx.FunctionName(back))
		}
		if calls.Load() != 0 {
			return errors.New("rejected work was run")
		}
		v, _ := back(ctx)
		if v != "local" || calls.Load() != 1 {
			return errors.New("returned work does not behave like the original")
		}
		return nil
	}

	v, err := task.Await(ctx)
	if err != nil {
		return err
	}
	if v != "local" {
		return fmt.Errorf("got %v, want local", v)
	}
	if c := calls.Load(); c != 1 {
		return fmt.Errorf("local work ran %d times", c)
	}
	return nil
}

func checkBlockOn(ctx context.Context, ex taskrt.Executor, s Settings) error {
	var counter atomic.Int32
	ex.BlockOn(ctx, func(ctx context.Context) (any, error) {
		if err := sleep(ctx, s.d(10)); err != nil {
			return nil, err
		}
		counter.Add(1)
		return nil, nil
	})
	if c := counter.Load(); c != 1 {
		return fmt.Errorf("counter is %d right after block on", c)
	}
	return nil
}

func checkEndToEnd(ctx context.Context, ex taskrt.Executor, s Settings) error {
	var early atomic.Bool
	slow := ex.Spawn(func(ctx context.Context) (any, error) {
		if err := sleep(ctx, s.d(50)); err != nil {
			return nil, err
		}
		early.Store(true)
		return true, nil
	})
	if err := sleep(ctx, s.d(10)); err != nil {
		return err
	}
	res, err := slow.Cancel(ctx)
	if err != nil {
		return err
	}
	if res != nil || early.Load() {
		return fmt.Errorf("slow unit: got %v (done=%t), want no result", res, early.Load())
	}

	var late atomic.Bool
	eager := ex.Spawn(func(ctx context.Context) (any, error) {
		late.Store(true)
		// the result exists already, a stop only shortens the tail
		_ = sleep(ctx, s.d(50))
		return late.Load(), nil
	})
	if err := sleep(ctx, s.d(40)); err != nil {
		return err
	}
	res, err = eager.Cancel(ctx)
	if err != nil {
		return err
	}
	if res == nil || res.Value != true || !late.Load() {
		return fmt.Errorf("eager unit: got %v (done=%t), want true", res, late.Load())
	}
	return nil
}

func checkSpawnBlocking(ctx context.Context, ex taskrt.Executor, _ Settings) error {
	bex, ok := ex.(taskrt.BlockingExecutor)
	if !ok {
		return ErrSkipped
	}

	var calls atomic.Int32
	release := make(chan struct{})
	task := taskrt.SpawnBlocking(bex, func() (int, error) {
		<-release
		return int(calls.Add(1)), nil
	})
	// SpawnBlocking returned while the closure is still blocked
	close(release)

	v, err := task.Await(ctx)
	if err != nil {
		return err
	}
	if v != 1 || calls.Load() != 1 {
		return fmt.Errorf("closure ran %d times", calls.Load())
	}
	return nil
}

func checkCurrent(ctx context.Context, ex taskrt.Executor, _ Settings) error {
	v, err := taskrt.Spawn(ex, func(ctx context.Context) (bool, error) {
		_, ok := taskrt.Current[taskrt.Spawner](ctx)
		return ok, nil
	}).Await(ctx)
	if err != nil {
		return err
	}
	if !v {
		return errors.New("unit context does not carry its executor")
	}
	return nil
}
