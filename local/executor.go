// Package local implements taskrt with a cooperative, single-driver executor.
//
// Local units queue on the executor and only ever run on the goroutine that
// currently drives it. Driving happens inside BlockOn and while awaiting or
// canceling a local task, with the goroutine locked to its OS thread. At most
// one goroutine drives at a time, so local units never run concurrently with
// each other and may share state that is not safe for concurrent use.
//
// Work running under the driver may call BlockOn, Await and Cancel on the
// same executor as long as it passes down the context it received; the
// nested call keeps driving the queue instead of waiting for itself.
//
// Spawn and SpawnBlocking run on their own goroutines. A running task whose
// handle is dropped is canceled.
package local

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/casualjim/taskrt"
)

// DropPolicy is applied to running tasks whose handle becomes unreachable.
const DropPolicy = taskrt.DropCancel

// ErrSelfWait is reported when local work waits for a unit that can only
// finish after that work returns.
var ErrSelfWait = errors.New("local: unit waits for itself")

var _ taskrt.FullExecutor = (*Executor)(nil)

type driverKey struct{}

type Executor struct {
	cfg taskrt.Config

	mu    sync.Mutex
	queue []*unit

	// token is held by the driving goroutine.
	token chan struct{}
	wake  chan struct{}
}

type unit struct {
	ctx  context.Context
	work taskrt.Future
	p    *taskrt.Promise
}

func New(options ...taskrt.Option) (*Executor, error) {
	cfg, err := taskrt.NewConfig("local", options...)
	if err != nil {
		return nil, err
	}
	return &Executor{
		cfg:   cfg,
		token: make(chan struct{}, 1),
		wake:  make(chan struct{}, 1),
	}, nil
}

// Pending reports the number of local units waiting for a driver.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

func (e *Executor) Config() taskrt.Config {
	return e.cfg
}

// BlockOn queues f as local work and drives the executor until f finished.
// A panic in f is re-raised on the caller.
func (e *Executor) BlockOn(ctx context.Context, f taskrt.Future) {
	info := taskrt.NewInfo(e.cfg, taskrt.KindLocal)
	u := e.enqueue(taskrt.WithExecutor(ctx, e), e.cfg.Wrap(info, f), nil)

	if err := e.driveUntil(context.WithoutCancel(ctx), u.p.Done()); err != nil {
		panic(err)
	}
	out, _ := u.p.Settled()
	var pe *taskrt.PanicError
	if errors.As(out.Err, &pe) {
		panic(pe.Value)
	}
}

func (e *Executor) Spawn(f taskrt.Future) taskrt.Task {
	return e.spawnDetached(taskrt.KindAsync, f)
}

func (e *Executor) SpawnBlocking(f taskrt.BlockingFunc) taskrt.Task {
	return e.spawnDetached(taskrt.KindBlocking, taskrt.Blocking(f))
}

// SpawnLocal queues f. It runs the next time the executor is driven.
func (e *Executor) SpawnLocal(f taskrt.LocalFuture) (taskrt.Task, error) {
	info := taskrt.NewInfo(e.cfg, taskrt.KindLocal)
	ctx, cancel := context.WithCancel(taskrt.WithExecutor(e.cfg.Root(), e))
	u := e.enqueue(ctx, e.cfg.Wrap(info, taskrt.Future(f)), cancel)
	e.cfg.Spawned(info)
	return taskrt.NewTask(info, &handle{ex: e, u: u}, DropPolicy, e.cfg), nil
}

func (e *Executor) spawnDetached(kind taskrt.Kind, f taskrt.Future) taskrt.Task {
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

func (e *Executor) enqueue(ctx context.Context, work taskrt.Future, cancel context.CancelFunc) *unit {
	u := &unit{ctx: ctx, work: work, p: taskrt.NewPromise(cancel)}
	e.mu.Lock()
	e.queue = append(e.queue, u)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	return u
}

func (e *Executor) next() (*unit, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return nil, false
	}
	u := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return u, true
}

// runOne runs the next queued unit on the calling goroutine.
func (e *Executor) runOne() bool {
	u, ok := e.next()
	if !ok {
		return false
	}
	u.p.Resolve(taskrt.Execute(context.WithValue(u.ctx, driverKey{}, e), u.work))
	return true
}

func (e *Executor) driving(ctx context.Context) bool {
	d, _ := ctx.Value(driverKey{}).(*Executor)
	return d == e
}

// driveUntil runs queued units until done is closed or ctx ends.
func (e *Executor) driveUntil(ctx context.Context, done <-chan struct{}) error {
	if e.driving(ctx) {
		for {
			select {
			case <-done:
				return nil
			default:
			}
			if !e.runOne() {
				return ErrSelfWait
			}
		}
	}

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case e.token <- struct{}{}:
			err := e.drive(ctx, done)
			<-e.token
			if err != nil {
				return err
			}
		}
	}
}

func (e *Executor) drive(ctx context.Context, done <-chan struct{}) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-done:
			return nil
		default:
		}
		if e.runOne() {
			continue
		}
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-e.wake:
		}
	}
}

// handle is the native side of a local task. Waiting on it drives the executor.
type handle struct {
	ex *Executor
	u  *unit
}

func (h *handle) Join(ctx context.Context) (taskrt.Outcome, error) {
	if err := h.ex.driveUntil(ctx, h.u.p.Done()); err != nil {
		return taskrt.Outcome{}, err
	}
	return h.u.p.Settled()
}

func (h *handle) Done() <-chan struct{} {
	return h.u.p.Done()
}

func (h *handle) Settled() (taskrt.Outcome, error) {
	return h.u.p.Settled()
}

func (h *handle) Abort() {
	h.u.p.Abort()
}
