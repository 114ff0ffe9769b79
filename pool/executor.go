// Package pool implements taskrt on a fixed set of worker goroutines plus a
// bounded pool for blocking closures.
//
// Spawned units queue for the async workers; submitting never blocks.
// Blocking closures each get a goroutine once a blocking slot is free. When
// no slot frees up within BlockingAcquireTimeout the task resolves with
// ErrExhausted, and after Close every pending unit resolves with ErrShutdown.
// A unit never runs twice and is never skipped without its task saying so.
//
// SpawnLocal always reports the capability gap. A running task whose handle
// is dropped is canceled.
package pool

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/casualjim/taskrt"
	"golang.org/x/sync/semaphore"
)

// DropPolicy is applied to running tasks whose handle becomes unreachable.
const DropPolicy = taskrt.DropCancel

const defaultBlockingThreads = 64

var _ taskrt.FullExecutor = (*Executor)(nil)

// Settings sizes the pools. Zero values pick defaults.
type Settings struct {
	// Workers is the number of async workers, GOMAXPROCS when zero.
	Workers int `mapstructure:"workers"`
	// BlockingThreads bounds concurrently running blocking closures.
	BlockingThreads int `mapstructure:"blocking_threads"`
	// BlockingAcquireTimeout bounds the wait for a blocking slot. Zero waits
	// until the unit is canceled or the pool is closed.
	BlockingAcquireTimeout time.Duration `mapstructure:"blocking_acquire_timeout"`
}

func (s Settings) withDefaults() Settings {
	if s.Workers <= 0 {
		s.Workers = max(runtime.GOMAXPROCS(0), 1)
	}
	if s.BlockingThreads <= 0 {
		s.BlockingThreads = defaultBlockingThreads
	}
	return s
}

type Executor struct {
	cfg      taskrt.Config
	settings Settings

	root context.Context
	stop context.CancelFunc

	jobs     *queue
	blocking *semaphore.Weighted

	mu       sync.RWMutex
	closed   bool
	workers  sync.WaitGroup
	inflight sync.WaitGroup
	once     sync.Once
}

// New starts the async workers.
func New(settings Settings, options ...taskrt.Option) (*Executor, error) {
	cfg, err := taskrt.NewConfig("pool", options...)
	if err != nil {
		return nil, err
	}
	settings = settings.withDefaults()

	root, stop := context.WithCancel(cfg.Root())
	e := &Executor{
		cfg:      cfg,
		settings: settings,
		root:     root,
		stop:     stop,
		jobs:     newQueue(),
		blocking: semaphore.NewWeighted(int64(settings.BlockingThreads)),
	}
	e.workers.Add(settings.Workers)
	for range settings.Workers {
		go e.worker()
	}
	return e, nil
}

// Settings returns the effective pool sizes.
func (e *Executor) Settings() Settings {
	return e.settings
}

// Queued reports how many spawned units wait for a worker.
func (e *Executor) Queued() int {
	return e.jobs.len()
}

func (e *Executor) worker() {
	defer e.workers.Done()
	for {
		j, ok := e.jobs.pop()
		if !ok {
			return
		}
		if !j.claimed.CompareAndSwap(false, true) {
			continue
		}
		e.settle(j.p, taskrt.Execute(j.ctx, j.work))
	}
}

// settle resolves p, turning a stop caused by Close into ErrShutdown.
func (e *Executor) settle(p *taskrt.Promise, out taskrt.Outcome) {
	if out.Aborted && e.root.Err() != nil {
		p.Reject(taskrt.ErrShutdown)
		return
	}
	p.Resolve(out)
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
	info := taskrt.NewInfo(e.cfg, taskrt.KindAsync)
	ctx, cancel := context.WithCancel(taskrt.WithExecutor(e.root, e))
	j := job{ctx: ctx, work: e.cfg.Wrap(info, f), claimed: new(atomic.Bool)}
	// a unit still waiting in the queue settles as soon as it is aborted
	var p *taskrt.Promise
	p = taskrt.NewPromise(func() {
		cancel()
		if j.claimed.CompareAndSwap(false, true) {
			p.Resolve(taskrt.Outcome{Aborted: true})
		}
	})
	j.p = p

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		p.Abort()
		return taskrt.Failed(e.cfg, taskrt.KindAsync, "spawn", taskrt.ErrShutdown)
	}
	e.cfg.Spawned(info)
	// the queue only closes under the write lock, after closed is set
	e.jobs.push(j)
	return taskrt.NewTask(info, p, DropPolicy, e.cfg)
}

// SpawnLocal never accepts work; the error carries f back unexecuted.
func (e *Executor) SpawnLocal(f taskrt.LocalFuture) (taskrt.Task, error) {
	return nil, taskrt.RejectLocal(f)
}

func (e *Executor) SpawnBlocking(f taskrt.BlockingFunc) taskrt.Task {
	info := taskrt.NewInfo(e.cfg, taskrt.KindBlocking)
	ctx, cancel := context.WithCancel(taskrt.WithExecutor(e.root, e))
	p := taskrt.NewPromise(cancel)
	work := e.cfg.Wrap(info, taskrt.Blocking(f))

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		p.Abort()
		return taskrt.Failed(e.cfg, taskrt.KindBlocking, "spawn blocking", taskrt.ErrShutdown)
	}

	e.cfg.Spawned(info)
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		if err := e.acquire(ctx); err != nil {
			if errors.Is(err, context.Canceled) && e.root.Err() == nil {
				p.Resolve(taskrt.Outcome{Aborted: true})
				return
			}
			p.Reject(err)
			return
		}
		defer e.blocking.Release(1)
		e.settle(p, taskrt.Execute(ctx, work))
	}()
	return taskrt.NewTask(info, p, DropPolicy, e.cfg)
}

// acquire waits for a blocking slot and classifies why it could not get one.
func (e *Executor) acquire(ctx context.Context) error {
	actx := ctx
	if e.settings.BlockingAcquireTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, e.settings.BlockingAcquireTimeout)
		defer cancel()
	}
	err := e.blocking.Acquire(actx, 1)
	switch {
	case err == nil:
		return nil
	case e.root.Err() != nil:
		return taskrt.ErrShutdown
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return taskrt.ErrExhausted
	}
}

// Close stops accepting work and cancels running units. It waits for the
// workers and for blocking closures already running. Units that never
// started resolve with ErrShutdown.
func (e *Executor) Close() error {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()

		e.stop()
		for _, j := range e.jobs.close() {
			if j.claimed.CompareAndSwap(false, true) {
				j.p.Reject(taskrt.ErrShutdown)
			}
		}
		e.workers.Wait()
		e.inflight.Wait()
	})
	return nil
}
