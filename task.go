package taskrt

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/casualjim/taskrt/pkg/uuidx"
)

// Task is the unique handle to one spawned unit of work.
//
// A Task is owned by whoever received it from a spawn operation and must not
// be used by more than one owner at a time. Awaiting with a context that ends
// early leaves the task running; every other return moves it to a terminal
// state.
type Task interface {
	ID() string
	State() State

	// Await waits for the unit and yields its result. A unit that was stopped
	// by anything other than Cancel resolves with a *FatalError.
	Await(ctx context.Context) (any, error)

	// Detach gives up every right to observe or cancel the unit. The unit
	// keeps running and its result is discarded.
	Detach()

	// Cancel requests the unit to stop and waits until it has. The result is
	// nil when the unit stopped without producing one, and the produced
	// result otherwise: a result that exists is never discarded.
	Cancel(ctx context.Context) (*Result, error)
}

// State is the lifecycle state of a Task.
type State uint32

const (
	StateRunning State = iota
	StateCompleted
	StateCanceled
	StateDetached
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCanceled:
		return "canceled"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// DropPolicy decides what happens to a unit whose handle becomes unreachable
// while it is still running.
type DropPolicy uint8

const (
	// DropDetach lets the unit run to completion unattended.
	DropDetach DropPolicy = iota
	// DropCancel requests the unit to stop.
	DropCancel
)

func (p DropPolicy) String() string {
	if p == DropCancel {
		return "cancel"
	}
	return "detach"
}

// Native is the runtime side of one spawned unit, as seen by NewTask.
type Native interface {
	// Join waits until the unit stopped. It returns the context's error when
	// ctx ends first; any other error is a runtime failure.
	Join(ctx context.Context) (Outcome, error)
	// Abort requests the unit to stop. It never blocks and may be called more than once.
	Abort()
}

// settler is implemented by natives that can tell, without waiting, whether
// the unit already stopped.
type settler interface {
	Done() <-chan struct{}
	Settled() (Outcome, error)
}

// NewInfo allocates the identity of a new unit.
func NewInfo(cfg Config, kind Kind) Info {
	return Info{ID: uuidx.NewString(), Kind: kind, Executor: cfg.name}
}

// NewTask wraps a runtime handle into a Task. The policy applies when the
// returned Task becomes unreachable before reaching a terminal state.
func NewTask(info Info, native Native, policy DropPolicy, cfg Config) Task {
	core := &taskCore{info: info, native: native, cfg: cfg}
	h := &handle{core: core}
	runtime.AddCleanup(h, func(c *taskCore) { c.drop(policy) }, core)
	return h
}

type handle struct {
	core *taskCore
}

func (h *handle) ID() string {
	return h.core.info.ID
}

func (h *handle) State() State {
	return h.core.currentState()
}

func (h *handle) Await(ctx context.Context) (any, error) {
	v, err := h.core.await(ctx)
	runtime.KeepAlive(h)
	return v, err
}

func (h *handle) Detach() {
	h.core.detach()
	runtime.KeepAlive(h)
}

func (h *handle) Cancel(ctx context.Context) (*Result, error) {
	r, err := h.core.cancel(ctx)
	runtime.KeepAlive(h)
	return r, err
}

type taskCore struct {
	info   Info
	native Native
	cfg    Config

	mu       sync.Mutex
	state    State
	result   Result
	fatal    error
	aborting bool
}

func (t *taskCore) currentState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// settled returns the cached answer for a task that already left StateRunning.
func (t *taskCore) settled() (Result, bool) {
	switch t.state {
	case StateCompleted:
		if t.fatal != nil {
			return Result{Err: t.fatal}, true
		}
		return t.result, true
	case StateCanceled:
		return Result{Err: ErrCanceled}, true
	case StateDetached:
		return Result{Err: ErrDetached}, true
	default:
		return Result{}, false
	}
}

func (t *taskCore) await(ctx context.Context) (any, error) {
	t.mu.Lock()
	if r, ok := t.settled(); ok {
		t.mu.Unlock()
		return r.Value, r.Err
	}
	t.mu.Unlock()

	out, err := t.native.Join(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
			return nil, err
		}
		return nil, t.fail("await", err)
	}
	if out.Aborted {
		t.mu.Lock()
		aborting := t.aborting
		t.mu.Unlock()
		if aborting {
			t.transition(StateCanceled)
			return nil, ErrCanceled
		}
		return nil, t.fail("await", ErrAborted)
	}
	if pe, ok := out.Err.(*PanicError); ok {
		return nil, t.fail("await", pe)
	}
	r := t.complete(out)
	return r.Value, r.Err
}

func (t *taskCore) cancel(ctx context.Context) (*Result, error) {
	t.mu.Lock()
	switch t.state {
	case StateCompleted:
		defer t.mu.Unlock()
		if t.fatal != nil {
			return nil, t.fatal
		}
		r := t.result
		return &r, nil
	case StateCanceled:
		t.mu.Unlock()
		return nil, nil
	case StateDetached:
		t.mu.Unlock()
		return nil, ErrDetached
	}
	t.aborting = true
	t.mu.Unlock()

	t.native.Abort()
	out, err := t.native.Join(ctx)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil && errors.Is(err, cerr) {
			return nil, err
		}
		// a unit the runtime refused to start never had a result to keep
		if errors.Is(err, ErrShutdown) || errors.Is(err, ErrExhausted) {
			t.transition(StateCanceled)
			return nil, nil
		}
		return nil, t.fail("cancel", err)
	}
	if out.Aborted {
		t.transition(StateCanceled)
		return nil, nil
	}
	if pe, ok := out.Err.(*PanicError); ok {
		return nil, t.fail("cancel", pe)
	}
	r := t.complete(out)
	return &r, nil
}

func (t *taskCore) detach() {
	t.transition(StateDetached)
}

func (t *taskCore) drop(policy DropPolicy) {
	if t.currentState() != StateRunning {
		return
	}
	if s, ok := t.native.(settler); ok {
		select {
		case <-s.Done():
			t.dropSettled(s.Settled())
			return
		default:
		}
	}
	if policy == DropCancel {
		t.native.Abort()
		t.transition(StateCanceled)
		return
	}
	t.transition(StateDetached)
}

// dropSettled records how a unit that stopped before its handle was dropped ended.
func (t *taskCore) dropSettled(out Outcome, err error) {
	if err != nil {
		t.fail("drop", err)
		return
	}
	if out.Aborted {
		t.fail("drop", ErrAborted)
		return
	}
	if pe, ok := out.Err.(*PanicError); ok {
		t.fail("drop", pe)
		return
	}
	t.complete(out)
}

func (t *taskCore) complete(out Outcome) Result {
	t.mu.Lock()
	if t.state != StateRunning {
		r, _ := t.settled()
		t.mu.Unlock()
		return r
	}
	t.state = StateCompleted
	t.result = Result{Value: out.Value, Err: out.Err}
	r := t.result
	t.mu.Unlock()

	t.cfg.transitioned(t.info, StateCompleted, nil)
	return r
}

func (t *taskCore) fail(op string, err error) error {
	t.mu.Lock()
	if t.state != StateRunning {
		r, _ := t.settled()
		t.mu.Unlock()
		return r.Err
	}
	var fe *FatalError
	if !errors.As(err, &fe) {
		fe = &FatalError{Op: op, TaskID: t.info.ID, Err: err}
	}
	t.state = StateCompleted
	t.fatal = fe
	t.mu.Unlock()

	t.cfg.transitioned(t.info, StateCompleted, fe)
	return fe
}

func (t *taskCore) transition(to State) bool {
	t.mu.Lock()
	if t.state != StateRunning {
		t.mu.Unlock()
		return false
	}
	t.state = to
	t.mu.Unlock()

	t.cfg.transitioned(t.info, to, nil)
	return true
}
