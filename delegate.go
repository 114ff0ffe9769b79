package taskrt

import (
	"context"
	"sync"
	"sync/atomic"
)

// Holder is anything that hands out an inner value, such as a shared or
// reference-counted container of an executor.
type Holder[E any] interface {
	Inner() E
}

// DelegateExecutor makes h behave like the Executor it holds.
func DelegateExecutor[E Executor](h Holder[E]) Executor {
	return executorDelegate[E]{h: h}
}

// DelegateBlocking makes h behave like the BlockingExecutor it holds.
func DelegateBlocking[E BlockingExecutor](h Holder[E]) BlockingExecutor {
	return blockingDelegate[E]{h: h}
}

// DelegateFull makes h behave like the FullExecutor it holds.
func DelegateFull[E FullExecutor](h Holder[E]) FullExecutor {
	return fullDelegate[E]{executorDelegate: executorDelegate[E]{h: h}, blockingDelegate: blockingDelegate[E]{h: h}}
}

type executorDelegate[E Executor] struct {
	h Holder[E]
}

// Config is the configuration of the held executor, when it exposes one.
func (d executorDelegate[E]) Config() Config {
	return configOf(d.h.Inner())
}

func (d executorDelegate[E]) BlockOn(ctx context.Context, f Future) {
	d.h.Inner().BlockOn(ctx, f)
}

func (d executorDelegate[E]) Spawn(f Future) Task {
	return d.h.Inner().Spawn(f)
}

func (d executorDelegate[E]) SpawnLocal(f LocalFuture) (Task, error) {
	return d.h.Inner().SpawnLocal(f)
}

type blockingDelegate[E BlockingExecutor] struct {
	h Holder[E]
}

func (d blockingDelegate[E]) SpawnBlocking(f BlockingFunc) Task {
	return d.h.Inner().SpawnBlocking(f)
}

type fullDelegate[E FullExecutor] struct {
	executorDelegate[E]
	blockingDelegate[E]
}

// Shared is a reference-counted holder. The release function runs once,
// when the last reference is released.
type Shared[E any] struct {
	state    *sharedState[E]
	released atomic.Bool
}

type sharedState[E any] struct {
	inner   E
	refs    atomic.Int64
	once    sync.Once
	release func(E)
}

// NewShared returns the first reference to inner.
func NewShared[E any](inner E, release func(E)) *Shared[E] {
	st := &sharedState[E]{inner: inner, release: release}
	st.refs.Store(1)
	return &Shared[E]{state: st}
}

// Inner returns the held value.
func (s *Shared[E]) Inner() E {
	return s.state.inner
}

// Clone returns a new reference to the same value.
func (s *Shared[E]) Clone() *Shared[E] {
	s.state.refs.Add(1)
	return &Shared[E]{state: s.state}
}

// Refs reports the number of live references.
func (s *Shared[E]) Refs() int64 {
	return s.state.refs.Load()
}

// Release drops this reference. Releasing a reference twice is a no-op.
func (s *Shared[E]) Release() {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	if s.state.refs.Add(-1) == 0 && s.state.release != nil {
		s.state.once.Do(func() { s.state.release(s.state.inner) })
	}
}
