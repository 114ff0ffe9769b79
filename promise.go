package taskrt

import (
	"context"
	"sync"
)

// Promise is a Native backed by a channel. A runtime resolves it exactly once
// when the unit stops; later resolutions are ignored.
type Promise struct {
	done   chan struct{}
	once   sync.Once
	out    Outcome
	err    error
	cancel context.CancelFunc
}

// NewPromise returns an unresolved promise. cancel is invoked by Abort and
// should cancel the unit's context; it may be nil.
func NewPromise(cancel context.CancelFunc) *Promise {
	return &Promise{done: make(chan struct{}), cancel: cancel}
}

// Resolve records how the unit stopped.
func (p *Promise) Resolve(out Outcome) {
	p.once.Do(func() {
		p.out = out
		close(p.done)
	})
}

// Reject records a runtime failure. Join reports it as an error, which the
// task turns into a *FatalError.
func (p *Promise) Reject(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the promise is resolved or rejected.
func (p *Promise) Done() <-chan struct{} {
	return p.done
}

// Settled returns the recorded outcome. It must only be called after Done is closed.
func (p *Promise) Settled() (Outcome, error) {
	return p.out, p.err
}

func (p *Promise) Join(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.out, p.err
	default:
	}

	select {
	case <-p.done:
		return p.out, p.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (p *Promise) Abort() {
	if p.cancel != nil {
		p.cancel()
	}
}
