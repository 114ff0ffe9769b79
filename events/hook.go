package events

import (
	"context"
	"fmt"
)

// Hook receives lifecycle events from a subscription.
type Hook interface {
	OnSpawned(ctx context.Context, e Spawned)
	OnCompleted(ctx context.Context, e Completed)
	OnCanceled(ctx context.Context, e Canceled)
	OnDetached(ctx context.Context, e Detached)
	OnFailed(ctx context.Context, e Failed)
}

// Dispatch calls the hook method matching event.
func Dispatch(ctx context.Context, hook Hook, event Event) error {
	switch e := event.(type) {
	case Spawned:
		hook.OnSpawned(ctx, e)
	case Completed:
		hook.OnCompleted(ctx, e)
	case Canceled:
		hook.OnCanceled(ctx, e)
	case Detached:
		hook.OnDetached(ctx, e)
	case Failed:
		hook.OnFailed(ctx, e)
	default:
		return fmt.Errorf("unknown event type: %T", event)
	}
	return nil
}

// HookFunc adapts a single function to Hook.
type HookFunc func(ctx context.Context, e Event)

func (f HookFunc) OnSpawned(ctx context.Context, e Spawned)     { f(ctx, e) }
func (f HookFunc) OnCompleted(ctx context.Context, e Completed) { f(ctx, e) }
func (f HookFunc) OnCanceled(ctx context.Context, e Canceled)   { f(ctx, e) }
func (f HookFunc) OnDetached(ctx context.Context, e Detached)   { f(ctx, e) }
func (f HookFunc) OnFailed(ctx context.Context, e Failed)       { f(ctx, e) }
