package broker

import (
	"context"

	"github.com/casualjim/taskrt/events"
)

type Broker interface {
	Topic(context.Context, string) Topic
}

type Topic interface {
	Publish(context.Context, events.Event) error
	Subscribe(context.Context, events.Hook) (Subscription, error)
}

type Subscription interface {
	ID() string
	Unsubscribe()
}

// forwardToHook delivers events from ch until it is closed, done is closed,
// or ctx is done.
func forwardToHook(ctx context.Context, ch <-chan events.Event, done <-chan struct{}, hook events.Hook) {
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			if err := events.Dispatch(ctx, hook, event); err != nil {
				panic(err)
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
