package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/pkg/slogx"
)

// Publisher accepts events. A broker topic is a Publisher.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

var _ taskrt.Observer = (*Observer)(nil)

// Observer publishes an event for every spawn and transition it is told about.
// Publishing failures are logged and otherwise ignored.
type Observer struct {
	pub     Publisher
	ctx     context.Context
	timeout time.Duration
}

// NewObserver publishes on pub. Each publication is bounded by timeout
// and derives from ctx.
func NewObserver(ctx context.Context, pub Publisher, timeout time.Duration) *Observer {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Observer{pub: pub, ctx: context.WithoutCancel(ctx), timeout: timeout}
}

func (o *Observer) OnSpawn(info taskrt.Info) {
	o.publish(Spawned{Header: NewHeader(TaskOf(info))})
}

func (o *Observer) OnTransition(info taskrt.Info, state taskrt.State, err error) {
	h := NewHeader(TaskOf(info))
	switch {
	case err != nil:
		o.publish(Failed{Header: h, Error: err.Error()})
	case state == taskrt.StateCompleted:
		o.publish(Completed{Header: h})
	case state == taskrt.StateCanceled:
		o.publish(Canceled{Header: h})
	case state == taskrt.StateDetached:
		o.publish(Detached{Header: h})
	}
}

func (o *Observer) publish(event Event) {
	ctx, cancel := context.WithTimeout(o.ctx, o.timeout)
	defer cancel()
	if err := o.pub.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish task event",
			slogx.LoggerName("taskrt.events"),
			slog.String("task", event.Meta().Task.ID),
			slogx.Error(err),
		)
	}
}
