package temporal

import (
	"context"
	"time"

	"github.com/casualjim/taskrt"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// RunUnit is the workflow behind every task. It runs the unit exactly once;
// a unit that cannot be found or fails to report is never retried.
func (e *Executor) RunUnit(ctx workflow.Context, in Unit) (string, error) {
	log := workflow.GetLogger(ctx)
	log.Debug("running unit", "unit", in.ID, "kind", in.Kind)

	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: e.settings.StartToCloseTimeout,
		HeartbeatTimeout:    e.settings.HeartbeatTimeout,
		WaitForCancellation: true,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var status string
	if err := workflow.ExecuteActivity(actx, ActivityName, in).Get(actx, &status); err != nil {
		return "", err
	}
	return status, nil
}

// ExecuteUnit is the activity that runs the registered closure and records
// its outcome for the spawning task. The task holds the unit itself, so the
// registry entry is dropped as soon as the outcome is stored.
func (e *Executor) ExecuteUnit(ctx context.Context, in Unit) (string, error) {
	u, ok := e.units.Get(in.ID)
	if !ok {
		return "", temporal.NewNonRetryableApplicationError("unit is not registered in this process", "UnknownUnit", nil, in.ID)
	}

	stop := context.AfterFunc(ctx, u.cancel)
	defer stop()

	done := make(chan taskrt.Outcome, 1)
	go func() { done <- taskrt.Execute(u.ctx, u.work) }()

	tick := time.NewTicker(max(e.settings.HeartbeatTimeout/3, 10*time.Millisecond))
	defer tick.Stop()
	for {
		select {
		case out := <-done:
			u.outcome.Store(&out)
			e.units.Del(in.ID)
			if out.Aborted {
				return statusAborted, nil
			}
			return statusCompleted, nil
		case <-tick.C:
			e.heartbeat(ctx)
		}
	}
}
