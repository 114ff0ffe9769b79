package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"
)

func setupWorkflowEnvironment(t *testing.T) (*testsuite.TestWorkflowEnvironment, *Executor) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.SetTestTimeout(time.Minute)

	ex, err := newExecutor(&fakeClient{}, Settings{HeartbeatTimeout: time.Second})
	require.NoError(t, err)
	env.RegisterWorkflowWithOptions(ex.RunUnit, workflow.RegisterOptions{Name: WorkflowName})
	env.RegisterActivityWithOptions(ex.ExecuteUnit, activity.RegisterOptions{Name: ActivityName})
	return env, ex
}

func TestRunUnitWorkflow(t *testing.T) {
	t.Run("records the result of the unit", func(t *testing.T) {
		env, ex := setupWorkflowEnvironment(t)
		boom := errors.New("own error")
		u := ex.register(taskrt.KindAsync, func(ctx context.Context) (any, error) {
			_, ok := taskrt.Current[taskrt.Spawner](ctx)
			assert.True(t, ok)
			return "value", boom
		})

		env.ExecuteWorkflow(WorkflowName, Unit{ID: u.info.ID, Kind: u.info.Kind.String()})
		require.True(t, env.IsWorkflowCompleted())
		require.NoError(t, env.GetWorkflowError())

		var status string
		require.NoError(t, env.GetWorkflowResult(&status))
		assert.Equal(t, statusCompleted, status)

		out := u.outcome.Load()
		require.NotNil(t, out)
		assert.Equal(t, "value", out.Value)
		assert.ErrorIs(t, out.Err, boom)
		assert.Zero(t, ex.units.Len())
	})

	t.Run("reports units stopped before they ran", func(t *testing.T) {
		env, ex := setupWorkflowEnvironment(t)
		ran := false
		u := ex.register(taskrt.KindBlocking, taskrt.Blocking(func() (any, error) {
			ran = true
			return nil, nil
		}))
		u.cancel()

		env.ExecuteWorkflow(WorkflowName, Unit{ID: u.info.ID})
		require.True(t, env.IsWorkflowCompleted())

		var status string
		require.NoError(t, env.GetWorkflowResult(&status))
		assert.Equal(t, statusAborted, status)
		assert.False(t, ran)
		assert.True(t, u.outcome.Load().Aborted)
	})

	t.Run("fails without retrying unknown units", func(t *testing.T) {
		env, _ := setupWorkflowEnvironment(t)

		env.ExecuteWorkflow(WorkflowName, Unit{ID: "unknown"})
		require.True(t, env.IsWorkflowCompleted())
		err := env.GetWorkflowError()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not registered")
	})
}
