package goroutine

import (
	"context"
	"testing"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/conformance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	conformance.Run(t, func() (taskrt.Executor, func(), error) {
		ex, err := New()
		return ex, nil, err
	}, conformance.Settings{})
}

func TestSpawnLocalIsRejected(t *testing.T) {
	ex, err := New()
	require.NoError(t, err)

	task, err := ex.SpawnLocal(func(context.Context) (any, error) { return nil, nil })
	assert.Nil(t, task)
	require.ErrorIs(t, err, taskrt.ErrLocalUnsupported)
}

type spawnRecorder struct {
	spawned []taskrt.Info
}

func (r *spawnRecorder) OnSpawn(info taskrt.Info)                      { r.spawned = append(r.spawned, info) }
func (r *spawnRecorder) OnTransition(taskrt.Info, taskrt.State, error) {}

func TestLocalFallbackReportsToObservers(t *testing.T) {
	rec := &spawnRecorder{}
	ex, err := New(taskrt.Name("fallback"), taskrt.Observe(rec))
	require.NoError(t, err)

	task, err := taskrt.SpawnLocalOr(context.Background(), ex, func(context.Context) (any, error) { return "inline", nil })
	require.NoError(t, err)
	v, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "inline", v)

	require.Len(t, rec.spawned, 1)
	assert.Equal(t, "fallback", rec.spawned[0].Executor)
	assert.Equal(t, task.ID(), rec.spawned[0].ID)
}

func TestBlockOnPropagatesPanics(t *testing.T) {
	ex, err := New()
	require.NoError(t, err)

	assert.PanicsWithValue(t, "boom", func() {
		ex.BlockOn(context.Background(), func(context.Context) (any, error) { panic("boom") })
	})
}

func TestRootContextStopsUnits(t *testing.T) {
	root, stop := context.WithCancel(context.Background())
	ex, err := New(taskrt.Context(root), taskrt.Name("scoped"))
	require.NoError(t, err)

	started := make(chan struct{})
	task := ex.Spawn(func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started
	stop()

	_, err = task.Await(context.Background())
	require.ErrorIs(t, err, taskrt.ErrAborted)
	assert.True(t, taskrt.IsFatal(err))
}

func TestMiddlewareWrapsUnits(t *testing.T) {
	var seen []taskrt.Info
	mw := func(info taskrt.Info, next taskrt.Future) taskrt.Future {
		return func(ctx context.Context) (any, error) {
			seen = append(seen, info)
			return next(ctx)
		}
	}
	ex, err := New(taskrt.Use(mw))
	require.NoError(t, err)

	task := ex.SpawnBlocking(func() (any, error) { return "b", nil })
	v, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	require.Len(t, seen, 1)
	assert.Equal(t, task.ID(), seen[0].ID)
	assert.Equal(t, taskrt.KindBlocking, seen[0].Kind)
	assert.Equal(t, "goroutine", seen[0].Executor)
}
