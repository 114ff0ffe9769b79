package taskrt

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlineExecutor is a minimal FullExecutor for exercising the helpers in this package.
type inlineExecutor struct {
	cfg    Config
	local  bool
	spawns atomic.Int32
}

func newInlineExecutor(local bool) *inlineExecutor {
	return &inlineExecutor{cfg: MustConfig("inline"), local: local}
}

func (e *inlineExecutor) Config() Config {
	return e.cfg
}

func (e *inlineExecutor) BlockOn(ctx context.Context, f Future) {
	_, _ = f(WithExecutor(ctx, e))
}

func (e *inlineExecutor) Spawn(f Future) Task {
	e.spawns.Add(1)
	return NewTask(NewInfo(e.cfg, KindAsync), startUnit(f), DropDetach, e.cfg)
}

func (e *inlineExecutor) SpawnLocal(f LocalFuture) (Task, error) {
	if !e.local {
		return nil, RejectLocal(f)
	}
	return NewTask(NewInfo(e.cfg, KindLocal), startUnit(Future(f)), DropCancel, e.cfg), nil
}

func (e *inlineExecutor) SpawnBlocking(f BlockingFunc) Task {
	return NewTask(NewInfo(e.cfg, KindBlocking), startUnit(Blocking(f)), DropDetach, e.cfg)
}

func TestTypedHelpers(t *testing.T) {
	ex := newInlineExecutor(true)
	ctx := context.Background()

	t.Run("spawn", func(t *testing.T) {
		task := Spawn(ex, func(context.Context) (int, error) { return 7, nil })
		v, err := task.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	})

	t.Run("spawn local", func(t *testing.T) {
		task, err := SpawnLocal(ex, func(context.Context) (string, error) { return "local", nil })
		require.NoError(t, err)
		v, err := task.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, "local", v)
	})

	t.Run("spawn blocking", func(t *testing.T) {
		task := SpawnBlocking(ex, func() ([]int, error) { return []int{1, 2}, nil })
		v, err := task.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, v)
	})

	t.Run("block on", func(t *testing.T) {
		v, err := BlockOn(ctx, ex, func(ctx context.Context) (int, error) {
			_, ok := Current[Blocker](ctx)
			assert.True(t, ok)
			return 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("cancel without result", func(t *testing.T) {
		task := Spawn(ex, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		v, ok, err := task.Cancel(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, v)
	})

	t.Run("cancel keeps the result", func(t *testing.T) {
		task := Spawn(ex, func(context.Context) (string, error) { return "kept", errors.New("own") })
		_, _ = task.Await(ctx)

		v, ok, err := task.Cancel(ctx)
		assert.True(t, ok)
		assert.Equal(t, "kept", v)
		assert.EqualError(t, err, "own")
	})

	t.Run("nil result is the zero value", func(t *testing.T) {
		task := Spawn(ex, func(context.Context) (*int, error) { return nil, nil })
		v, err := task.Await(ctx)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("local rejection carries the work", func(t *testing.T) {
		_, err := SpawnLocal(newInlineExecutor(false), func(context.Context) (int, error) { return 1, nil })
		require.ErrorIs(t, err, ErrLocalUnsupported)
	})
}

func TestCast(t *testing.T) {
	_, err := cast[int]("text", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string")
}

func TestReadyAndFailed(t *testing.T) {
	ctx := context.Background()
	cfg := MustConfig("test")

	v, err := Ready(cfg, KindAsync, "now", nil).Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "now", v)

	task := Failed(cfg, KindAsync, "spawn", ErrShutdown)
	_, err = task.Await(ctx)
	require.ErrorIs(t, err, ErrShutdown)
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "spawn", fe.Op)
	assert.Equal(t, task.ID(), fe.TaskID)
}

func TestSpawnLocalOr(t *testing.T) {
	ctx := context.Background()

	t.Run("uses local spawning when available", func(t *testing.T) {
		task, err := SpawnLocalOr(ctx, newInlineExecutor(true), func(context.Context) (any, error) { return "spawned", nil })
		require.NoError(t, err)
		v, err := task.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, "spawned", v)
	})

	t.Run("falls back to block on", func(t *testing.T) {
		ran := 0
		task, err := SpawnLocalOr(ctx, newInlineExecutor(false), func(context.Context) (any, error) {
			ran++
			return "inline", nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, ran)

		v, err := task.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, "inline", v)
		assert.Equal(t, 1, ran)
	})

	t.Run("reports the fallback through the executor's observers", func(t *testing.T) {
		obs := &recordingObserver{}
		ex := &inlineExecutor{cfg: MustConfig("inline", Observe(obs))}

		task, err := SpawnLocalOr(ctx, ex, func(context.Context) (any, error) { return "inline", nil })
		require.NoError(t, err)
		_, err = task.Await(ctx)
		require.NoError(t, err)

		require.Len(t, obs.spawned, 1)
		assert.Equal(t, "inline", obs.spawned[0].Executor)
		assert.Equal(t, KindLocal, obs.spawned[0].Kind)
		assert.Equal(t, task.ID(), obs.spawned[0].ID)
		assert.Equal(t, []State{StateCompleted}, obs.states())
	})
}
