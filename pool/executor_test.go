package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/conformance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPool(t *testing.T, settings Settings) *Executor {
	t.Helper()
	ex, err := New(settings, taskrt.Name("test-pool"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ex.Close() })
	return ex
}

func TestConformance(t *testing.T) {
	conformance.Run(t, func() (taskrt.Executor, func(), error) {
		ex, err := New(Settings{Workers: 4})
		if err != nil {
			return nil, nil, err
		}
		return ex, func() { _ = ex.Close() }, nil
	}, conformance.Settings{})
}

func TestSettingsDefaults(t *testing.T) {
	ex := newPool(t, Settings{})
	s := ex.Settings()
	assert.Positive(t, s.Workers)
	assert.Equal(t, defaultBlockingThreads, s.BlockingThreads)
	assert.Zero(t, s.BlockingAcquireTimeout)
}

// occupy blocks the only worker until the returned release func is called.
func occupy(t *testing.T, ex *Executor) (taskrt.Task, func()) {
	t.Helper()
	started := make(chan struct{})
	release := make(chan struct{})
	task := ex.Spawn(func(context.Context) (any, error) {
		close(started)
		<-release
		return "busy", nil
	})
	<-started
	return task, func() { close(release) }
}

func TestCancelQueuedUnit(t *testing.T) {
	ex := newPool(t, Settings{Workers: 1})
	busy, release := occupy(t, ex)

	var ran atomic.Bool
	queued := ex.Spawn(func(context.Context) (any, error) {
		ran.Store(true)
		return "queued", nil
	})
	assert.Equal(t, 1, ex.Queued())

	res, err := queued.Cancel(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, taskrt.StateCanceled, queued.State())

	release()
	v, err := busy.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "busy", v)

	// the worker skips the canceled unit
	next := ex.Spawn(func(context.Context) (any, error) { return "next", nil })
	v, err = next.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "next", v)
	assert.False(t, ran.Load())
}

func TestBlockingExhaustion(t *testing.T) {
	ex := newPool(t, Settings{Workers: 1, BlockingThreads: 1, BlockingAcquireTimeout: 20 * time.Millisecond})

	release := make(chan struct{})
	holding := make(chan struct{})
	holder := ex.SpawnBlocking(func() (any, error) {
		close(holding)
		<-release
		return "held", nil
	})
	<-holding

	var ran atomic.Bool
	starved := ex.SpawnBlocking(func() (any, error) {
		ran.Store(true)
		return nil, nil
	})

	_, err := starved.Await(context.Background())
	require.ErrorIs(t, err, taskrt.ErrExhausted)
	assert.True(t, taskrt.IsFatal(err))
	assert.False(t, ran.Load())

	close(release)
	v, err := holder.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "held", v)
}

func TestCancelWaitingBlockingUnit(t *testing.T) {
	ex := newPool(t, Settings{BlockingThreads: 1})

	release := make(chan struct{})
	defer close(release)
	ex.SpawnBlocking(func() (any, error) {
		<-release
		return nil, nil
	}).Detach()

	waiting := ex.SpawnBlocking(func() (any, error) { return "never", nil })
	res, err := waiting.Cancel(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestClose(t *testing.T) {
	ex, err := New(Settings{Workers: 1})
	require.NoError(t, err)

	running := ex.Spawn(func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	queued := ex.Spawn(func(context.Context) (any, error) { return "queued", nil })

	require.NoError(t, ex.Close())
	require.NoError(t, ex.Close())

	for _, task := range []taskrt.Task{running, queued} {
		_, err := task.Await(context.Background())
		require.ErrorIs(t, err, taskrt.ErrShutdown)
		assert.True(t, taskrt.IsFatal(err))
	}

	_, err = ex.Spawn(func(context.Context) (any, error) { return nil, nil }).Await(context.Background())
	require.ErrorIs(t, err, taskrt.ErrShutdown)
	_, err = ex.SpawnBlocking(func() (any, error) { return nil, nil }).Await(context.Background())
	require.ErrorIs(t, err, taskrt.ErrShutdown)
}

func TestCancelAfterClose(t *testing.T) {
	ex, err := New(Settings{Workers: 1})
	require.NoError(t, err)
	require.NoError(t, ex.Close())

	res, err := ex.Spawn(func(context.Context) (any, error) { return 1, nil }).Cancel(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res)
}
