package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/casualjim/taskrt"
	"github.com/casualjim/taskrt/goroutine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setup(t *testing.T, options ...taskrt.Option) (*goroutine.Executor, *tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ex, err := goroutine.New(append(options, taskrt.Use(Middleware(tp)))...)
	require.NoError(t, err)
	return ex, sr, tp
}

func attr(span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestSpanPerUnit(t *testing.T) {
	ex, sr, _ := setup(t)
	ctx := context.Background()

	task := ex.Spawn(func(context.Context) (any, error) { return 1, nil })
	_, err := task.Await(ctx)
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "taskrt.unit", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, task.ID(), attr(spans[0], "taskrt.task.id").AsString())
	assert.Equal(t, "async", attr(spans[0], "taskrt.task.kind").AsString())
	assert.Equal(t, "goroutine", attr(spans[0], "taskrt.executor").AsString())
}

func TestSpanRecordsOutcome(t *testing.T) {
	ex, sr, _ := setup(t)
	ctx := context.Background()

	_, _ = ex.SpawnBlocking(func() (any, error) { return nil, errors.New("own") }).Await(ctx)
	_, _ = ex.Spawn(func(context.Context) (any, error) { panic("boom") }).Await(ctx)
	started := make(chan struct{})
	stopped := ex.Spawn(func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	<-started
	_, _ = stopped.Cancel(ctx)

	spans := sr.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "own", spans[0].Status().Description)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "panic", spans[1].Status().Description)

	assert.Equal(t, codes.Unset, spans[2].Status().Code)
	assert.True(t, attr(spans[2], "taskrt.aborted").AsBool())
}

func TestUnitSpansParentOnTheRootContext(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	rootCtx, root := tp.Tracer("test").Start(context.Background(), "root")

	ex, err := goroutine.New(taskrt.Context(rootCtx), taskrt.Use(Middleware(tp)))
	require.NoError(t, err)

	_, err = ex.Spawn(func(context.Context) (any, error) { return nil, nil }).Await(context.Background())
	require.NoError(t, err)
	root.End()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, root.SpanContext().TraceID(), spans[0].SpanContext().TraceID())
	assert.Equal(t, root.SpanContext().SpanID(), spans[0].Parent().SpanID())
}
