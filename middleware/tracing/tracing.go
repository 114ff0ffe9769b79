// Package tracing wraps units of work in OpenTelemetry spans.
//
// A unit's span is a child of whatever span is active in the unit's context.
// Adapters derive that context from their root context, so passing a context
// that carries a span with taskrt.Context parents every unit on it.
package tracing

import (
	"context"
	"errors"
	"fmt"

	"github.com/casualjim/taskrt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/casualjim/taskrt/middleware/tracing"
	spanName            = "taskrt.unit"
)

// Middleware starts a span for every unit. A nil provider means the global one.
func Middleware(tp trace.TracerProvider) taskrt.Middleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer(instrumentationName)

	return func(info taskrt.Info, next taskrt.Future) taskrt.Future {
		return func(ctx context.Context) (v any, err error) {
			ctx, span := tracer.Start(ctx, spanName,
				trace.WithAttributes(
					attribute.String("taskrt.task.id", info.ID),
					attribute.String("taskrt.task.kind", info.Kind.String()),
					attribute.String("taskrt.executor", info.Executor),
				),
			)
			defer span.End()

			defer func() {
				if r := recover(); r != nil {
					span.RecordError(fmt.Errorf("panic: %v", r))
					span.SetStatus(codes.Error, "panic")
					panic(r)
				}
			}()

			v, err = next(ctx)
			switch {
			case err == nil:
				span.SetStatus(codes.Ok, "")
			case ctx.Err() != nil && errors.Is(err, ctx.Err()):
				span.SetAttributes(attribute.Bool("taskrt.aborted", true))
				span.AddEvent("aborted")
			default:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return v, err
		}
	}
}
