package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "glint"

// StartLaunchSpan starts a span for a task launch.
func StartLaunchSpan(ctx context.Context, kind, ownerID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "launch",
		trace.WithAttributes(
			attribute.String("task.kind", kind),
			attribute.String("owner.id", ownerID),
		),
	)
}

// StartPollSpan starts a span for a single status poll.
func StartPollSpan(ctx context.Context, taskID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "poll",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.kind", kind),
		),
	)
}

// StartExecuteSpan starts a span for a fire-and-forget execution.
func StartExecuteSpan(ctx context.Context, taskID, kind string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "execute",
		trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("task.kind", kind),
		),
	)
}
