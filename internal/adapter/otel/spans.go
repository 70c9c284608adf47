package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "partyledger"

// StartPublishSpan starts a span for a single publish into a topic.
func StartPublishSpan(ctx context.Context, topic, eventType string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "events.publish",
		trace.WithAttributes(
			attribute.String("topic", topic),
			attribute.String("event.type", eventType),
		),
	)
}

// StartStreamSpan starts a span covering one viewer stream.
func StartStreamSpan(ctx context.Context, topic, subscriptionID, transport string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "events.stream",
		trace.WithAttributes(
			attribute.String("topic", topic),
			attribute.String("subscription.id", subscriptionID),
			attribute.String("stream.transport", transport),
		),
	)
}
