// Package tracing wraps the OpenTelemetry trace API the core engines use
// to annotate their transactions. No exporter is configured here — that
// is a deployment concern left to the operator's collector sidecar; the
// global tracer provider defaults to a no-op until one is registered, so
// these calls are always safe and cost nothing when tracing is off.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("inventory-core")

// Start begins a span named spanName as a child of ctx's span, if any.
func Start(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// End records err (if non-nil) on span and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Int64 is a convenience wrapper for attribute.Int64, used at engine call
// sites to annotate spans with batch/order identifiers.
func Int64(key string, value int64) attribute.KeyValue {
	return attribute.Int64(key, value)
}

// String is a convenience wrapper for attribute.String.
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}
