package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

const instrumentationName = "github.com/felixgeelhaar/reimburse"

func tracer(tp trace.TracerProvider) trace.Tracer {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

// StartCommandSpan creates a span for a CLI command execution.
//
// Usage:
//
//	ctx, span := telemetry.StartCommandSpan(ctx, app.Tracer, "auth login")
//	defer span.End()
func StartCommandSpan(ctx context.Context, tp trace.TracerProvider, cmdName string) (context.Context, trace.Span) {
	ctx, span := tracer(tp).Start(ctx, "command."+cmdName)

	span.SetAttributes(
		attribute.String("command", cmdName),
		attribute.String("component", "cli"),
	)

	return ctx, span
}

// StartBackendSpan creates a client span for one backend request attempt.
func StartBackendSpan(ctx context.Context, tp trace.TracerProvider, method, path string, retry bool) (context.Context, trace.Span) {
	ctx, span := tracer(tp).Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))

	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
		attribute.Bool("reimburse.retry", retry),
		attribute.String("component", "platform"),
	)

	return ctx, span
}

// StartSessionSpan creates a span for a session manager operation.
func StartSessionSpan(ctx context.Context, tp trace.TracerProvider, operation string) (context.Context, trace.Span) {
	ctx, span := tracer(tp).Start(ctx, "session."+operation)

	span.SetAttributes(
		attribute.String("operation", operation),
		attribute.String("component", "session"),
	)

	return ctx, span
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records an error in a span and sets error status.
// Coded errors also carry their code as an attribute.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))

	if code := errors.CodeOf(err); code != "" {
		span.SetAttributes(attribute.String("error.code", string(code)))
	}
}
