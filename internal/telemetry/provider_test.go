package telemetry

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitProviderDisabled(t *testing.T) {
	config := Config{ServiceName: "reimburse", ServiceVersion: "dev"}

	ctx := context.Background()
	p, err := InitProvider(ctx, config)
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}

	_, span := StartCommandSpan(ctx, p.TracerProvider(), "version")
	if span.SpanContext().IsValid() {
		t.Error("disabled provider should produce non-recording spans")
	}
	span.End()

	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestInitProviderEnabled(t *testing.T) {
	config := Config{
		ServiceName:    "reimburse",
		ServiceVersion: "dev",
		Environment:    "cli",
		Enabled:        true,
		Endpoint:       "https://collector.example.com/v1/traces",
		SampleRate:     0.5,
	}

	ctx := context.Background()
	p, err := InitProvider(ctx, config)
	if err != nil {
		t.Fatalf("InitProvider failed: %v", err)
	}
	if _, ok := p.TracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected sdk tracer provider, got %T", p.TracerProvider())
	}

	// Shutdown would try to reach the collector; cancel it immediately.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_ = p.Shutdown(cancelled)
}

func TestNewProviderShutdownFlushes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	p := NewProvider(tp)

	ctx := context.Background()
	_, span := StartSessionSpan(ctx, p.TracerProvider(), "login")
	span.End()

	if err := p.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush failed: %v", err)
	}
	if got := len(exporter.GetSpans()); got != 1 {
		t.Fatalf("expected 1 exported span, got %d", got)
	}

	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestNilProvider(t *testing.T) {
	var p *Provider
	ctx := context.Background()

	if p.TracerProvider() == nil {
		t.Fatal("nil provider should fall back to noop")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := p.ForceFlush(ctx); err != nil {
		t.Fatalf("ForceFlush failed: %v", err)
	}
}
