package telemetry

import sdktrace "go.opentelemetry.io/otel/sdk/trace"

// Config describes the tracer provider for one CLI invocation.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Enabled false installs a noop provider.
	Enabled bool

	// Endpoint is the OTLP/HTTP collector URL. Empty records spans without
	// exporting them.
	Endpoint string

	// SampleRate in [0, 1]. Values at or above 1 sample everything.
	SampleRate float64
}

func (c Config) sampler() sdktrace.Sampler {
	switch {
	case c.SampleRate >= 1:
		return sdktrace.AlwaysSample()
	case c.SampleRate <= 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRate))
	}
}
