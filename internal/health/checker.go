// Package health runs the diagnostics behind `reimburse doctor`: is the
// backend reachable, can the credential store be read, and is the stored
// session still accepted.
//
// Each diagnostic is a Checker. A Manager runs them in parallel, each with
// its own timeout, and reports results in registration order.
package health

import (
	"context"
	"time"
)

// Checker is one diagnostic.
type Checker interface {
	// Name is a short lowercase identifier, e.g. "backend".
	Name() string

	// Check runs the diagnostic. It must respect ctx's deadline.
	Check(ctx context.Context) *Result
}

// Status is the outcome of a check.
type Status string

const (
	// StatusHealthy means the component works.
	StatusHealthy Status = "healthy"

	// StatusDegraded means the CLI works but something needs attention,
	// for example nobody is signed in.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means commands that need the component will fail.
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// Result is the outcome of one check.
type Result struct {
	Status  Status                 `json:"status" yaml:"status"`
	Message string                 `json:"message" yaml:"message"`
	Hint    string                 `json:"hint,omitempty" yaml:"hint,omitempty"`
	Details map[string]interface{} `json:"details,omitempty" yaml:"details,omitempty"`
	Latency time.Duration          `json:"latency" yaml:"latency"`
}

// NewResult creates a result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail and returns r for chaining.
func (r *Result) WithDetail(key string, value interface{}) *Result {
	r.Details[key] = value
	return r
}

// WithLatency sets the latency and returns r for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

// WithHint sets the remediation hint and returns r for chaining.
func (r *Result) WithHint(hint string) *Result {
	r.Hint = hint
	return r
}

// Healthy creates a healthy result.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}
