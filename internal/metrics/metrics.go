package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for reimburse
type Metrics struct {
	// Command execution metrics
	CommandExecutions *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec

	// Session lifecycle metrics
	Logins         *prometheus.CounterVec
	Logouts        *prometheus.CounterVec
	IdentityChecks *prometheus.CounterVec
	Transitions    *prometheus.CounterVec

	// Credential refresh metrics
	Refreshes *prometheus.CounterVec
	Retries   *prometheus.CounterVec

	// Backend API metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		CommandExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_command_executions_total",
				Help: "Total number of command executions",
			},
			[]string{"command", "success"},
		),
		CommandDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reimburse_command_duration_seconds",
				Help:    "Command execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),

		Logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_session_logins_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"outcome"},
		),
		Logouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_session_logouts_total",
				Help: "Total number of logouts by backend notification outcome",
			},
			[]string{"backend"},
		),
		IdentityChecks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_session_identity_checks_total",
				Help: "Total number of identity checks by outcome",
			},
			[]string{"outcome"},
		),
		Transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_session_transitions_total",
				Help: "Session state transitions",
			},
			[]string{"from", "to"},
		),

		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_credential_refreshes_total",
				Help: "Credential refresh requests by outcome",
			},
			[]string{"outcome"},
		),
		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_api_retries_total",
				Help: "Calls retried after a credential refresh, by outcome",
			},
			[]string{"outcome"},
		),

		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_api_requests_total",
				Help: "Backend API requests by method and status class",
			},
			[]string{"method", "status"},
		),
		APILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reimburse_api_latency_seconds",
				Help:    "Backend API request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reimburse_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code"},
		),
	}
}

// Refresh outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeShared  = "shared"
	OutcomeSkipped = "skipped"
)

// The Record helpers are safe on a nil receiver so components can run without metrics.

// RecordCommand counts a CLI command execution and observes its duration.
func (m *Metrics) RecordCommand(command string, success bool, seconds float64) {
	if m == nil {
		return
	}
	m.CommandExecutions.WithLabelValues(command, strconv.FormatBool(success)).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(seconds)
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(outcome).Inc()
}

// RecordLogout counts a logout; backendOK reports whether the backend was notified.
func (m *Metrics) RecordLogout(backendOK bool) {
	if m == nil {
		return
	}
	label := OutcomeSuccess
	if !backendOK {
		label = OutcomeFailure
	}
	m.Logouts.WithLabelValues(label).Inc()
}

// RecordIdentityCheck counts an identity check.
func (m *Metrics) RecordIdentityCheck(outcome string) {
	if m == nil {
		return
	}
	m.IdentityChecks.WithLabelValues(outcome).Inc()
}

// RecordTransition counts a session state change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil || from == to {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// RecordRefresh counts a credential refresh request.
func (m *Metrics) RecordRefresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

// RecordRetry counts a call re-sent after refresh.
func (m *Metrics) RecordRetry(outcome string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(outcome).Inc()
}

// RecordAPIRequest counts a backend request and observes its latency.
// status is 0 for transport failures.
func (m *Metrics) RecordAPIRequest(method string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(method, StatusClass(status)).Inc()
	m.APILatency.WithLabelValues(method).Observe(seconds)
}

// RecordError counts an error by code. Empty codes are ignored.
func (m *Metrics) RecordError(code string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code).Inc()
}

// StatusClass buckets an HTTP status into 2xx/3xx/4xx/5xx, or "error" for 0.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "error"
	}
}
