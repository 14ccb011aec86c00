package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/log"
	"github.com/felixgeelhaar/reimburse/internal/metrics"
	"github.com/felixgeelhaar/reimburse/internal/telemetry"
)

// RequestIDHeader carries the per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Authenticator supplies and maintains the bearer credential for authenticated calls.
type Authenticator interface {
	// Token returns the current credential, or "" when none is stored.
	Token(ctx context.Context) (string, error)

	// Refresh trades stale for a new credential and returns it.
	Refresh(ctx context.Context, stale string) (string, error)

	// Invalidate drops the session holding rejected after the backend refused
	// it irrecoverably. Calls for a credential that was replaced meanwhile
	// are ignored.
	Invalidate(ctx context.Context, rejected string, cause error)
}

// Client is the reimbursement backend API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Authenticator
	logger     *log.Logger
	metrics    *metrics.Metrics
	tracer     trace.TracerProvider
	limiter    *rate.Limiter
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request counters and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracerProvider emits a client span per request attempt.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp }
}

// WithRateLimit caps outgoing requests at rps with the given burst. Copies
// made by WithAuthenticator share the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a new backend API client. baseURL includes the API prefix,
// e.g. http://localhost:3001/api.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:    log.Discard(),
		userAgent: "reimburse",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// WithAuthenticator returns a copy of c whose authenticated calls use a for
// credentials and the refresh-and-retry protocol. The receiver is not modified.
func (c *Client) WithAuthenticator(a Authenticator) *Client {
	cp := *c
	cp.auth = a
	return &cp
}

// attempt distinguishes the original send of a call from its single retry.
type attempt int

const (
	firstAttempt attempt = iota
	retryAttempt
)

func (a attempt) String() string {
	if a == retryAttempt {
		return "retry"
	}
	return "first"
}

// call describes one logical API operation. The body is buffered so the
// call can be re-sent after a refresh.
type call struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	// accept overrides the JSON Accept header for raw downloads.
	accept string

	// authenticated calls carry the bearer credential.
	authenticated bool
	// refreshable calls run the refresh-and-retry protocol on 401.
	refreshable bool
	// bearer overrides the Authenticator token (used by the refresh exchange).
	bearer string
}

func newCall(method, path string, body interface{}) (*call, error) {
	cl := &call{method: method, path: path}
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeRequestFailed, "failed to marshal request body", err)
		}
		cl.body = data
		cl.contentType = "application/json"
	}
	return cl, nil
}

// authed marks the call as carrying the session credential with silent refresh.
func (cl *call) authed() *call {
	cl.authenticated = true
	cl.refreshable = true
	return cl
}

// do runs a call through the refresh-and-retry decorator and decodes the
// success body into target (which may be nil).
func (c *Client) do(ctx context.Context, cl *call, target interface{}) error {
	token, err := c.credential(ctx, cl)
	if err != nil {
		return err
	}
	return c.send(ctx, cl, firstAttempt, token, target)
}

func (c *Client) credential(ctx context.Context, cl *call) (string, error) {
	if cl.bearer != "" {
		return cl.bearer, nil
	}
	if !cl.authenticated || c.auth == nil {
		return "", nil
	}
	return c.auth.Token(ctx)
}

// send performs one attempt. A 401 on the first attempt of a refreshable call
// triggers exactly one refresh and one retry; every other outcome is returned.
func (c *Client) send(ctx context.Context, cl *call, at attempt, token string, target interface{}) error {
	err := c.roundTrip(ctx, cl, at, token, target)
	if err == nil {
		if at == retryAttempt {
			c.metrics.RecordRetry(metrics.OutcomeSuccess)
		}
		return nil
	}

	if !errors.HasCode(err, errors.ErrCodeUnauthorized) || !cl.refreshable || c.auth == nil || token == "" {
		if at == retryAttempt {
			c.metrics.RecordRetry(metrics.OutcomeFailure)
		}
		return err
	}

	if at == retryAttempt {
		// The refreshed credential was rejected too.
		c.metrics.RecordRetry(metrics.OutcomeFailure)
		c.logger.WithContext(ctx).Warn("refreshed credential rejected", "method", cl.method, "path", cl.path)
		c.auth.Invalidate(ctx, token, err)
		return err
	}

	c.logger.WithContext(ctx).Debug("credential rejected, refreshing", "method", cl.method, "path", cl.path)

	fresh, rerr := c.auth.Refresh(ctx, token)
	if rerr != nil {
		if ctx.Err() != nil {
			// The caller gave up; that says nothing about the credential.
			return rerr
		}
		c.logger.WithContext(ctx).WithError(rerr).Warn("credential refresh failed")
		c.auth.Invalidate(ctx, token, rerr)
		return err
	}

	return c.send(ctx, cl, retryAttempt, fresh, target)
}

// roundTrip sends the request once and classifies the response.
func (c *Client) roundTrip(ctx context.Context, cl *call, at attempt, token string, target interface{}) error {
	requestID := log.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	ctx, span := telemetry.StartBackendSpan(ctx, c.tracer, cl.method, cl.path, at == retryAttempt)
	defer span.End()
	span.SetAttributes(attribute.String("reimburse.request_id", requestID))

	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var reqBody io.Reader
	if cl.body != nil {
		reqBody = bytes.NewReader(cl.body)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, reqBody)
	if err != nil {
		telemetry.RecordError(span, err)
		return errors.Wrap(errors.ErrCodeRequestFailed, "failed to create request", err)
	}

	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	accept := "application/json"
	if cl.accept != "" {
		accept = cl.accept
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger := c.logger.With("method", cl.method, "path", cl.path, "request_id", requestID, "attempt", at.String())

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			nerr := errors.NewNetworkError(cl.method+" "+cl.path, err)
			telemetry.RecordError(span, nerr)
			return nerr
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.metrics.RecordAPIRequest(cl.method, 0, elapsed.Seconds())
		nerr := errors.NewNetworkError(cl.method+" "+cl.path, err)
		telemetry.RecordError(span, nerr)
		logger.Debug("api request failed", "error", err, "duration", elapsed)
		return nerr
	}

	c.metrics.RecordAPIRequest(cl.method, resp.StatusCode, elapsed.Seconds())
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	logger.Debug("api request", "status", resp.StatusCode, "duration", elapsed)

	if err := parseResponse(resp, target); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	telemetry.RecordSuccess(span)
	return nil
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
	// Message is a string, or a list of strings for field validation failures.
	Message json.RawMessage `json:"message"`
}

// text returns the most specific human-readable message in the body.
func (e ErrorResponse) text() string {
	if len(e.Message) > 0 {
		var single string
		if err := json.Unmarshal(e.Message, &single); err == nil && single != "" {
			return single
		}
		var many []string
		if err := json.Unmarshal(e.Message, &many); err == nil && len(many) > 0 {
			return strings.Join(many, "; ")
		}
	}
	return e.Error
}

const maxErrorBody = 64 << 10

// parseResponse parses the response body into the target struct, or copies
// it verbatim when target is an io.Writer, classifying unsuccessful statuses
// into coded errors.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, errorMessage(body))
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if w, ok := target.(io.Writer); ok {
		if _, err := io.Copy(w, resp.Body); err != nil {
			return errors.Wrap(errors.ErrCodeDecodeFailed, "failed to read response", err).WithStatus(resp.StatusCode)
		}
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrap(errors.ErrCodeDecodeFailed, "failed to decode response", err).WithStatus(resp.StatusCode)
	}

	return nil
}

func errorMessage(body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if msg := errResp.text(); msg != "" {
			return msg
		}
	}

	if raw := strings.TrimSpace(string(body)); raw != "" && len(raw) <= 200 && !strings.HasPrefix(raw, "<") {
		return raw
	}

	// No usable message; the error renders the status instead.
	return ""
}

// statusError maps an unsuccessful status to the error taxonomy.
func statusError(status int, message string) error {
	switch {
	case status == http.StatusUnauthorized:
		return errors.NewUnauthorizedError(message)
	case status >= 400 && status < 500:
		return errors.NewValidationError(message, status)
	default:
		return errors.NewRequestFailedError(message, status)
	}
}

// Ping checks that the backend answers HTTP at all. Any response, including
// 401, counts as reachable; only transport failures are returned.
func (c *Client) Ping(ctx context.Context) error {
	cl, err := newCall(http.MethodGet, "/auth/me", nil)
	if err != nil {
		return err
	}
	if err := c.do(ctx, cl, nil); errors.HasCode(err, errors.ErrCodeNetworkFailure) {
		return err
	}
	return nil
}
