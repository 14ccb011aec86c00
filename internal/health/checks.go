package health

import (
	"context"
	"time"

	"github.com/felixgeelhaar/reimburse/internal/credential"
	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/session"
)

const loginHint = "Run 'reimburse auth login' to sign in."

// Pinger reports whether the backend answers at all.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendChecker verifies the backend is reachable.
type BackendChecker struct {
	pinger Pinger
	url    string
}

// NewBackendChecker creates a checker for the backend at url.
func NewBackendChecker(p Pinger, url string) *BackendChecker {
	return &BackendChecker{pinger: p, url: url}
}

func (c *BackendChecker) Name() string { return "backend" }

func (c *BackendChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	if err := c.pinger.Ping(ctx); err != nil {
		return Unhealthy("backend unreachable").
			WithDetail("url", c.url).
			WithDetail("error", errorText(err)).
			WithHint("Check --api-url or REIMBURSE_API_URL.")
	}
	return Healthy("backend reachable").
		WithDetail("url", c.url).
		WithLatency(time.Since(start))
}

// StoreChecker verifies the credential store can be read and inspects the
// stored credential without contacting the backend.
type StoreChecker struct {
	store   credential.Store
	backend string
	now     func() time.Time
}

// NewStoreChecker creates a checker for store. backend names it in output.
func NewStoreChecker(store credential.Store, backend string) *StoreChecker {
	return &StoreChecker{store: store, backend: backend, now: time.Now}
}

func (c *StoreChecker) Name() string { return "credential-store" }

func (c *StoreChecker) Check(ctx context.Context) *Result {
	token, err := c.store.Load(ctx)
	if err != nil {
		return Unhealthy("credential store unreadable").
			WithDetail("backend", c.backend).
			WithDetail("error", errorText(err))
	}
	if token == "" {
		return Degraded("no stored credential").
			WithDetail("backend", c.backend).
			WithHint(loginHint)
	}

	result := Healthy("credential stored").WithDetail("backend", c.backend)
	if claims, ok := credential.Inspect(token); ok && !claims.ExpiresAt.IsZero() {
		result.WithDetail("expires_at", claims.ExpiresAt.UTC().Format(time.RFC3339))
		if claims.Expired(c.now()) {
			result.Message = "credential stored (expired, refreshed on next use)"
		}
	}
	return result
}

// SessionVerifier confirms the stored credential with the backend.
type SessionVerifier interface {
	Start(ctx context.Context) error
	CurrentUser() *session.Identity
}

// SessionChecker verifies the backend still accepts the stored credential.
type SessionChecker struct {
	session SessionVerifier
}

// NewSessionChecker creates a checker backed by s.
func NewSessionChecker(s SessionVerifier) *SessionChecker {
	return &SessionChecker{session: s}
}

func (c *SessionChecker) Name() string { return "session" }

func (c *SessionChecker) Check(ctx context.Context) *Result {
	err := c.session.Start(ctx)
	switch {
	case errors.HasCode(err, errors.ErrCodeUnauthorized):
		return Degraded("stored credential was rejected").WithHint(loginHint)
	case err != nil:
		return Unhealthy("could not confirm session").
			WithDetail("error", errorText(err))
	}

	user := c.session.CurrentUser()
	if user == nil {
		return Degraded("not logged in").WithHint(loginHint)
	}
	return Healthy("signed in as "+user.Email).
		WithDetail("role", user.Role).
		WithDetail("email_verified", user.EmailVerified)
}

// errorText is err on one line, without the suggestions block coded errors
// carry for terminal rendering.
func errorText(err error) string {
	coded, ok := errors.As(err)
	if !ok {
		return err.Error()
	}
	if coded.Cause != nil {
		return coded.Message + ": " + coded.Cause.Error()
	}
	return coded.Message
}
