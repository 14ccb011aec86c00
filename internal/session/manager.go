// Package session owns the client-side authentication lifecycle: who is
// signed in, the stored bearer credential, and its silent refresh.
package session

import (
	"context"
	stderrors "errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/felixgeelhaar/reimburse/internal/credential"
	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/log"
	"github.com/felixgeelhaar/reimburse/internal/metrics"
	"github.com/felixgeelhaar/reimburse/internal/platform"
	"github.com/felixgeelhaar/reimburse/internal/telemetry"
)

// DefaultLogoutTimeout bounds the best-effort backend logout.
const DefaultLogoutTimeout = 5 * time.Second

// Options configures a Manager. The zero value is usable.
type Options struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Tracer  trace.TracerProvider

	// SingleFlight collapses concurrent refreshes of the same stale credential
	// into one exchange.
	SingleFlight bool

	// LogoutTimeout bounds the backend logout call. Zero means DefaultLogoutTimeout.
	LogoutTimeout time.Duration
}

// Registration is the data needed to create an account.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Company   string
}

// Manager is the single source of truth for whether the caller is
// authenticated and as whom. It is safe for concurrent use.
type Manager struct {
	raw   *platform.Client
	api   *platform.Client
	store credential.Store

	logger        *log.Logger
	metrics       *metrics.Metrics
	tracer        trace.TracerProvider
	singleFlight  bool
	logoutTimeout time.Duration
	refreshes     singleflight.Group

	mu    sync.RWMutex
	state State
	user  *Identity
	// epoch changes whenever the credential is replaced or dropped, so a
	// check that raced with login or logout does not apply a stale result.
	epoch          uint64
	onUnauthorized []func(error)
}

// New creates a Manager in StateInitializing. client must not carry an
// Authenticator; the Manager installs itself on its own copy.
func New(client *platform.Client, store credential.Store, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = DefaultLogoutTimeout
	}

	m := &Manager{
		raw:           client,
		store:         store,
		logger:        opts.Logger.WithGroup("session"),
		metrics:       opts.Metrics,
		tracer:        opts.Tracer,
		singleFlight:  opts.SingleFlight,
		logoutTimeout: opts.LogoutTimeout,
		state:         StateInitializing,
	}
	m.api = client.WithAuthenticator(m)
	return m
}

// Client returns the API client whose authenticated calls use this session.
func (m *Manager) Client() *platform.Client {
	return m.api
}

// Start runs the startup identity check. It resolves StateInitializing to
// Authenticated or Unauthenticated and returns the check failure, if any.
func (m *Manager) Start(ctx context.Context) error {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "start")
	defer span.End()

	err := m.verify(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

// Close releases the credential store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// OnUnauthorized registers fn to run when the session is irrecoverably lost
// because the backend rejected the credential and refresh failed.
func (m *Manager) OnUnauthorized(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUnauthorized = append(m.onUnauthorized, fn)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Loading reports whether the startup check is still unresolved.
func (m *Manager) Loading() bool {
	return m.State() == StateInitializing
}

// IsAuthenticated reports whether an identity is currently confirmed.
func (m *Manager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// CurrentUser returns a copy of the confirmed identity, or nil.
func (m *Manager) CurrentUser() *Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user.clone()
}

// Token returns the stored credential, or "" when there is none.
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.store.Load(ctx)
}

// Login exchanges email and password for a credential. On success the
// credential is persisted and the session becomes Authenticated. A rejected
// login returns an InvalidCredentials error and leaves the session unchanged.
func (m *Manager) Login(ctx context.Context, email, password string) (*Identity, error) {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "login")
	defer span.End()

	resp, err := m.raw.Login(ctx, email, password)
	if err != nil {
		err = loginError(err)
		m.metrics.RecordLogin(metrics.OutcomeFailure)
		m.metrics.RecordError(string(errors.CodeOf(err)))
		telemetry.RecordError(span, err)
		m.logger.WithContext(ctx).WithError(err).Info("login failed")
		return nil, err
	}

	user := identityFromUser(&resp.User)

	m.mu.Lock()
	if err := m.store.Save(ctx, resp.Token); err != nil {
		m.mu.Unlock()
		m.metrics.RecordLogin(metrics.OutcomeFailure)
		telemetry.RecordError(span, err)
		return nil, err
	}
	m.epoch++
	m.setLocked(ctx, StateAuthenticated, user)
	m.mu.Unlock()

	m.metrics.RecordLogin(metrics.OutcomeSuccess)
	telemetry.RecordSuccess(span, attribute.String("user.role", user.Role))
	m.logger.WithContext(ctx).Info("logged in", "user_id", user.ID)

	return user.clone(), nil
}

// loginError maps a credential rejection (400, 401 or 403) to
// InvalidCredentials. Everything else is returned unchanged.
func loginError(err error) error {
	coded, ok := errors.As(err)
	if !ok {
		return err
	}
	switch coded.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewInvalidCredentialsError(reason(coded)).WithStatus(coded.Status)
	default:
		return err
	}
}

// reason returns the backend's message as a plain error, or nil when it sent none.
func reason(coded *errors.Error) error {
	if coded.Message == "" {
		return nil
	}
	return stderrors.New(coded.Message)
}

// Register creates an account. It never authenticates the caller; on success
// the account awaits email verification.
func (m *Manager) Register(ctx context.Context, reg Registration) error {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "register")
	defer span.End()

	err := m.raw.Register(ctx, platform.RegisterRequest{
		Email:     reg.Email,
		Password:  reg.Password,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
		Company:   reg.Company,
	})
	if err == nil {
		telemetry.RecordSuccess(span)
		m.logger.WithContext(ctx).Info("registration submitted, verification pending")
		return nil
	}

	coded, ok := errors.As(err)
	if !ok || coded.Code == errors.ErrCodeNetworkFailure {
		telemetry.RecordError(span, err)
		return err
	}

	regErr := errors.NewRegistrationFailedError(coded.Message, nil).WithStatus(coded.Status)
	telemetry.RecordError(span, regErr)
	m.metrics.RecordError(string(regErr.Code))
	return regErr
}

// Logout notifies the backend on a best-effort basis, then always clears the
// stored credential and identity. Backend failures are logged, never returned;
// a failure to clear the store is returned after local state is cleared.
func (m *Manager) Logout(ctx context.Context) error {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "logout")
	defer span.End()

	backendOK := true
	token, err := m.store.Load(ctx)
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("could not read credential before logout")
	}
	if token != "" {
		notifyCtx, cancel := context.WithTimeout(ctx, m.logoutTimeout)
		if err := m.api.Logout(notifyCtx); err != nil {
			backendOK = false
			m.logger.WithContext(ctx).WithError(err).Warn("backend logout failed, clearing local session anyway")
		}
		cancel()
	}

	// The caller's context may already be done; clearing must still happen.
	m.mu.Lock()
	m.epoch++
	m.setLocked(ctx, StateUnauthenticated, nil)
	err = m.store.Clear(context.WithoutCancel(ctx))
	m.mu.Unlock()

	m.metrics.RecordLogout(backendOK)

	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Error("failed to clear stored credential")
		telemetry.RecordError(span, err)
		return err
	}

	telemetry.RecordSuccess(span, attribute.Bool("backend_notified", backendOK))
	return nil
}

// VerifyEmail submits a one-time verification token and, on success,
// re-checks the identity so EmailVerified reflects the server.
func (m *Manager) VerifyEmail(ctx context.Context, token string) error {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "verify_email")
	defer span.End()

	if err := m.raw.VerifyEmail(ctx, token); err != nil {
		if errors.HasCode(err, errors.ErrCodeNetworkFailure) {
			telemetry.RecordError(span, err)
			return err
		}
		verr := errors.NewVerificationFailedError(nil)
		if coded, ok := errors.As(err); ok {
			verr = errors.NewVerificationFailedError(reason(coded)).WithStatus(coded.Status)
		}
		telemetry.RecordError(span, verr)
		m.metrics.RecordError(string(verr.Code))
		return verr
	}

	if err := m.verify(ctx); err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("identity refresh after verification failed")
	}

	telemetry.RecordSuccess(span)
	return nil
}

// ForgotPassword asks the backend to send a password reset email.
func (m *Manager) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "forgot_password")
	defer span.End()

	if err := m.raw.ForgotPassword(ctx, email); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

// ResetPassword sets a new password with a reset token. It does not change
// the session.
func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "reset_password")
	defer span.End()

	if err := m.raw.ResetPassword(ctx, token, newPassword); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.RecordSuccess(span)
	return nil
}

// RefreshIdentity re-runs the identity check so the cached identity reflects
// server state.
func (m *Manager) RefreshIdentity(ctx context.Context) error {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "refresh_identity")
	defer span.End()

	err := m.verify(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

// UpdatePreferences replaces the user's preferences and the cached identity.
func (m *Manager) UpdatePreferences(ctx context.Context, prefs Preferences) (*Identity, error) {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "update_preferences")
	defer span.End()

	m.mu.RLock()
	epoch := m.epoch
	m.mu.RUnlock()

	user, err := m.api.UpdatePreferences(ctx, platform.Preferences{
		Notifications: prefs.Notifications,
		Theme:         prefs.Theme,
		Language:      prefs.Language,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	id := identityFromUser(user)

	m.mu.Lock()
	if m.epoch == epoch && m.state == StateAuthenticated {
		m.user = id
	}
	m.mu.Unlock()

	telemetry.RecordSuccess(span)
	return id.clone(), nil
}

// verify confirms the stored credential with GET /auth/me. No credential means
// Unauthenticated without a network call; any failure means Unauthenticated.
func (m *Manager) verify(ctx context.Context) error {
	m.mu.RLock()
	epoch := m.epoch
	m.mu.RUnlock()

	token, err := m.store.Load(ctx)
	if err != nil {
		m.metrics.RecordIdentityCheck(metrics.OutcomeFailure)
		m.resolve(ctx, epoch, nil)
		return err
	}

	if token == "" {
		m.metrics.RecordIdentityCheck(metrics.OutcomeSkipped)
		m.resolve(ctx, epoch, nil)
		return nil
	}

	user, err := m.api.Me(ctx)
	if err != nil {
		m.metrics.RecordIdentityCheck(metrics.OutcomeFailure)
		m.logger.WithContext(ctx).WithError(err).Debug("identity check failed")
		m.resolve(ctx, epoch, nil)
		return err
	}

	m.metrics.RecordIdentityCheck(metrics.OutcomeSuccess)
	m.resolve(ctx, epoch, identityFromUser(user))
	return nil
}

// resolve applies a check result unless the credential changed meanwhile.
func (m *Manager) resolve(ctx context.Context, epoch uint64, user *Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return
	}
	if user == nil {
		m.setLocked(ctx, StateUnauthenticated, nil)
		return
	}
	m.setLocked(ctx, StateAuthenticated, user)
}

// setLocked changes state and identity. m.mu must be held.
func (m *Manager) setLocked(ctx context.Context, next State, user *Identity) {
	prev := m.state
	m.state = next
	m.user = user

	if prev != next {
		m.metrics.RecordTransition(prev.String(), next.String())
		m.logger.WithContext(ctx).Debug("session state changed", "from", prev.String(), "to", next.String())
	}
}

// Refresh trades a rejected credential for a fresh one and persists it. With
// SingleFlight enabled, concurrent refreshes of the same stale credential
// share one exchange.
func (m *Manager) Refresh(ctx context.Context, stale string) (string, error) {
	if !m.singleFlight {
		return m.exchange(ctx, stale)
	}

	// The shared exchange must not be cut short by whichever caller started it.
	ch := m.refreshes.DoChan(stale, func() (interface{}, error) {
		return m.exchange(context.WithoutCancel(ctx), stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", errors.NewNetworkError("POST /auth/refresh", ctx.Err())
	}
}

func (m *Manager) exchange(ctx context.Context, stale string) (string, error) {
	ctx, span := telemetry.StartSessionSpan(ctx, m.tracer, "refresh")
	defer span.End()

	m.mu.RLock()
	epoch := m.epoch
	current, err := m.store.Load(ctx)
	m.mu.RUnlock()
	if err != nil {
		m.metrics.RecordRefresh(metrics.OutcomeFailure)
		telemetry.RecordError(span, err)
		return "", err
	}

	switch {
	case current == "":
		// Logged out or invalidated while the request was in flight.
		err := errors.NewUnauthorizedError("no stored credential to refresh")
		m.metrics.RecordRefresh(metrics.OutcomeSkipped)
		telemetry.RecordError(span, err)
		return "", err
	case current != stale:
		// Another caller already refreshed.
		m.metrics.RecordRefresh(metrics.OutcomeShared)
		telemetry.RecordSuccess(span, attribute.Bool("shared", true))
		return current, nil
	}

	fresh, err := m.raw.RefreshToken(ctx, stale)
	if err != nil {
		m.metrics.RecordRefresh(metrics.OutcomeFailure)
		telemetry.RecordError(span, err)
		return "", err
	}

	m.mu.Lock()
	if m.epoch != epoch {
		// A login or logout replaced the credential mid-exchange. The caller
		// retries with whatever is stored now; fresh belongs to the old session.
		current, err := m.store.Load(ctx)
		m.mu.Unlock()
		if err == nil && current != "" {
			m.metrics.RecordRefresh(metrics.OutcomeShared)
			telemetry.RecordSuccess(span, attribute.Bool("shared", true))
			return current, nil
		}
		if err == nil {
			err = errors.NewUnauthorizedError("logged out during refresh")
		}
		m.metrics.RecordRefresh(metrics.OutcomeSkipped)
		telemetry.RecordError(span, err)
		return "", err
	}
	err = m.store.Save(ctx, fresh)
	m.mu.Unlock()

	if err != nil {
		m.metrics.RecordRefresh(metrics.OutcomeFailure)
		telemetry.RecordError(span, err)
		return "", err
	}

	m.metrics.RecordRefresh(metrics.OutcomeSuccess)
	telemetry.RecordSuccess(span)
	m.logger.WithContext(ctx).Debug("credential refreshed")
	return fresh, nil
}

// Invalidate drops the session after the backend rejected the credential
// and refresh could not recover it. A session that no longer holds rejected,
// because a login replaced it meanwhile, is left alone. OnUnauthorized hooks
// run once per lost session.
func (m *Manager) Invalidate(ctx context.Context, rejected string, cause error) {
	m.mu.Lock()
	stored, err := m.store.Load(ctx)
	if err != nil {
		m.logger.WithContext(ctx).WithError(err).Warn("could not read credential before invalidating")
	}
	if stored != "" && stored != rejected {
		m.mu.Unlock()
		m.logger.WithContext(ctx).Debug("rejected credential already replaced, keeping session")
		return
	}

	active := m.state == StateAuthenticated || stored != ""
	m.epoch++
	m.setLocked(ctx, StateUnauthenticated, nil)
	if err := m.store.Clear(context.WithoutCancel(ctx)); err != nil {
		m.logger.WithContext(ctx).WithError(err).Error("failed to clear rejected credential")
	}
	hooks := slices.Clone(m.onUnauthorized)
	m.mu.Unlock()

	if !active {
		return
	}

	m.metrics.RecordError(string(errors.ErrCodeUnauthorized))
	m.logger.WithContext(ctx).Warn("session expired, sign in again")
	for _, fn := range hooks {
		fn(cause)
	}
}
