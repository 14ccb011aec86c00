package platform

import (
	"context"
	"net/http"
	"time"

	"github.com/felixgeelhaar/reimburse/internal/errors"
)

// Roles returned by the backend. USER and EMPLOYEE are the same role under
// the two names different backend versions use.
const (
	RoleEmployee = "EMPLOYEE"
	RoleUser     = "USER"
	RoleAdmin    = "ADMIN"
)

// User represents a backend user record
type User struct {
	ID            string       `json:"id"`
	Email         string       `json:"email"`
	FirstName     string       `json:"firstName"`
	LastName      string       `json:"lastName"`
	Role          string       `json:"role"`
	Company       string       `json:"company,omitempty"`
	EmailVerified bool         `json:"emailVerified"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Preferences   *Preferences `json:"preferences,omitempty"`
}

// Preferences are per-user display settings.
type Preferences struct {
	Notifications bool   `json:"notifications"`
	Theme         string `json:"theme,omitempty"`
	Language      string `json:"language,omitempty"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// RegisterRequest represents a new-account request
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Company   string `json:"company,omitempty"`
}

type refreshResponse struct {
	Token string `json:"token"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

// resetPasswordRequest sends the new password under both field names the
// backend versions accept.
type resetPasswordRequest struct {
	Token       string `json:"token"`
	Password    string `json:"password"`
	NewPassword string `json:"newPassword"`
}

type preferencesRequest struct {
	Preferences Preferences `json:"preferences"`
}

// Login exchanges email and password for a credential and the user record.
// It never runs the refresh protocol.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	cl, err := newCall(http.MethodPost, "/auth/login", LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	var loginResp LoginResponse
	if err := c.do(ctx, cl, &loginResp); err != nil {
		return nil, err
	}

	if loginResp.Token == "" {
		return nil, errors.New(errors.ErrCodeDecodeFailed, "login response did not include a token")
	}

	return &loginResp, nil
}

// Register creates a new account. It does not sign the caller in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	cl, err := newCall(http.MethodPost, "/auth/register", req)
	if err != nil {
		return err
	}
	return c.do(ctx, cl, nil)
}

// Logout asks the backend to end the server-side session. A rejected
// credential is not refreshed first.
func (c *Client) Logout(ctx context.Context) error {
	cl, err := newCall(http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	cl.authenticated = true
	return c.do(ctx, cl, nil)
}

// Me returns the user the current credential belongs to.
func (c *Client) Me(ctx context.Context) (*User, error) {
	cl, err := newCall(http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, cl.authed(), &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// RefreshToken performs the refresh exchange with the stale credential as
// bearer. It bypasses the refresh-and-retry protocol.
func (c *Client) RefreshToken(ctx context.Context, stale string) (string, error) {
	cl, err := newCall(http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return "", err
	}
	cl.bearer = stale

	var resp refreshResponse
	if err := c.do(ctx, cl, &resp); err != nil {
		return "", err
	}

	if resp.Token == "" {
		return "", errors.NewUnauthorizedError("refresh response did not include a token")
	}

	return resp.Token, nil
}

// ForgotPassword requests a password reset email.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	cl, err := newCall(http.MethodPost, "/auth/forgot-password", emailRequest{Email: email})
	if err != nil {
		return err
	}
	return c.do(ctx, cl, nil)
}

// ResetPassword sets a new password using a reset token.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	cl, err := newCall(http.MethodPost, "/auth/reset-password", resetPasswordRequest{
		Token:       token,
		Password:    newPassword,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, cl, nil)
}

// VerifyEmail submits a one-time email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	cl, err := newCall(http.MethodPost, "/auth/verify-email", tokenRequest{Token: token})
	if err != nil {
		return err
	}
	return c.do(ctx, cl, nil)
}

// UpdatePreferences replaces the caller's preferences and returns the updated user.
func (c *Client) UpdatePreferences(ctx context.Context, prefs Preferences) (*User, error) {
	cl, err := newCall(http.MethodPatch, "/auth/preferences", preferencesRequest{Preferences: prefs})
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, cl.authed(), &user); err != nil {
		return nil, err
	}

	return &user, nil
}
