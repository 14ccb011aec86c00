package platform

import (
	"context"
	"net/http"
	"net/url"
)

// ProfileUpdate holds the editable profile fields.
type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Company   string `json:"company,omitempty"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// GetProfile returns the caller's profile.
func (c *Client) GetProfile(ctx context.Context) (*User, error) {
	return c.getUser(ctx, "/users/me")
}

// UpdateProfile edits the caller's profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	cl, err := newCall(http.MethodPut, "/users/profile", update)
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, cl.authed(), &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// ChangePassword changes the caller's password.
func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	cl, err := newCall(http.MethodPut, "/users/change-password", changePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, cl.authed(), nil)
}

// ListUsers returns all users (admin only).
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	cl, err := newCall(http.MethodGet, "/users", nil)
	if err != nil {
		return nil, err
	}

	var users []User
	if err := c.do(ctx, cl.authed(), &users); err != nil {
		return nil, err
	}

	return users, nil
}

// GetUser returns a user by ID.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	return c.getUser(ctx, "/users/"+url.PathEscape(id))
}

// UpdateUserRole changes a user's role (admin only).
func (c *Client) UpdateUserRole(ctx context.Context, id, role string) (*User, error) {
	cl, err := newCall(http.MethodPut, "/users/"+url.PathEscape(id)+"/role", roleRequest{Role: role})
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, cl.authed(), &user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (c *Client) getUser(ctx context.Context, path string) (*User, error) {
	cl, err := newCall(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var user User
	if err := c.do(ctx, cl.authed(), &user); err != nil {
		return nil, err
	}

	return &user, nil
}
