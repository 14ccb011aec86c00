package platform

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Notification types.
const (
	NotificationReimbursementStatus = "REIMBURSEMENT_STATUS"
	NotificationTeamInvitation      = "TEAM_INVITATION"
	NotificationBudgetAlert         = "BUDGET_ALERT"
	NotificationComment             = "COMMENT"
	NotificationMention             = "MENTION"
)

// Notification is a message for the caller or one of their teams
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId,omitempty"`
	TeamID    string                 `json:"teamId,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
}

// NotificationPage is one page of the caller's notifications.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
}

// NotificationFilter narrows the notification list. Zero fields are omitted.
type NotificationFilter struct {
	Read   *bool
	Type   string
	Limit  int
	Offset int
}

func (f NotificationFilter) values() url.Values {
	v := url.Values{}
	if f.Read != nil {
		v.Set("read", strconv.FormatBool(*f.Read))
	}
	if f.Type != "" {
		v.Set("type", f.Type)
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		v.Set("offset", strconv.Itoa(f.Offset))
	}
	return v
}

// ChannelPreferences selects which notification kinds a channel delivers.
type ChannelPreferences struct {
	ReimbursementUpdates bool `json:"reimbursementUpdates"`
	TeamInvitations      bool `json:"teamInvitations"`
	BudgetAlerts         bool `json:"budgetAlerts"`
	Comments             bool `json:"comments"`
	Mentions             bool `json:"mentions"`
}

// NotificationPreferences holds the per-channel delivery settings.
type NotificationPreferences struct {
	Email ChannelPreferences `json:"email"`
	InApp ChannelPreferences `json:"inApp"`
}

// ListNotifications returns a page of the caller's notifications.
func (c *Client) ListNotifications(ctx context.Context, filter NotificationFilter) (*NotificationPage, error) {
	cl, err := newCall(http.MethodGet, "/notifications", nil)
	if err != nil {
		return nil, err
	}
	cl.query = filter.values()

	var page NotificationPage
	if err := c.do(ctx, cl.authed(), &page); err != nil {
		return nil, err
	}

	return &page, nil
}

// ListTeamNotifications returns the notifications posted to a team.
func (c *Client) ListTeamNotifications(ctx context.Context, teamID string) ([]Notification, error) {
	cl, err := newCall(http.MethodGet, teamPath(teamID, "notifications"), nil)
	if err != nil {
		return nil, err
	}

	var list []Notification
	if err := c.do(ctx, cl.authed(), &list); err != nil {
		return nil, err
	}

	return list, nil
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.notificationAction(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read")
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.notificationAction(ctx, http.MethodPut, "/notifications/read-all")
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, id string) error {
	return c.notificationAction(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id))
}

func (c *Client) notificationAction(ctx context.Context, method, path string) error {
	cl, err := newCall(method, path, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, cl.authed(), nil)
}

// GetNotificationPreferences returns the caller's delivery settings.
func (c *Client) GetNotificationPreferences(ctx context.Context) (*NotificationPreferences, error) {
	return c.notificationPreferences(ctx, http.MethodGet, nil)
}

// UpdateNotificationPreferences replaces the caller's delivery settings.
func (c *Client) UpdateNotificationPreferences(ctx context.Context, prefs NotificationPreferences) (*NotificationPreferences, error) {
	return c.notificationPreferences(ctx, http.MethodPut, prefs)
}

func (c *Client) notificationPreferences(ctx context.Context, method string, body interface{}) (*NotificationPreferences, error) {
	cl, err := newCall(method, "/notifications/preferences", body)
	if err != nil {
		return nil, err
	}

	var prefs NotificationPreferences
	if err := c.do(ctx, cl.authed(), &prefs); err != nil {
		return nil, err
	}

	return &prefs, nil
}
