package session

import (
	"strings"
	"time"

	"github.com/felixgeelhaar/reimburse/internal/platform"
)

// Preferences are the user's display settings.
type Preferences struct {
	Notifications bool   `json:"notifications" yaml:"notifications"`
	Theme         string `json:"theme,omitempty" yaml:"theme,omitempty"`
	Language      string `json:"language,omitempty" yaml:"language,omitempty"`
}

// Identity is a read-only snapshot of the signed-in user as last confirmed by
// the backend. Callers always receive copies.
type Identity struct {
	ID            string       `json:"id" yaml:"id"`
	Email         string       `json:"email" yaml:"email"`
	FirstName     string       `json:"firstName" yaml:"first_name"`
	LastName      string       `json:"lastName" yaml:"last_name"`
	Role          string       `json:"role" yaml:"role"`
	Company       string       `json:"company,omitempty" yaml:"company,omitempty"`
	EmailVerified bool         `json:"emailVerified" yaml:"email_verified"`
	CreatedAt     time.Time    `json:"createdAt" yaml:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" yaml:"updated_at"`
	Preferences   *Preferences `json:"preferences,omitempty" yaml:"preferences,omitempty"`
}

// Name returns "First Last", falling back to the email.
func (i *Identity) Name() string {
	name := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if name == "" {
		return i.Email
	}
	return name
}

// IsAdmin reports whether the user holds the ADMIN role.
func (i *Identity) IsAdmin() bool {
	return i.Role == platform.RoleAdmin
}

func (i *Identity) clone() *Identity {
	if i == nil {
		return nil
	}
	cp := *i
	if i.Preferences != nil {
		prefs := *i.Preferences
		cp.Preferences = &prefs
	}
	return &cp
}

func identityFromUser(u *platform.User) *Identity {
	id := &Identity{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Role:          u.Role,
		Company:       u.Company,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if u.Preferences != nil {
		id.Preferences = &Preferences{
			Notifications: u.Preferences.Notifications,
			Theme:         u.Preferences.Theme,
			Language:      u.Preferences.Language,
		}
	}
	return id
}
