package platform

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Team represents a team and its members
type Team struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedBy   string       `json:"createdBy"`
	Members     []TeamMember `json:"members,omitempty"`
	Budget      *TeamBudget  `json:"budget,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TeamMember is a user's membership in a team
type TeamMember struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"teamId"`
	UserID   string    `json:"userId"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
	User     *User     `json:"user,omitempty"`
}

// Team member roles.
const (
	TeamRoleMember = "MEMBER"
	TeamRoleAdmin  = "ADMIN"
)

// TeamInvitation is a pending invitation to join a team
type TeamInvitation struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
	Team      *Team     `json:"team,omitempty"`
}

// Budget periods.
const (
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

// TeamBudget is a team's spending allowance for a period
type TeamBudget struct {
	ID        string    `json:"id"`
	TeamID    string    `json:"teamId"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Period    string    `json:"period"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Spent     float64   `json:"spent"`
	Remaining float64   `json:"remaining"`
	Status    string    `json:"status"`
}

// ListTeams returns the teams visible to the caller.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	cl, err := newCall(http.MethodGet, "/teams", nil)
	if err != nil {
		return nil, err
	}

	var teams []Team
	if err := c.do(ctx, cl.authed(), &teams); err != nil {
		return nil, err
	}

	return teams, nil
}

// GetTeam returns a team by ID.
func (c *Client) GetTeam(ctx context.Context, id string) (*Team, error) {
	cl, err := newCall(http.MethodGet, "/teams/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var team Team
	if err := c.do(ctx, cl.authed(), &team); err != nil {
		return nil, err
	}

	return &team, nil
}

// GetTeamBudget returns a team's budget, optionally for a specific period.
func (c *Client) GetTeamBudget(ctx context.Context, id, period string) (*TeamBudget, error) {
	cl, err := newCall(http.MethodGet, teamPath(id, "budget"), nil)
	if err != nil {
		return nil, err
	}
	if period != "" {
		cl.query = url.Values{"period": {period}}
	}

	var budget TeamBudget
	if err := c.do(ctx, cl.authed(), &budget); err != nil {
		return nil, err
	}

	return &budget, nil
}

// BudgetInput sets a team's spending allowance.
type BudgetInput struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Period   string  `json:"period"`
}

// TeamInput creates or updates a team. Zero fields are left unchanged on update.
type TeamInput struct {
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	Budget      *BudgetInput `json:"budget,omitempty"`
}

// Invitation asks someone to join a team. ExpiresIn is in hours; zero uses
// the backend default.
type Invitation struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

// TeamAnalytics breaks a team's spending down by category, member and month.
type TeamAnalytics struct {
	TotalExpenses      float64 `json:"totalExpenses"`
	ExpensesByCategory []struct {
		Category   string  `json:"category"`
		Amount     float64 `json:"amount"`
		Percentage float64 `json:"percentage"`
	} `json:"expensesByCategory"`
	ExpensesByMember []struct {
		UserID     string  `json:"userId"`
		UserName   string  `json:"userName"`
		Amount     float64 `json:"amount"`
		Percentage float64 `json:"percentage"`
	} `json:"expensesByMember"`
	ExpensesByMonth []struct {
		Month  string  `json:"month"`
		Amount float64 `json:"amount"`
		Trend  float64 `json:"trend"`
	} `json:"expensesByMonth"`
	BudgetUtilization struct {
		Allocated  float64 `json:"allocated"`
		Spent      float64 `json:"spent"`
		Remaining  float64 `json:"remaining"`
		Percentage float64 `json:"percentage"`
	} `json:"budgetUtilization"`
}

// TeamAnalyticsFilter narrows team analytics. Zero fields are omitted.
type TeamAnalyticsFilter struct {
	StartDate time.Time
	EndDate   time.Time
	GroupBy   string
}

func (f TeamAnalyticsFilter) values() url.Values {
	return ReimbursementFilter{StartDate: f.StartDate, EndDate: f.EndDate, GroupBy: f.GroupBy}.values()
}

func teamPath(id string, rest ...string) string {
	p := "/teams/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

// CreateTeam creates a team owned by the caller.
func (c *Client) CreateTeam(ctx context.Context, in TeamInput) (*Team, error) {
	return c.sendTeam(ctx, http.MethodPost, "/teams", in)
}

// UpdateTeam changes a team's name, description or budget.
func (c *Client) UpdateTeam(ctx context.Context, id string, in TeamInput) (*Team, error) {
	return c.sendTeam(ctx, http.MethodPut, teamPath(id), in)
}

func (c *Client) sendTeam(ctx context.Context, method, path string, in TeamInput) (*Team, error) {
	cl, err := newCall(method, path, in)
	if err != nil {
		return nil, err
	}

	var team Team
	if err := c.do(ctx, cl.authed(), &team); err != nil {
		return nil, err
	}

	return &team, nil
}

// DeleteTeam removes a team.
func (c *Client) DeleteTeam(ctx context.Context, id string) error {
	cl, err := newCall(http.MethodDelete, teamPath(id), nil)
	if err != nil {
		return err
	}
	return c.do(ctx, cl.authed(), nil)
}

// ListTeamMembers returns a team's members.
func (c *Client) ListTeamMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	cl, err := newCall(http.MethodGet, teamPath(teamID, "members"), nil)
	if err != nil {
		return nil, err
	}

	var members []TeamMember
	if err := c.do(ctx, cl.authed(), &members); err != nil {
		return nil, err
	}

	return members, nil
}

type memberRole struct {
	UserID string `json:"userId,omitempty"`
	Role   string `json:"role"`
}

// AddTeamMember adds an existing user to a team.
func (c *Client) AddTeamMember(ctx context.Context, teamID, userID, role string) (*TeamMember, error) {
	return c.sendMember(ctx, http.MethodPost, teamPath(teamID, "members"), memberRole{UserID: userID, Role: role})
}

// UpdateTeamMember changes a member's role.
func (c *Client) UpdateTeamMember(ctx context.Context, teamID, userID, role string) (*TeamMember, error) {
	return c.sendMember(ctx, http.MethodPut, teamPath(teamID, "members", url.PathEscape(userID)), memberRole{Role: role})
}

func (c *Client) sendMember(ctx context.Context, method, path string, body interface{}) (*TeamMember, error) {
	cl, err := newCall(method, path, body)
	if err != nil {
		return nil, err
	}

	var member TeamMember
	if err := c.do(ctx, cl.authed(), &member); err != nil {
		return nil, err
	}

	return &member, nil
}

// RemoveTeamMember removes a user from a team.
func (c *Client) RemoveTeamMember(ctx context.Context, teamID, userID string) error {
	cl, err := newCall(http.MethodDelete, teamPath(teamID, "members", url.PathEscape(userID)), nil)
	if err != nil {
		return err
	}
	return c.do(ctx, cl.authed(), nil)
}

// InviteToTeam invites an email address to join a team.
func (c *Client) InviteToTeam(ctx context.Context, teamID string, inv Invitation) (*TeamInvitation, error) {
	cl, err := newCall(http.MethodPost, teamPath(teamID, "invitations"), inv)
	if err != nil {
		return nil, err
	}

	var invitation TeamInvitation
	if err := c.do(ctx, cl.authed(), &invitation); err != nil {
		return nil, err
	}

	return &invitation, nil
}

// AcceptInvitation joins the team the invitation is for.
func (c *Client) AcceptInvitation(ctx context.Context, invitationID string) (*TeamMember, error) {
	return c.sendMember(ctx, http.MethodPost, "/teams/invitations/"+url.PathEscape(invitationID)+"/accept", nil)
}

// RejectInvitation declines an invitation.
func (c *Client) RejectInvitation(ctx context.Context, invitationID string) error {
	cl, err := newCall(http.MethodPost, "/teams/invitations/"+url.PathEscape(invitationID)+"/reject", nil)
	if err != nil {
		return err
	}
	return c.do(ctx, cl.authed(), nil)
}

// UpdateTeamBudget replaces a team's budget.
func (c *Client) UpdateTeamBudget(ctx context.Context, teamID string, in BudgetInput) (*TeamBudget, error) {
	cl, err := newCall(http.MethodPut, teamPath(teamID, "budget"), in)
	if err != nil {
		return nil, err
	}

	var budget TeamBudget
	if err := c.do(ctx, cl.authed(), &budget); err != nil {
		return nil, err
	}

	return &budget, nil
}

// GetTeamAnalytics returns a team's spending breakdown.
func (c *Client) GetTeamAnalytics(ctx context.Context, teamID string, filter TeamAnalyticsFilter) (*TeamAnalytics, error) {
	cl, err := newCall(http.MethodGet, teamPath(teamID, "analytics"), nil)
	if err != nil {
		return nil, err
	}
	cl.query = filter.values()

	var out TeamAnalytics
	if err := c.do(ctx, cl.authed(), &out); err != nil {
		return nil, err
	}

	return &out, nil
}
