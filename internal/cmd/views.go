package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/reimburse/internal/platform"
	"github.com/felixgeelhaar/reimburse/internal/session"
	"github.com/felixgeelhaar/reimburse/internal/ux"
)

// statusResult is the output of commands that change state without
// returning data.
type statusResult struct {
	Status  string `json:"status" yaml:"status"`
	Message string `json:"message" yaml:"message"`
	Hint    string `json:"hint,omitempty" yaml:"hint,omitempty"`
}

func (r statusResult) RenderText(p *ux.Printer) error {
	p.Success("%s", r.Message)
	if r.Hint != "" {
		p.Hint("%s", r.Hint)
	}
	return nil
}

type identityView struct {
	session.Identity `yaml:",inline"`
}

func (v identityView) RenderText(p *ux.Printer) error {
	p.Details(identityFields(&v.Identity)...)
	return nil
}

func identityFields(id *session.Identity) []ux.Field {
	fields := []ux.Field{
		{Key: "Name", Value: id.Name()},
		{Key: "Email", Value: id.Email},
		{Key: "Role", Value: id.Role},
		{Key: "Company", Value: id.Company},
		{Key: "Verified", Value: yesNo(id.EmailVerified)},
	}
	if id.Preferences != nil {
		fields = append(fields,
			ux.Field{Key: "Theme", Value: id.Preferences.Theme},
			ux.Field{Key: "Language", Value: id.Preferences.Language},
			ux.Field{Key: "Notifications", Value: onOff(id.Preferences.Notifications)},
		)
	}
	return fields
}

type loginView struct {
	identityView `yaml:",inline"`
}

func (v loginView) RenderText(p *ux.Printer) error {
	p.Success("Logged in as %s (%s)", v.Name(), v.Email)
	if !v.EmailVerified {
		p.Warn("Your email address is not verified yet.")
		p.Hint("Check your inbox, then run 'reimburse auth verify-email --token <token>'.")
	}
	return nil
}

type sessionStatus struct {
	State     string            `json:"state" yaml:"state"`
	User      *session.Identity `json:"user,omitempty" yaml:"user,omitempty"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty" yaml:"expires_at,omitempty"`
	APIURL    string            `json:"apiUrl" yaml:"api_url"`
	Store     string            `json:"store" yaml:"store"`
}

func (s sessionStatus) RenderText(p *ux.Printer) error {
	if s.User == nil {
		p.Warn("Not logged in")
		p.Hint("Run 'reimburse auth login' to sign in.")
		return nil
	}

	p.Success("Logged in as %s", s.User.Name())
	fields := identityFields(s.User)
	if s.ExpiresAt != nil {
		fields = append(fields, ux.Field{Key: "Expires", Value: s.ExpiresAt.Local().Format(time.RFC1123)})
	}
	fields = append(fields,
		ux.Field{Key: "Backend", Value: s.APIURL},
		ux.Field{Key: "Store", Value: s.Store},
	)
	p.Details(fields...)
	return nil
}

type userList []platform.User

func (l userList) RenderText(p *ux.Printer) error {
	rows := make([][]string, 0, len(l))
	for _, u := range l {
		rows = append(rows, []string{u.ID, strings.TrimSpace(u.FirstName + " " + u.LastName), u.Email, u.Role, yesNo(u.EmailVerified)})
	}
	p.Table([]string{"ID", "NAME", "EMAIL", "ROLE", "VERIFIED"}, rows, "No users found")
	return nil
}

type userView struct {
	platform.User `yaml:",inline"`
}

func (v userView) RenderText(p *ux.Printer) error {
	p.Details(
		ux.Field{Key: "ID", Value: v.ID},
		ux.Field{Key: "Name", Value: strings.TrimSpace(v.FirstName + " " + v.LastName)},
		ux.Field{Key: "Email", Value: v.Email},
		ux.Field{Key: "Role", Value: v.Role},
		ux.Field{Key: "Company", Value: v.Company},
		ux.Field{Key: "Verified", Value: yesNo(v.EmailVerified)},
	)
	return nil
}

type reimbursementList []platform.Reimbursement

func (l reimbursementList) RenderText(p *ux.Printer) error {
	rows := make([][]string, 0, len(l))
	for _, r := range l {
		rows = append(rows, []string{r.ID, formatDate(r.SubmittedAt), r.Category, formatAmount(r.Amount), r.Status, r.Description})
	}
	p.Table([]string{"ID", "SUBMITTED", "CATEGORY", "AMOUNT", "STATUS", "DESCRIPTION"}, rows, "No reimbursements found")
	return nil
}

type reimbursementView struct {
	platform.Reimbursement `yaml:",inline"`
}

func (v reimbursementView) RenderText(p *ux.Printer) error {
	fields := []ux.Field{
		{Key: "ID", Value: v.ID},
		{Key: "Status", Value: v.Status},
		{Key: "Amount", Value: formatAmount(v.Amount)},
		{Key: "Category", Value: v.Category},
		{Key: "Description", Value: v.Description},
		{Key: "Receipt", Value: v.ReceiptURL},
		{Key: "Submitted", Value: formatDate(v.SubmittedAt)},
		{Key: "Feedback", Value: v.Feedback},
	}
	if v.SubmittedBy != nil {
		fields = append(fields, ux.Field{Key: "Submitted by", Value: v.SubmittedBy.Email})
	}
	if v.ApprovedBy != nil {
		fields = append(fields, ux.Field{Key: "Reviewed by", Value: v.ApprovedBy.Email})
	}
	p.Details(fields...)
	return nil
}

type analyticsView map[string]interface{}

func (v analyticsView) RenderText(p *ux.Printer) error {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]ux.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, ux.Field{Key: k, Value: fmt.Sprint(v[k])})
	}
	p.Details(fields...)
	return nil
}

type teamList []platform.Team

func (l teamList) RenderText(p *ux.Printer) error {
	rows := make([][]string, 0, len(l))
	for _, t := range l {
		rows = append(rows, []string{t.ID, t.Name, fmt.Sprint(len(t.Members))})
	}
	p.Table([]string{"ID", "NAME", "MEMBERS"}, rows, "No teams found")
	return nil
}

type teamView struct {
	platform.Team `yaml:",inline"`
}

func (v teamView) RenderText(p *ux.Printer) error {
	p.Details(
		ux.Field{Key: "ID", Value: v.ID},
		ux.Field{Key: "Name", Value: v.Name},
		ux.Field{Key: "Description", Value: v.Description},
	)

	rows := make([][]string, 0, len(v.Members))
	for _, m := range v.Members {
		email := ""
		if m.User != nil {
			email = m.User.Email
		}
		rows = append(rows, []string{m.UserID, email, m.Role})
	}
	p.Table([]string{"USER", "EMAIL", "ROLE"}, rows, "No members")
	return nil
}

type budgetView struct {
	platform.TeamBudget `yaml:",inline"`
}

func (v budgetView) RenderText(p *ux.Printer) error {
	p.Details(
		ux.Field{Key: "Team", Value: v.TeamID},
		ux.Field{Key: "Period", Value: v.Period},
		ux.Field{Key: "Budget", Value: formatMoney(v.Amount, v.Currency)},
		ux.Field{Key: "Spent", Value: formatMoney(v.Spent, v.Currency)},
		ux.Field{Key: "Remaining", Value: formatMoney(v.Remaining, v.Currency)},
	)
	return nil
}

type memberList []platform.TeamMember

func (l memberList) RenderText(p *ux.Printer) error {
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		name, email := "", ""
		if m.User != nil {
			name = strings.TrimSpace(m.User.FirstName + " " + m.User.LastName)
			email = m.User.Email
		}
		rows = append(rows, []string{m.UserID, name, email, m.Role, formatDate(m.JoinedAt)})
	}
	p.Table([]string{"USER", "NAME", "EMAIL", "ROLE", "JOINED"}, rows, "No members")
	return nil
}

type invitationView struct {
	platform.TeamInvitation `yaml:",inline"`
}

func (v invitationView) RenderText(p *ux.Printer) error {
	p.Success("Invited %s to team %s", v.Email, v.TeamID)
	p.Details(
		ux.Field{Key: "Invitation", Value: v.ID},
		ux.Field{Key: "Role", Value: v.Role},
		ux.Field{Key: "Status", Value: v.Status},
		ux.Field{Key: "Expires", Value: formatDate(v.ExpiresAt)},
	)
	return nil
}

type teamAnalyticsView struct {
	platform.TeamAnalytics `yaml:",inline"`
}

func (v teamAnalyticsView) RenderText(p *ux.Printer) error {
	u := v.BudgetUtilization
	p.Details(
		ux.Field{Key: "Total", Value: formatAmount(v.TotalExpenses)},
		ux.Field{Key: "Budget", Value: formatAmount(u.Allocated)},
		ux.Field{Key: "Spent", Value: formatAmount(u.Spent)},
		ux.Field{Key: "Remaining", Value: formatAmount(u.Remaining)},
		ux.Field{Key: "Used", Value: fmt.Sprintf("%.0f%%", u.Percentage)},
	)

	rows := make([][]string, 0, len(v.ExpensesByCategory))
	for _, c := range v.ExpensesByCategory {
		rows = append(rows, []string{c.Category, formatAmount(c.Amount), fmt.Sprintf("%.0f%%", c.Percentage)})
	}
	p.Table([]string{"CATEGORY", "AMOUNT", "SHARE"}, rows, "No expenses by category")

	rows = make([][]string, 0, len(v.ExpensesByMember))
	for _, m := range v.ExpensesByMember {
		rows = append(rows, []string{m.UserName, formatAmount(m.Amount), fmt.Sprintf("%.0f%%", m.Percentage)})
	}
	p.Table([]string{"MEMBER", "AMOUNT", "SHARE"}, rows, "No expenses by member")
	return nil
}

type notificationList platform.NotificationPage

func (l notificationList) RenderText(p *ux.Printer) error {
	rows := make([][]string, 0, len(l.Notifications))
	for _, n := range l.Notifications {
		unread := ""
		if !n.Read {
			unread = "*"
		}
		rows = append(rows, []string{unread, n.ID, formatDate(n.CreatedAt), n.Type, n.Title})
	}
	p.Table([]string{"", "ID", "DATE", "TYPE", "TITLE"}, rows, "No notifications")
	if l.Total > len(l.Notifications) {
		p.Hint("Showing %d of %d. Use --offset to see more.", len(l.Notifications), l.Total)
	}
	return nil
}

type notificationPrefsView struct {
	platform.NotificationPreferences `yaml:",inline"`
}

func (v notificationPrefsView) RenderText(p *ux.Printer) error {
	row := func(kind string, email, inApp bool) []string {
		return []string{kind, onOff(email), onOff(inApp)}
	}
	e, a := v.Email, v.InApp
	p.Table([]string{"KIND", "EMAIL", "IN-APP"}, [][]string{
		row("reimbursement updates", e.ReimbursementUpdates, a.ReimbursementUpdates),
		row("team invitations", e.TeamInvitations, a.TeamInvitations),
		row("budget alerts", e.BudgetAlerts, a.BudgetAlerts),
		row("comments", e.Comments, a.Comments),
		row("mentions", e.Mentions, a.Mentions),
	}, "")
	return nil
}

func formatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

func formatMoney(amount float64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%.2f %s", amount, currency))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
