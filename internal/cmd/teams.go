package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/platform"
	"github.com/felixgeelhaar/reimburse/internal/tui"
)

func newTeamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "Manage teams, members and budgets",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List your teams",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				teams, err := app.API().ListTeams(cmd.Context())
				if err != nil {
					return err
				}
				return app.Render(teamList(teams))
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show a team and its members",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				team, err := app.API().GetTeam(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return app.Render(teamView{*team})
			},
		},
		newTeamCreateCmd(),
		newTeamUpdateCmd(),
		newTeamDeleteCmd(),
		newTeamMembersCmd(),
		newTeamInviteCmd(),
		newTeamInvitationsCmd(),
		newTeamBudgetCmd(),
		newTeamSetBudgetCmd(),
		newTeamAnalyticsCmd(),
	)

	return cmd
}

func newTeamBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget <id>",
		Short: "Show a team's budget and spending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			period, _ := cmd.Flags().GetString("period")

			if period != "" {
				if err := checkPeriod(period); err != nil {
					return err
				}
			}

			budget, err := app.API().GetTeamBudget(cmd.Context(), args[0], period)
			if err != nil {
				return err
			}
			return app.Render(budgetView{*budget})
		},
	}

	cmd.Flags().String("period", "", "budget period (month, quarter, year)")

	return cmd
}

func checkPeriod(period string) error {
	switch period {
	case platform.PeriodMonth, platform.PeriodQuarter, platform.PeriodYear:
		return nil
	default:
		return errors.NewValidationError(fmt.Sprintf("unknown period %q", period), 0).
			WithSuggestion("Use one of month, quarter, year")
	}
}

func teamRole(raw string) (string, error) {
	role := strings.ToUpper(raw)
	switch role {
	case platform.TeamRoleMember, platform.TeamRoleAdmin:
		return role, nil
	default:
		return "", errors.NewValidationError(fmt.Sprintf("unknown team role %q", raw), 0).
			WithSuggestion("Use MEMBER or ADMIN")
	}
}

func addBudgetFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("amount", 0, "budget amount")
	cmd.Flags().String("currency", "USD", "budget currency")
	cmd.Flags().String("period", platform.PeriodMonth, "budget period (month, quarter, year)")
}

func readBudget(cmd *cobra.Command) (platform.BudgetInput, error) {
	amount, _ := cmd.Flags().GetFloat64("amount")
	currency, _ := cmd.Flags().GetString("currency")
	period, _ := cmd.Flags().GetString("period")

	in := platform.BudgetInput{Amount: amount, Currency: strings.ToUpper(currency), Period: period}
	if in.Amount <= 0 {
		return in, errors.NewValidationError("budget amount must be greater than zero", 0)
	}
	if in.Currency == "" {
		return in, errors.NewValidationError("budget currency must not be empty", 0)
	}
	return in, checkPeriod(in.Period)
}

func newTeamCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a team",
		Long: `Create a team. Pass --amount to give it a budget right away.

Examples:
  reimburse teams create Platform
  reimburse teams create Platform --description "Infra and tooling" --amount 5000 --period quarter`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			description, _ := cmd.Flags().GetString("description")

			in := platform.TeamInput{Name: strings.TrimSpace(args[0]), Description: description}
			if in.Name == "" {
				return errors.NewValidationError("team name must not be empty", 0)
			}
			if cmd.Flags().Changed("amount") {
				budget, err := readBudget(cmd)
				if err != nil {
					return err
				}
				in.Budget = &budget
			}

			team, err := app.API().CreateTeam(cmd.Context(), in)
			if err != nil {
				return err
			}

			app.Logger.Info("Team created", "id", team.ID)
			return app.Render(teamView{*team})
		},
	}

	cmd.Flags().String("description", "", "what the team does")
	addBudgetFlags(cmd)

	return cmd
}

func newTeamUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename a team or change its description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			name, _ := cmd.Flags().GetString("name")
			description, _ := cmd.Flags().GetString("description")

			in := platform.TeamInput{Name: strings.TrimSpace(name), Description: description}
			if in == (platform.TeamInput{}) {
				return errors.NewValidationError("nothing to update", 0).
					WithSuggestion("Pass --name or --description")
			}

			team, err := app.API().UpdateTeam(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return app.Render(teamView{*team})
		},
	}

	cmd.Flags().String("name", "", "new team name")
	cmd.Flags().String("description", "", "new description")

	return cmd
}

func newTeamDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			yes, _ := cmd.Flags().GetBool("yes")

			if !yes {
				if !tui.ShouldPrompt() {
					return errors.NewValidationError("refusing to delete without confirmation", 0).
						WithSuggestion("Pass --yes to delete the team")
				}
				ok, err := tui.PromptForConfirmation(fmt.Sprintf("Delete team %s?", args[0]), false)
				if err != nil {
					return err
				}
				if !ok {
					return app.Render(statusResult{Status: "cancelled", Message: "Team kept"})
				}
			}

			if err := app.API().DeleteTeam(cmd.Context(), args[0]); err != nil {
				return err
			}
			return app.Render(statusResult{Status: "deleted", Message: fmt.Sprintf("Deleted team %s", args[0])})
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "delete without asking")

	return cmd
}

func newTeamMembersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members <team-id>",
		Short: "List or change a team's members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			members, err := app.API().ListTeamMembers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return app.Render(memberList(members))
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <team-id> <user-id> [MEMBER|ADMIN]",
			Short: "Add a user to a team",
			Args:  cobra.RangeArgs(2, 3),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				raw := platform.TeamRoleMember
				if len(args) == 3 {
					raw = args[2]
				}
				role, err := teamRole(raw)
				if err != nil {
					return err
				}

				member, err := app.API().AddTeamMember(cmd.Context(), args[0], args[1], role)
				if err != nil {
					return err
				}
				return app.Render(memberList{*member})
			},
		},
		&cobra.Command{
			Use:   "set-role <team-id> <user-id> <MEMBER|ADMIN>",
			Short: "Change a member's role",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				role, err := teamRole(args[2])
				if err != nil {
					return err
				}

				member, err := app.API().UpdateTeamMember(cmd.Context(), args[0], args[1], role)
				if err != nil {
					return err
				}
				return app.Render(memberList{*member})
			},
		},
		&cobra.Command{
			Use:   "remove <team-id> <user-id>",
			Short: "Remove a user from a team",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				if err := app.API().RemoveTeamMember(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				return app.Render(statusResult{Status: "removed", Message: fmt.Sprintf("Removed %s from team %s", args[1], args[0])})
			},
		},
	)

	return cmd
}

func newTeamInviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite <team-id> <email>",
		Short: "Invite someone to a team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			raw, _ := cmd.Flags().GetString("role")
			hours, _ := cmd.Flags().GetInt("expires-in")

			role, err := teamRole(raw)
			if err != nil {
				return err
			}
			if hours < 0 {
				return errors.NewValidationError("--expires-in must not be negative", 0)
			}

			inv, err := app.API().InviteToTeam(cmd.Context(), args[0], platform.Invitation{
				Email:     strings.TrimSpace(args[1]),
				Role:      role,
				ExpiresIn: hours,
			})
			if err != nil {
				return err
			}
			return app.Render(invitationView{*inv})
		},
	}

	cmd.Flags().String("role", platform.TeamRoleMember, "role granted on acceptance (MEMBER, ADMIN)")
	cmd.Flags().Int("expires-in", 0, "hours until the invitation expires (0 uses the backend default)")

	return cmd
}

func newTeamInvitationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invitations",
		Short: "Answer team invitations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "accept <invitation-id>",
			Short: "Join the team you were invited to",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				member, err := app.API().AcceptInvitation(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return app.Render(statusResult{Status: "accepted", Message: fmt.Sprintf("Joined team %s as %s", member.TeamID, member.Role)})
			},
		},
		&cobra.Command{
			Use:   "reject <invitation-id>",
			Short: "Decline an invitation",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				if err := app.API().RejectInvitation(cmd.Context(), args[0]); err != nil {
					return err
				}
				return app.Render(statusResult{Status: "rejected", Message: "Invitation declined"})
			},
		},
	)

	return cmd
}

func newTeamSetBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-budget <id>",
		Short: "Set a team's budget",
		Long: `Set a team's budget.

Examples:
  reimburse teams set-budget t-1 --amount 5000 --currency EUR --period quarter`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			in, err := readBudget(cmd)
			if err != nil {
				return err
			}

			budget, err := app.API().UpdateTeamBudget(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return app.Render(budgetView{*budget})
		},
	}

	addBudgetFlags(cmd)
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newTeamAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics <id>",
		Short: "Show a team's spending breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			var filter platform.TeamAnalyticsFilter
			filter.GroupBy, _ = cmd.Flags().GetString("group-by")
			switch filter.GroupBy {
			case "", "category", "member", "month":
			default:
				return errors.NewValidationError(fmt.Sprintf("unknown grouping %q", filter.GroupBy), 0).
					WithSuggestion("Use one of category, member, month")
			}

			var err error
			if filter.StartDate, err = dateFlag(cmd, "from"); err != nil {
				return err
			}
			if filter.EndDate, err = dateFlag(cmd, "to"); err != nil {
				return err
			}
			if !filter.EndDate.IsZero() {
				filter.EndDate = filter.EndDate.Add(24*time.Hour - time.Nanosecond)
			}

			out, err := app.API().GetTeamAnalytics(cmd.Context(), args[0], filter)
			if err != nil {
				return err
			}
			return app.Render(teamAnalyticsView{*out})
		},
	}

	cmd.Flags().String("group-by", "", "group results by category, member or month")
	cmd.Flags().String("from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "end date (YYYY-MM-DD)")

	return cmd
}
