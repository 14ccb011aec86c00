package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/platform"
)

var notificationTypes = []string{
	platform.NotificationReimbursementStatus,
	platform.NotificationTeamInvitation,
	platform.NotificationBudgetAlert,
	platform.NotificationComment,
	platform.NotificationMention,
}

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"n"},
		Short:   "Read notifications and choose how you get them",
	}

	cmd.AddCommand(
		newNotificationsListCmd(),
		&cobra.Command{
			Use:   "read <id>",
			Short: "Mark a notification as read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				if err := app.API().MarkNotificationRead(cmd.Context(), args[0]); err != nil {
					return err
				}
				return app.Render(statusResult{Status: "read", Message: "Marked as read"})
			},
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every notification as read",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				if err := app.API().MarkAllNotificationsRead(cmd.Context()); err != nil {
					return err
				}
				return app.Render(statusResult{Status: "read", Message: "All notifications marked as read"})
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a notification",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				if err := app.API().DeleteNotification(cmd.Context(), args[0]); err != nil {
					return err
				}
				return app.Render(statusResult{Status: "deleted", Message: "Notification deleted"})
			},
		},
		newNotificationPreferencesCmd(),
	)

	return cmd
}

func newNotificationsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		Long: `List your notifications, or a team's with --team.

Examples:
  reimburse notifications list --unread
  reimburse notifications list --type BUDGET_ALERT --limit 10
  reimburse notifications list --team t-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			if team, _ := cmd.Flags().GetString("team"); team != "" {
				list, err := app.API().ListTeamNotifications(cmd.Context(), team)
				if err != nil {
					return err
				}
				return app.Render(notificationList{Notifications: list, Total: len(list)})
			}

			var filter platform.NotificationFilter
			if unread, _ := cmd.Flags().GetBool("unread"); unread {
				read := false
				filter.Read = &read
			}
			kind, _ := cmd.Flags().GetString("type")
			filter.Type = strings.ToUpper(kind)
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			filter.Offset, _ = cmd.Flags().GetInt("offset")

			if filter.Type != "" && !slices.Contains(notificationTypes, filter.Type) {
				return errors.NewValidationError(fmt.Sprintf("unknown notification type %q", kind), 0).
					WithSuggestion("Use one of " + strings.Join(notificationTypes, ", "))
			}
			if filter.Limit < 0 || filter.Offset < 0 {
				return errors.NewValidationError("--limit and --offset must not be negative", 0)
			}

			page, err := app.API().ListNotifications(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return app.Render(notificationList(*page))
		},
	}

	cmd.Flags().Bool("unread", false, "only unread notifications")
	cmd.Flags().String("type", "", "filter by type ("+strings.Join(notificationTypes, ", ")+")")
	cmd.Flags().Int("limit", 0, "maximum number of notifications")
	cmd.Flags().Int("offset", 0, "number of notifications to skip")
	cmd.Flags().String("team", "", "list a team's notifications instead of yours")

	return cmd
}

// preferenceKinds maps flag names to the matching channel setting.
var preferenceKinds = map[string]func(*platform.ChannelPreferences) *bool{
	"reimbursement-updates": func(c *platform.ChannelPreferences) *bool { return &c.ReimbursementUpdates },
	"team-invitations":      func(c *platform.ChannelPreferences) *bool { return &c.TeamInvitations },
	"budget-alerts":         func(c *platform.ChannelPreferences) *bool { return &c.BudgetAlerts },
	"comments":              func(c *platform.ChannelPreferences) *bool { return &c.Comments },
	"mentions":              func(c *platform.ChannelPreferences) *bool { return &c.Mentions },
}

func newNotificationPreferencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Show or change which notifications you receive",
		Long: `Show your notification settings. Flags change them: --email-<kind> and
--in-app-<kind> turn one kind on or off for that channel, leaving the rest as
they are.

Examples:
  reimburse notifications preferences
  reimburse notifications preferences --email-budget-alerts=false --in-app-comments`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			prefs, err := app.API().GetNotificationPreferences(cmd.Context())
			if err != nil {
				return err
			}

			changed := false
			for kind, field := range preferenceKinds {
				for prefix, channel := range map[string]*platform.ChannelPreferences{"email-": &prefs.Email, "in-app-": &prefs.InApp} {
					name := prefix + kind
					if !cmd.Flags().Changed(name) {
						continue
					}
					*field(channel), _ = cmd.Flags().GetBool(name)
					changed = true
				}
			}

			if changed {
				if prefs, err = app.API().UpdateNotificationPreferences(cmd.Context(), *prefs); err != nil {
					return err
				}
			}
			return app.Render(notificationPrefsView{*prefs})
		},
	}

	for kind := range preferenceKinds {
		cmd.Flags().Bool("email-"+kind, false, "email me about "+strings.ReplaceAll(kind, "-", " "))
		cmd.Flags().Bool("in-app-"+kind, false, "show "+strings.ReplaceAll(kind, "-", " ")+" in the app")
	}

	return cmd
}
