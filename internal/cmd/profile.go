package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/platform"
	"github.com/felixgeelhaar/reimburse/internal/session"
	"github.com/felixgeelhaar/reimburse/internal/tui"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "View and edit your profile",
	}

	cmd.AddCommand(
		newProfileShowCmd(),
		newProfileUpdateCmd(),
		newChangePasswordCmd(),
		newPreferencesCmd(),
	)

	return cmd
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			user, err := app.API().GetProfile(cmd.Context())
			if err != nil {
				return err
			}
			return app.Render(userView{*user})
		},
	}
}

func newProfileUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Edit your name or company",
		Long: `Edit your profile. Only the fields you pass are changed.

Examples:
  reimburse profile update --company "Analytical Engines Ltd"
  reimburse profile update --first-name Ada --last-name King`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			firstName, _ := cmd.Flags().GetString("first-name")
			lastName, _ := cmd.Flags().GetString("last-name")
			company, _ := cmd.Flags().GetString("company")

			update := platform.ProfileUpdate{FirstName: firstName, LastName: lastName, Company: company}
			if update == (platform.ProfileUpdate{}) {
				return errors.NewValidationError("nothing to update", 0).
					WithSuggestions("Pass at least one of --first-name, --last-name or --company")
			}

			user, err := app.API().UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			return app.Render(userView{*user})
		},
	}

	cmd.Flags().String("first-name", "", "new first name")
	cmd.Flags().String("last-name", "", "new last name")
	cmd.Flags().String("company", "", "new company")

	return cmd
}

func newChangePasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change your password",
		Long: `Change your password. Both passwords are prompted for when not given.
With --password-stdin, stdin holds the current password on the first line
and the new password on the second.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			current, next, err := readPasswordChange(cmd, app)
			if err != nil {
				return err
			}

			if err := app.API().ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			return app.Render(statusResult{Status: "password_changed", Message: "Password changed"})
		},
	}

	cmd.Flags().Bool("password-stdin", false, "read current and new password from stdin, one per line")

	return cmd
}

func readPasswordChange(cmd *cobra.Command, app *App) (string, string, error) {
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	if fromStdin {
		secrets, err := tui.ReadSecrets(app.stdin, 2)
		if err != nil {
			return "", "", err
		}
		return secrets[0], secrets[1], nil
	}

	if !tui.ShouldPrompt() {
		return "", "", fmt.Errorf("required flag(s) --password-stdin not set")
	}

	current, err := tui.PromptForPassword("Current password")
	if err != nil {
		return "", "", err
	}
	next, err := tui.PromptForPassword("New password")
	if err != nil {
		return "", "", err
	}
	return current, next, nil
}

func newPreferencesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preferences",
		Short: "Show or change display preferences",
		Long: `Show or change your preferences. Without flags the current preferences
are printed.

Examples:
  reimburse profile preferences
  reimburse profile preferences --theme dark --notifications=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			ctx := cmd.Context()

			if err := app.Session.Start(ctx); err != nil {
				return err
			}
			user := app.Session.CurrentUser()
			if user == nil {
				return errors.NewUnauthorizedError("not logged in")
			}

			prefs := session.Preferences{Notifications: true}
			if user.Preferences != nil {
				prefs = *user.Preferences
			}

			flags := cmd.Flags()
			if !flags.Changed("theme") && !flags.Changed("language") && !flags.Changed("notifications") {
				return app.Render(identityView{*user})
			}
			if flags.Changed("theme") {
				prefs.Theme, _ = flags.GetString("theme")
			}
			if flags.Changed("language") {
				prefs.Language, _ = flags.GetString("language")
			}
			if flags.Changed("notifications") {
				prefs.Notifications, _ = flags.GetBool("notifications")
			}

			updated, err := app.Session.UpdatePreferences(ctx, prefs)
			if err != nil {
				return err
			}
			return app.Render(identityView{*updated})
		},
	}

	cmd.Flags().String("theme", "", "color theme (light, dark)")
	cmd.Flags().String("language", "", "language code, e.g. en")
	cmd.Flags().Bool("notifications", true, "email notifications")

	return cmd
}
