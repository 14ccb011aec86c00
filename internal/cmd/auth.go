package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/credential"
	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/session"
	"github.com/felixgeelhaar/reimburse/internal/tui"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in, sign out and manage your account",
	}

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newRegisterCmd(),
		newStatusCmd(),
		newVerifyEmailCmd(),
		newForgotPasswordCmd(),
		newResetPasswordCmd(),
		newRefreshCmd(),
	)

	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with email and password. The session is stored locally and
refreshed automatically when it expires.

Examples:
  reimburse auth login
  reimburse auth login --email grace@example.com
  echo "$PASSWORD" | reimburse auth login --email grace@example.com --password-stdin`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().StringP("email", "e", "", "account email")
	cmd.Flags().String("password", "", "account password (prefer --password-stdin or the prompt)")
	cmd.Flags().Bool("password-stdin", false, "read the password from stdin")

	return cmd
}

func runLogin(cmd *cobra.Command, args []string) error {
	app := appFrom(cmd)

	creds, err := readCredentials(cmd, app)
	if err != nil {
		return err
	}

	user, err := app.Session.Login(cmd.Context(), creds.Email, creds.Password)
	if err != nil {
		return err
	}

	return app.Render(loginView{identityView{*user}})
}

// readCredentials collects email and password from flags, stdin, or an
// interactive prompt, in that order.
func readCredentials(cmd *cobra.Command, app *App) (tui.Credentials, error) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")

	if fromStdin {
		secret, err := tui.ReadSecret(app.stdin)
		if err != nil {
			return tui.Credentials{}, err
		}
		password = secret
	}

	creds := tui.Credentials{Email: email, Password: password}
	if creds.Email != "" && creds.Password != "" {
		return creds, nil
	}

	if !tui.ShouldPrompt() {
		return creds, fmt.Errorf("required flag(s) --email and --password (or --password-stdin) not set")
	}

	return tui.PromptForCredentials(creds)
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored session",
		Long: `Sign out. The backend is notified on a best-effort basis; the local
session is removed even when the backend cannot be reached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			if err := app.Session.Logout(cmd.Context()); err != nil {
				return err
			}

			return app.Render(statusResult{Status: "logged_out", Message: "Logged out"})
		},
	}
}

func newRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Long: `Create a new account. Registration does not sign you in: confirm your
email address with the link you receive, then run 'reimburse auth login'.

Examples:
  reimburse auth register --email ada@example.com --first-name Ada --last-name Lovelace
  reimburse auth register --email ada@example.com --first-name Ada --last-name Lovelace --company Acme`,
		Args: cobra.NoArgs,
		RunE: runRegister,
	}

	cmd.Flags().StringP("email", "e", "", "account email")
	cmd.Flags().String("password", "", "account password (prefer --password-stdin or the prompt)")
	cmd.Flags().Bool("password-stdin", false, "read the password from stdin")
	cmd.Flags().String("first-name", "", "first name")
	cmd.Flags().String("last-name", "", "last name")
	cmd.Flags().String("company", "", "company (optional)")

	return cmd
}

func runRegister(cmd *cobra.Command, args []string) error {
	app := appFrom(cmd)

	creds, err := readCredentials(cmd, app)
	if err != nil {
		return err
	}

	firstName, _ := cmd.Flags().GetString("first-name")
	lastName, _ := cmd.Flags().GetString("last-name")
	company, _ := cmd.Flags().GetString("company")

	if firstName == "" || lastName == "" {
		if !tui.ShouldPrompt() {
			return fmt.Errorf("required flag(s) --first-name and --last-name not set")
		}
		if firstName == "" {
			if firstName, err = tui.PromptForString(tui.Prompt{Message: "First name", Required: true}); err != nil {
				return err
			}
		}
		if lastName == "" {
			if lastName, err = tui.PromptForString(tui.Prompt{Message: "Last name", Required: true}); err != nil {
				return err
			}
		}
	}

	err = app.Session.Register(cmd.Context(), session.Registration{
		Email:     creds.Email,
		Password:  creds.Password,
		FirstName: firstName,
		LastName:  lastName,
		Company:   company,
	})
	if err != nil {
		return err
	}

	return app.Render(statusResult{
		Status:  "verification_pending",
		Message: fmt.Sprintf("Account created for %s", creds.Email),
		Hint:    "Check your inbox and confirm your email address, then run 'reimburse auth login'.",
	})
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		Long: `Check the stored session against the backend and show who is signed in.
An expired session is refreshed automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			// A rejected credential just means signed out; anything else
			// leaves the state unknown.
			err := app.Session.Start(cmd.Context())
			if err != nil && !errors.HasCode(err, errors.ErrCodeUnauthorized) {
				return err
			}

			status := sessionStatus{
				State:  app.Session.State().String(),
				User:   app.Session.CurrentUser(),
				APIURL: app.Config.APIURL,
				Store:  app.Config.Store.Backend,
			}

			if status.User != nil {
				token, _ := app.Session.Token(cmd.Context())
				if claims, ok := credential.Inspect(token); ok && !claims.ExpiresAt.IsZero() {
					expires := claims.ExpiresAt.Truncate(time.Second)
					status.ExpiresAt = &expires
				}
			}

			return app.Render(status)
		},
	}
}

func newVerifyEmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify-email",
		Short: "Confirm your email address with a verification token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			token, _ := cmd.Flags().GetString("token")

			if err := app.Session.VerifyEmail(cmd.Context(), token); err != nil {
				return err
			}

			result := statusResult{Status: "verified", Message: "Email address verified"}
			if !app.Session.IsAuthenticated() {
				result.Hint = "Run 'reimburse auth login' to sign in."
			}
			return app.Render(result)
		},
	}

	cmd.Flags().String("token", "", "verification token from the email")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func newForgotPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			email, _ := cmd.Flags().GetString("email")

			if err := app.Session.ForgotPassword(cmd.Context(), email); err != nil {
				return err
			}

			return app.Render(statusResult{
				Status:  "reset_requested",
				Message: fmt.Sprintf("If an account exists for %s, a password reset email is on its way", email),
				Hint:    "Run 'reimburse auth reset-password --token <token>' with the token from the email.",
			})
		},
	}

	cmd.Flags().StringP("email", "e", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newResetPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			token, _ := cmd.Flags().GetString("token")

			password, err := readNewPassword(cmd, app)
			if err != nil {
				return err
			}

			if err := app.Session.ResetPassword(cmd.Context(), token, password); err != nil {
				return err
			}

			return app.Render(statusResult{
				Status:  "password_reset",
				Message: "Password updated",
				Hint:    "Run 'reimburse auth login' to sign in with your new password.",
			})
		},
	}

	cmd.Flags().String("token", "", "reset token from the email")
	cmd.Flags().String("password", "", "new password (prefer --password-stdin or the prompt)")
	cmd.Flags().Bool("password-stdin", false, "read the new password from stdin")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

// readNewPassword reads --password, stdin, or prompts.
func readNewPassword(cmd *cobra.Command, app *App) (string, error) {
	password, _ := cmd.Flags().GetString("password")
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")

	switch {
	case fromStdin:
		return tui.ReadSecret(app.stdin)
	case password != "":
		return password, nil
	case tui.ShouldPrompt():
		return tui.PromptForPassword("New password")
	default:
		return "", fmt.Errorf("required flag(s) --password (or --password-stdin) not set")
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reload your account details from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			if err := app.Session.RefreshIdentity(cmd.Context()); err != nil {
				return err
			}

			user := app.Session.CurrentUser()
			if user == nil {
				return errors.NewUnauthorizedError("not logged in")
			}
			return app.Render(identityView{*user})
		},
	}
}
