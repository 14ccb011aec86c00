package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/platform"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users (admin only)",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List all users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				users, err := app.API().ListUsers(cmd.Context())
				if err != nil {
					return err
				}
				return app.Render(userList(users))
			},
		},
		&cobra.Command{
			Use:   "get <id>",
			Short: "Show a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				user, err := app.API().GetUser(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return app.Render(userView{*user})
			},
		},
		&cobra.Command{
			Use:   "set-role <id> <EMPLOYEE|ADMIN>",
			Short: "Change a user's role",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				app := appFrom(cmd)

				role := strings.ToUpper(args[1])
				switch role {
				case platform.RoleEmployee, platform.RoleUser, platform.RoleAdmin:
				default:
					return errors.NewValidationError(fmt.Sprintf("unknown role %q", args[1]), 0).
						WithSuggestion("Use EMPLOYEE or ADMIN")
				}

				user, err := app.API().UpdateUserRole(cmd.Context(), args[0], role)
				if err != nil {
					return err
				}
				return app.Render(userView{*user})
			},
		},
	)

	return cmd
}
