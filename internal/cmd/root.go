package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/telemetry"
	"github.com/felixgeelhaar/reimburse/internal/ux"
)

// skipApp marks commands that run without configuration or a session.
const skipApp = "reimburse/skip-app"

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reimburse",
		Short: "Expense reimbursement client",
		Long: `reimburse signs you in to the expense reimbursement backend and lets you
file, track and review reimbursements from the terminal.

Your session is stored locally and refreshed automatically when it expires.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: prepareApp,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.reimburse/config.yaml)")
	flags.String("api-url", "", "backend API URL, e.g. http://localhost:3001/api")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.StringP("output", "o", "text", "output format (text, json, yaml)")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newAuthCmd(),
		newDoctorCmd(),
		newNotificationsCmd(),
		newProfileCmd(),
		newReimbursementsCmd(),
		newTeamsCmd(),
		newUsersCmd(),
		newVersionCmd(),
	)

	return root
}

func prepareApp(cmd *cobra.Command, args []string) error {
	if cmd.Annotations[skipApp] == "true" {
		return nil
	}

	slot, _ := cmd.Context().Value(appKey{}).(*appSlot)
	if slot == nil {
		slot = &appSlot{}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, slot))
	}

	flags, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}

	app, err := newApp(cmd.Context(), cmd, flags)
	if err != nil {
		return err
	}
	slot.app = app

	ctx, span := telemetry.StartCommandSpan(cmd.Context(), app.Telemetry.TracerProvider(), cmd.CommandPath())
	app.span = span
	cmd.SetContext(ctx)

	return nil
}

// Execute runs the root command with args and renders any error on stderr.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return execute(ctx, root)
}

func execute(ctx context.Context, root *cobra.Command) error {
	slot := &appSlot{}
	err := root.ExecuteContext(context.WithValue(ctx, appKey{}, slot))

	if slot.app != nil {
		if cerr := slot.app.Close(ctx, err); err == nil {
			err = cerr
		}
	}

	if err != nil {
		noColor, _ := root.PersistentFlags().GetBool("no-color")
		ux.RenderError(root.ErrOrStderr(), err, noColor)
	}

	return err
}
