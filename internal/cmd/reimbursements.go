package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/errors"
	"github.com/felixgeelhaar/reimburse/internal/platform"
)

const dateLayout = "2006-01-02"

func newReimbursementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reimbursements",
		Aliases: []string{"r", "expenses"},
		Short:   "File, track and review reimbursements",
	}

	cmd.AddCommand(
		newReimbursementsListCmd(),
		newReimbursementsGetCmd(),
		newReimbursementsSubmitCmd(),
		newReimbursementsReviewCmd(),
		newReimbursementsAnalyticsCmd(),
		newReimbursementsExportCmd(),
	)

	return cmd
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("status", "", "filter by status (PENDING, APPROVED, REJECTED)")
	cmd.Flags().String("category", "", "filter by category ("+strings.Join(platform.Categories, ", ")+")")
	cmd.Flags().String("user", "", "filter by user ID (admin only)")
	cmd.Flags().String("from", "", "only include reimbursements submitted on or after this date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "only include reimbursements submitted on or before this date (YYYY-MM-DD)")
}

func readFilter(cmd *cobra.Command) (platform.ReimbursementFilter, error) {
	var f platform.ReimbursementFilter

	status, _ := cmd.Flags().GetString("status")
	category, _ := cmd.Flags().GetString("category")
	f.UserID, _ = cmd.Flags().GetString("user")
	f.Status = strings.ToUpper(status)
	f.Category = strings.ToUpper(category)

	if f.Status != "" && !slices.Contains([]string{platform.StatusPending, platform.StatusApproved, platform.StatusRejected}, f.Status) {
		return f, errors.NewValidationError(fmt.Sprintf("unknown status %q", status), 0).
			WithSuggestion("Use one of PENDING, APPROVED, REJECTED")
	}
	if f.Category != "" && !slices.Contains(platform.Categories, f.Category) {
		return f, errors.NewValidationError(fmt.Sprintf("unknown category %q", category), 0).
			WithSuggestion("Use one of " + strings.Join(platform.Categories, ", "))
	}

	var err error
	if f.StartDate, err = dateFlag(cmd, "from"); err != nil {
		return f, err
	}
	if f.EndDate, err = dateFlag(cmd, "to"); err != nil {
		return f, err
	}
	if !f.EndDate.IsZero() {
		f.EndDate = f.EndDate.Add(24*time.Hour - time.Nanosecond)
	}

	return f, nil
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, errors.NewValidationError(fmt.Sprintf("invalid --%s date %q", name, raw), 0).
			WithSuggestion("Dates use the YYYY-MM-DD format")
	}
	return t, nil
}

func newReimbursementsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reimbursements",
		Long: `List your reimbursements. Admins can pass --all to list everyone's.

Examples:
  reimburse reimbursements list
  reimburse reimbursements list --status PENDING
  reimburse reimbursements list --all --from 2024-01-01 --to 2024-03-31`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			filter, err := readFilter(cmd)
			if err != nil {
				return err
			}

			all, _ := cmd.Flags().GetBool("all")
			var list []platform.Reimbursement
			if all {
				list, err = app.API().ListAllReimbursements(cmd.Context(), filter)
			} else {
				list, err = app.API().ListMyReimbursements(cmd.Context(), filter)
			}
			if err != nil {
				return err
			}

			return app.Render(reimbursementList(list))
		},
	}

	cmd.Flags().Bool("all", false, "list every user's reimbursements (admin only)")
	addFilterFlags(cmd)

	return cmd
}

func newReimbursementsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a reimbursement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			r, err := app.API().GetReimbursement(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return app.Render(reimbursementView{*r})
		},
	}
}

func newReimbursementsSubmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a reimbursement with a receipt",
		Long: `Upload a receipt and file a reimbursement for it.

Examples:
  reimburse reimbursements submit --file receipt.pdf --amount 42.50 --category MEALS --description "Team lunch"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			path, _ := cmd.Flags().GetString("file")
			amount, _ := cmd.Flags().GetFloat64("amount")
			category, _ := cmd.Flags().GetString("category")
			description, _ := cmd.Flags().GetString("description")

			req := platform.NewReimbursement{
				Amount:      amount,
				Category:    strings.ToUpper(category),
				Description: strings.TrimSpace(description),
			}
			if req.Amount <= 0 {
				return errors.NewValidationError("amount must be greater than zero", 0)
			}
			if !slices.Contains(platform.Categories, req.Category) {
				return errors.NewValidationError(fmt.Sprintf("unknown category %q", category), 0).
					WithSuggestion("Use one of " + strings.Join(platform.Categories, ", "))
			}
			if req.Description == "" {
				return errors.NewValidationError("description must not be empty", 0)
			}

			receipt, err := os.Open(path)
			if err != nil {
				return errors.NewValidationError(fmt.Sprintf("cannot open receipt: %v", err), 0)
			}
			defer receipt.Close()

			created, err := app.API().SubmitReimbursement(cmd.Context(), req, filepath.Base(path), receipt)
			if err != nil {
				return err
			}

			app.Logger.Info("Reimbursement submitted", "id", created.ID, "amount", created.Amount)
			return app.Render(reimbursementView{*created})
		},
	}

	cmd.Flags().StringP("file", "f", "", "receipt file (image or PDF)")
	cmd.Flags().Float64("amount", 0, "amount to reimburse")
	cmd.Flags().String("category", "", "expense category ("+strings.Join(platform.Categories, ", ")+")")
	cmd.Flags().StringP("description", "d", "", "what the expense was for")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("description")

	return cmd
}

func newReimbursementsReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review <id> <approve|reject>",
		Short: "Approve or reject a reimbursement (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			feedback, _ := cmd.Flags().GetString("feedback")

			var status string
			switch strings.ToLower(args[1]) {
			case "approve", "approved":
				status = platform.StatusApproved
			case "reject", "rejected":
				status = platform.StatusRejected
			default:
				return fmt.Errorf("invalid argument %q: expected approve or reject", args[1])
			}

			r, err := app.API().UpdateReimbursementStatus(cmd.Context(), args[0], platform.StatusUpdate{
				Status:   status,
				Feedback: feedback,
			})
			if err != nil {
				return err
			}
			return app.Render(reimbursementView{*r})
		},
	}

	cmd.Flags().String("feedback", "", "note for the submitter")

	return cmd
}

func newReimbursementsAnalyticsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show aggregated expense analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			filter, err := readFilter(cmd)
			if err != nil {
				return err
			}
			filter.GroupBy, _ = cmd.Flags().GetString("group-by")

			out, err := app.API().ReimbursementAnalytics(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return app.Render(analyticsView(out))
		},
	}

	cmd.Flags().String("group-by", "", "group results by category, status or month")
	addFilterFlags(cmd)

	return cmd
}

var exportExtensions = map[string]string{
	platform.ExportCSV:   ".csv",
	platform.ExportExcel: ".xlsx",
}

func newReimbursementsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download reimbursements as CSV or Excel",
		Long: `Download the matching reimbursements as a CSV or Excel file. The file is
only written once the whole export has arrived. Use --file - to write to stdout.

Examples:
  reimburse reimbursements export
  reimburse reimbursements export --format excel --status APPROVED --file q1.xlsx
  reimburse reimbursements export --file - | column -s, -t`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)

			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(format)
			ext, ok := exportExtensions[format]
			if !ok {
				return errors.NewValidationError(fmt.Sprintf("unknown export format %q", format), 0).
					WithSuggestion("Use csv or excel")
			}

			filter, err := readFilter(cmd)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := app.API().ExportReimbursements(cmd.Context(), format, filter, &buf); err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("file")
			if path == "-" {
				_, err := buf.WriteTo(app.stdout)
				return err
			}
			if path == "" {
				path = "reimbursements" + ext
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return errors.Wrap(errors.ErrCodeRequestFailed, fmt.Sprintf("failed to write %s", path), err)
			}

			app.Logger.Info("Reimbursements exported", "file", path, "bytes", buf.Len())
			return app.Render(statusResult{Status: "exported", Message: fmt.Sprintf("Exported to %s", path)})
		},
	}

	cmd.Flags().String("format", platform.ExportCSV, "export format (csv, excel)")
	cmd.Flags().StringP("file", "f", "", "destination file (default reimbursements.csv or .xlsx, - for stdout)")
	addFilterFlags(cmd)

	return cmd
}
