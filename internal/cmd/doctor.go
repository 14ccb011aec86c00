package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/health"
	"github.com/felixgeelhaar/reimburse/internal/ux"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check backend reachability and the stored session",
		Long: `Run diagnostics for the CLI setup.

Checks include:
  - backend reachability at the configured API URL
  - the credential store and the credential it holds
  - whether the backend still accepts that credential

Examples:
  reimburse doctor
  reimburse doctor --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFrom(cmd)
			timeout, _ := cmd.Flags().GetDuration("timeout")

			m := health.NewManager().WithTimeout(timeout)
			m.AddChecker(health.NewBackendChecker(app.API(), app.Config.APIURL))
			m.AddChecker(health.NewStoreChecker(app.Store, app.Config.Store.Backend))
			m.AddChecker(health.NewSessionChecker(app.Session))

			reports := m.Check(cmd.Context())
			view := doctorView{Status: health.OverallStatus(reports), Checks: reports}
			if err := app.Render(view); err != nil {
				return err
			}

			if view.Status == health.StatusUnhealthy {
				return fmt.Errorf("health check failed: %d of %d checks unhealthy", view.unhealthy(), len(reports))
			}
			return nil
		},
	}

	cmd.Flags().Duration("timeout", health.DefaultTimeout, "per-check timeout")

	return cmd
}

type doctorView struct {
	Status health.Status   `json:"status" yaml:"status"`
	Checks []health.Report `json:"checks" yaml:"checks"`
}

func (v doctorView) unhealthy() int {
	n := 0
	for _, r := range v.Checks {
		if r.Result.Status == health.StatusUnhealthy {
			n++
		}
	}
	return n
}

func (v doctorView) RenderText(p *ux.Printer) error {
	rows := make([][]string, 0, len(v.Checks))
	for _, r := range v.Checks {
		latency := ""
		if r.Result.Latency > 0 {
			latency = r.Result.Latency.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{r.Name, r.Result.Status.String(), r.Result.Message, latency})
	}
	p.Table([]string{"CHECK", "STATUS", "MESSAGE", "LATENCY"}, rows, "No checks registered.")

	for _, r := range v.Checks {
		if r.Result.Status == health.StatusHealthy {
			continue
		}
		if detail := detailString(r.Result.Details); detail != "" {
			fmt.Fprintf(p.Writer(), "%s: %s\n", r.Name, detail)
		}
		if r.Result.Hint != "" {
			p.Hint("%s", r.Result.Hint)
		}
	}

	switch v.Status {
	case health.StatusHealthy:
		p.Success("Everything looks good")
	case health.StatusDegraded:
		p.Warn("Usable, with warnings")
	default:
		p.Warn("Some checks failed")
	}
	return nil
}

func detailString(details map[string]interface{}) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", k, details[k])
	}
	return out
}
