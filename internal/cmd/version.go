package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/ux"
	"github.com/felixgeelhaar/reimburse/internal/version"
)

type versionView struct {
	version.Info `yaml:",inline"`
	verbose      bool
}

func (v versionView) RenderText(p *ux.Printer) error {
	if !v.verbose {
		p.Details(ux.Field{Key: "reimburse", Value: v.Short()})
		return nil
	}
	p.Details(
		ux.Field{Key: "Version", Value: v.Version},
		ux.Field{Key: "Commit", Value: v.Commit},
		ux.Field{Key: "Built", Value: v.Date},
		ux.Field{Key: "Go", Value: v.GoVersion},
		ux.Field{Key: "Platform", Value: v.Platform},
	)
	return nil
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			flags, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}

			f, err := ux.NewFormatter(flags.Output, &ux.FormatterOptions{
				Writer:  cmd.OutOrStdout(),
				NoColor: flags.NoColor,
			})
			if err != nil {
				return err
			}
			return f.Format(versionView{Info: version.GetInfo(), verbose: verbose})
		},
	}

	cmd.Flags().BoolP("verbose", "v", false, "show detailed version information")

	return cmd
}
