package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/reimburse/internal/ux"
)

// CommandContext holds the global command-line flags. It is read from the
// cobra flag set on every run instead of living in package variables, so
// commands can be executed repeatedly in tests.
type CommandContext struct {
	// Output control
	Output  string
	NoColor bool

	// Configuration
	ConfigPath  string
	APIURL      string
	LogLevel    string
	MetricsFile string
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}
	if err := ux.ValidateFormat(output); err != nil {
		return nil, err
	}

	noColor, err := cmd.Flags().GetBool("no-color")
	if err != nil {
		return nil, err
	}

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	apiURL, err := cmd.Flags().GetString("api-url")
	if err != nil {
		return nil, err
	}

	logLevel, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return nil, err
	}

	metricsFile, err := cmd.Flags().GetString("metrics-file")
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Output:      output,
		NoColor:     noColor,
		ConfigPath:  configPath,
		APIURL:      apiURL,
		LogLevel:    logLevel,
		MetricsFile: metricsFile,
	}, nil
}
