package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ffspoints/internal/config"
)

// ConfigResult is the output of the config command.
type ConfigResult struct {
	config.Config
}

// WriteText renders the configuration as YAML that config.Load accepts.
func (r ConfigResult) WriteText(w io.Writer) error {
	data, err := r.Config.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, the --config file and the
--db/--ghost-db overrides are merged. The text form is YAML and can be
saved as a config file.

Examples:
  ffspoints config > ffspoints.yaml
  ffspoints config --config ./run.yaml --db ./points.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(ConfigResult{Config: rootOpts.Config})
		},
	}
}
