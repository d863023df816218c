package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// DeactivateResult is the output of the deactivate command.
type DeactivateResult struct {
	ID          string `json:"id"`
	Deactivated bool   `json:"deactivated"`
}

func (r DeactivateResult) String() string {
	return fmt.Sprintf("%s deactivated", r.ID)
}

// NewDeactivateCommand creates the deactivate command.
func NewDeactivateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <point-id>",
		Short: "Hide a point from sampling and summaries",
		Long: `Mark a point deactivated. The row is kept so ancestry traces
through it still work, but it is no longer sampled, counted or reweighted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			ok, err := st.Deactivate(cmd.Context(), args[0])
			if err != nil {
				return domainError("failed to deactivate point", err)
			}
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("point %q not found", args[0]))
			}
			return rootOpts.formatter(cmd).Success(DeactivateResult{ID: args[0], Deactivated: true})
		},
	}
}
