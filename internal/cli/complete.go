package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ffspoints/internal/weights"
)

// CompleteOptions holds flags for the complete command.
type CompleteOptions struct {
	*RootOptions
	Mode string
}

// CompleteResult is the output of the complete command.
type CompleteResult struct {
	weights.Result
}

func (r CompleteResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"interface %d completed (%s)\nredistributed: %.6g\nE: %.6g (used %.6g, success %.6g)\napplied factor: %.6g\ntotal weight: %.6g\n",
		r.Interface, r.Mode, r.Redistributed,
		r.Factor.E, r.Factor.Used, r.Factor.Total,
		r.Factor.Applied, r.Total)
	return err
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "complete <interface>",
		Short: "Redistribute and enrich the weights of a finished interface",
		Long: `Complete an interface in one transaction: every successful point at
the interface takes its parent's weight divided by the parent's usecount,
then the interface is scaled by the enrichment factor
E = W(L-1, success) / W(L-1, used).

With --mode renorm the factor is E / W(L-1, success), which keeps the
interface normalized. Interface 0 is reset to 1/n instead.

Examples:
  ffspoints complete --db ./points.db 3
  ffspoints complete --db ./points.db 3 --mode renorm --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runComplete(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", "", "enrichment mode: enrich|renorm (default from config)")
	return cmd
}

func runComplete(opts *CompleteOptions, cmd *cobra.Command, arg string) error {
	iface, err := parseInterface(arg)
	if err != nil {
		return err
	}

	mode, err := opts.Config.Mode()
	if opts.Mode != "" {
		mode, err = weights.ParseMode(opts.Mode)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid mode", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := weights.New(st).Complete(cmd.Context(), iface, mode)
	if err != nil {
		return domainError(fmt.Sprintf("failed to complete interface %d", iface), err)
	}
	return opts.formatter(cmd).Success(CompleteResult{Result: res})
}
