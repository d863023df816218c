package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/roach88/ffspoints/internal/weights"
)

// SummaryResult is the output of the summary command.
type SummaryResult struct {
	MaxInterface int                         `json:"max_interface"`
	Interfaces   []weights.InterfaceEstimate `json:"interfaces"`
	// Endpoints counts the active successful points never used as a parent
	// (usecount 0). A child reported without a usecount increment does not
	// end its origin's run.
	Endpoints int `json:"endpoints"`
}

// WriteText renders the summary as a table.
func (r SummaryResult) WriteText(w io.Writer) error {
	if len(r.Interfaces) == 0 {
		_, err := fmt.Fprintln(w, "No points stored.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Interface", "Success", "Failed", "P", "Cumulative", "Weight")
	for _, e := range r.Interfaces {
		err := table.Append([]string{
			strconv.Itoa(e.Interface),
			strconv.FormatInt(e.Success, 10),
			strconv.FormatInt(e.Failed, 10),
			fmt.Sprintf("%.4f", e.Probability),
			fmt.Sprintf("%.4g", e.Cumulative),
			fmt.Sprintf("%.4f", e.TotalWeight),
		})
		if err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nmax interface: %d\nendpoints: %d\n", r.MaxInterface, r.Endpoints)
	return err
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show per-interface counts and crossing estimates",
		Long: `Show the active points of every interface with the crossing
probability estimate p = success / (success + failed) and its running
product from interface 1.

Examples:
  ffspoints summary --db ./points.db
  ffspoints summary --db ./points.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummary(rootOpts, cmd)
		},
	}
}

func runSummary(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	estimates, err := weights.New(st).Estimate(ctx)
	if err != nil {
		return domainError("failed to estimate interfaces", err)
	}
	maxIface, err := st.MaxInterface(ctx)
	if err != nil {
		return domainError("failed to read max interface", err)
	}
	endpoints, err := st.Endpoints(ctx)
	if err != nil {
		return domainError("failed to list endpoints", err)
	}

	if estimates == nil {
		estimates = []weights.InterfaceEstimate{}
	}
	return opts.formatter(cmd).Success(SummaryResult{
		MaxInterface: maxIface,
		Interfaces:   estimates,
		Endpoints:    len(endpoints),
	})
}
