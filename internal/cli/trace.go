package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ffspoints/internal/ancestry"
	"github.com/roach88/ffspoints/internal/point"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	MaxDepth int
}

// TraceResult is the output of the trace command.
type TraceResult struct {
	ancestry.Trace
}

// WriteText renders the chain from the point back to escape.
func (r TraceResult) WriteText(w io.Writer) error {
	chain := append([]string{}, r.Path...)
	switch {
	case r.Broken:
		chain = append(chain, r.Missing+" (missing)")
	case r.Truncated:
		chain = append(chain, "...")
	default:
		chain = append(chain, point.Escape)
	}
	_, err := fmt.Fprintf(w, "%s\nsteps: %d\n", strings.Join(chain, " <- "), r.Steps)
	return err
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <point-id>",
		Short: "Trace a point back to the initial basin",
		Long: `Walk origin links from a point back to the escape sentinel and
report the chain with its cumulative simulated steps.

A missing parent ends the walk with the partial sum; the result is marked
broken and the command still succeeds.

Examples:
  ffspoints trace --db ./points.db p_42
  ffspoints trace --db ./points.db p_42 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "traversal bound (default from config)")
	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command, id string) error {
	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	depth := opts.Config.MaxTraceDepth
	if opts.MaxDepth > 0 {
		depth = opts.MaxDepth
	}

	tr, err := ancestry.NewTracer(st, ancestry.WithMaxDepth(depth)).Trace(cmd.Context(), id)
	if err != nil {
		return domainError("failed to trace point", err)
	}
	if tr.Path == nil {
		tr.Path = []string{}
	}
	return opts.formatter(cmd).Success(TraceResult{Trace: tr})
}

// parseInterface parses an interface index argument.
func parseInterface(arg string) (int, error) {
	iface, err := strconv.Atoi(arg)
	if err != nil || iface < 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid interface %q: must be a non-negative integer", arg))
	}
	return iface, nil
}
