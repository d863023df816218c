package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ffspoints/internal/ghost"
	"github.com/roach88/ffspoints/internal/point"
	"github.com/roach88/ffspoints/internal/sampler"
)

// GhostOptions holds flags for the ghost command.
type GhostOptions struct {
	*RootOptions
	Count int
	Busy  []string
}

// GhostResult is the output of the ghost command.
type GhostResult struct {
	Interface int           `json:"interface"`
	Starts    []point.Point `json:"starts"`
	Threshold int64         `json:"threshold"`
	// Exhausted lists the candidates with no idle ghost child.
	Exhausted []string `json:"exhausted"`
}

func (r GhostResult) WriteText(w io.Writer) error {
	for _, p := range r.Starts {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", p.ID, p.Payload); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "threshold: %d\nexhausted origins: %d\n", r.Threshold, len(r.Exhausted))
	return err
}

// NewGhostCommand creates the ghost command.
func NewGhostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GhostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ghost <interface>",
		Short: "Choose starting points for ghost runs",
		Long: `Choose real points at an interface to start speculative ghost runs
from, preferring the points with the fewest ghost runs so far. Each chosen
point is treated as in flight for the rest of the batch.

Examples:
  ffspoints ghost --db ./points.db --ghost-db ./ghost.db 2 --count 4
  ffspoints ghost --db ./points.db --ghost-db ./ghost.db 2 --busy p_17`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGhost(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of ghost starts")
	cmd.Flags().StringSliceVar(&opts.Busy, "busy", nil, "point ids already used by running ghosts")
	return cmd
}

func runGhost(opts *GhostOptions, cmd *cobra.Command, arg string) error {
	ctx := cmd.Context()
	iface, err := parseInterface(arg)
	if err != nil {
		return err
	}
	if opts.Count < 1 {
		return NewExitError(ExitCommandError, "--count must be at least 1")
	}

	realStore, err := opts.openStore()
	if err != nil {
		return err
	}
	defer realStore.Close()
	ghostStore, err := opts.openGhostStore()
	if err != nil {
		return err
	}
	defer ghostStore.Close()

	registry := ghost.NewRegistry()
	for i, id := range opts.Busy {
		registry.Assign(fmt.Sprintf("running-%d", i), id)
	}

	sched := ghost.NewScheduler(realStore, ghostStore, registry, sampler.NewRand(opts.Config.Seed))
	res := GhostResult{Interface: iface}
	for i := 0; i < opts.Count; i++ {
		p, err := sched.SelectGhost(ctx, iface)
		if err != nil {
			return domainError(fmt.Sprintf("failed to select ghost start at interface %d", iface), err)
		}
		registry.Assign(fmt.Sprintf("batch-%d", i), p.ID)
		res.Starts = append(res.Starts, p)
	}
	res.Threshold = sched.Threshold()

	ids, err := realStore.SuccessIDs(ctx, iface)
	if err != nil {
		return domainError("failed to list candidates", err)
	}
	res.Exhausted, err = ghost.NewExclusionCache(ghostStore, registry).Rebuild(ctx, iface+1, ids)
	if err != nil {
		return domainError("failed to rebuild exclusion cache", err)
	}
	if res.Exhausted == nil {
		res.Exhausted = []string{}
	}
	return opts.formatter(cmd).Success(res)
}

// NewPromoteCommand creates the promote command.
func NewPromoteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <origin-id>",
		Short: "Move the oldest idle ghost child of an origin into the real store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			realStore, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer realStore.Close()
			ghostStore, err := rootOpts.openGhostStore()
			if err != nil {
				return err
			}
			defer ghostStore.Close()

			p, ok, err := ghost.Promote(ctx, ghostStore, realStore, args[0])
			if err != nil {
				return domainError("failed to promote ghost", err)
			}
			if !ok {
				return NewExitError(ExitFailure, fmt.Sprintf("origin %q has no idle ghost child", args[0]))
			}
			return rootOpts.formatter(cmd).Success(p)
		},
	}
}
