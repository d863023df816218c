package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/ffspoints/internal/ancestry"
)

// HistogramResult is the output of the histogram command.
type HistogramResult struct {
	Interface int                    `json:"interface"`
	Origins   []ancestry.OriginCount `json:"origins"`
}

func (r HistogramResult) WriteText(w io.Writer) error {
	if len(r.Origins) == 0 {
		_, err := fmt.Fprintf(w, "No successful points at interface %d.\n", r.Interface)
		return err
	}
	for _, o := range r.Origins {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", o.OriginID, o.Children); err != nil {
			return err
		}
	}
	return nil
}

// RootsResult is the output of the roots command.
type RootsResult struct {
	Interface int      `json:"interface"`
	Roots     []string `json:"roots"`
}

func (r RootsResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d distinct interface-0 ancestors of interface %d\n", len(r.Roots), r.Interface)
	for _, id := range r.Roots {
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, id)
	}
	return err
}

// NewHistogramCommand creates the histogram command.
func NewHistogramCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "histogram <interface>",
		Short: "Count successful children per origin at an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iface, err := parseInterface(args[0])
			if err != nil {
				return err
			}
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			origins, err := ancestry.Histogram(cmd.Context(), st, iface)
			if err != nil {
				return domainError("failed to build histogram", err)
			}
			return rootOpts.formatter(cmd).Success(HistogramResult{Interface: iface, Origins: origins})
		},
	}
}

// NewRootsCommand creates the roots command.
func NewRootsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roots <interface>",
		Short: "List the interface-0 ancestors of the successful points at an interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iface, err := parseInterface(args[0])
			if err != nil {
				return err
			}
			if iface == 0 {
				return NewExitError(ExitCommandError, "roots needs an interface >= 1")
			}
			st, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			roots, err := ancestry.Roots(cmd.Context(), st, iface)
			if err != nil {
				return domainError("failed to collect roots", err)
			}
			return rootOpts.formatter(cmd).Success(RootsResult{Interface: iface, Roots: roots})
		},
	}
}
