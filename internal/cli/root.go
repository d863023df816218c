package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/ffspoints/internal/config"
	"github.com/roach88/ffspoints/internal/point"
	"github.com/roach88/ffspoints/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose       bool
	Format        string // "json" | "text"
	ConfigPath    string
	Database      string
	GhostDatabase string

	// Config is the loaded configuration with flag overrides applied. It is
	// set by the root command before any subcommand runs.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ffspoints CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ffspoints",
		Short: "Inspect and drive an FFS point store",
		Long: `ffspoints operates on the point store of a forward flux sampling run.

It summarizes interfaces, traces ancestry, completes interfaces by
redistributing and enriching weights, and draws the next starting points
for real and ghost trials.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	pf.StringVar(&opts.Database, "db", "", "path to SQLite point store (overrides config)")
	pf.StringVar(&opts.GhostDatabase, "ghost-db", "", "path to SQLite ghost store (overrides config)")

	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewHistogramCommand(opts))
	cmd.AddCommand(NewRootsCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewSampleCommand(opts))
	cmd.AddCommand(NewGhostCommand(opts))
	cmd.AddCommand(NewPromoteCommand(opts))
	cmd.AddCommand(NewDeactivateCommand(opts))
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// setup validates global flags, loads the config and configures logging.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg := config.Default()
	if o.ConfigPath != "" {
		loaded, err := config.Load(o.ConfigPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.GhostDatabase != "" {
		cfg.GhostDatabase = o.GhostDatabase
	}
	o.Config = cfg

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the real point store named by the config.
func (o *RootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.Config.Database, o.Config.StoreOptions()...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openGhostStore opens the ghost store. It is an error to call it without
// a configured ghost database.
func (o *RootOptions) openGhostStore() (*store.Store, error) {
	if o.Config.GhostDatabase == "" {
		return nil, NewExitError(ExitCommandError, "no ghost database configured (use --ghost-db)")
	}
	st, err := store.Open(o.Config.GhostDatabase, o.Config.GhostStoreOptions()...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ghost database", err)
	}
	return st, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// domainError wraps a failure of a store or weight operation. Point errors
// are domain failures (exit 1), except WRITE_EXHAUSTED which means the
// database is unusable; anything else is a command error.
func domainError(message string, err error) *ExitError {
	var pe *point.Error
	if errors.As(err, &pe) && pe.Code != point.ErrCodeWriteExhausted {
		return WrapExitError(ExitFailure, message, err)
	}
	return WrapExitError(ExitCommandError, message, err)
}
