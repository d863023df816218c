package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Execute runs the CLI with args and returns the process exit code.
// Failures are reported in the selected output format. When metrics is
// non-nil its ffspoints counters are logged at debug level on the way out.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer, metrics prometheus.Gatherer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if metrics != nil {
		logMetrics(metrics)
	}
	if err == nil {
		return ExitSuccess
	}

	format, _ := root.PersistentFlags().GetString("format")
	verbose, _ := root.PersistentFlags().GetBool("verbose")
	if !isValidFormat(format) {
		format = "text"
	}
	f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr, Verbose: verbose}
	if format == "text" {
		f.Writer = stderr
	}
	_ = f.Fail(err)
	return GetExitCode(err)
}

func logMetrics(g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		slog.Debug("gather metrics failed", "error", err)
		return
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "ffspoints_") {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		slog.Debug("metric", "name", mf.GetName(), "value", total)
	}
}
