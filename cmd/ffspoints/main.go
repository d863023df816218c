// Command ffspoints inspects and drives an FFS point store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/ffspoints/internal/cli"
	"github.com/roach88/ffspoints/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	reg := prometheus.NewRegistry()
	reg.MustRegister(store.Collectors()...)

	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr, reg)
	stop()
	os.Exit(code)
}
