package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdonaldj/deployctl/internal/cli"
)

// version is set via ldflags at build time: -ldflags "-X main.version=x.y.z"
var version = "dev"

func main() {
	// Ctrl-C aborts the current step and leaves the working tree in its
	// last-completed-step state; the failing step is named in the error.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := cli.New(version)
	c.Run(ctx)
}
