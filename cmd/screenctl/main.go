// Command screenctl screens SMS files from the command line using the same
// pipeline as the HTTP service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(nil).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
