// Command clinicctl drives a clinic portal session from the terminal: one
// invocation acts like one browser tab sharing the persisted credential.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := BuildRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
