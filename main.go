// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/lancet-cli/cmd"
	"github.com/xkilldash9x/lancet-cli/internal/observability"
)

// main is the entry point for the Lancet CLI application.
func main() {
	// Interrupt signals cancel the context so an in-flight run terminates
	// with its transcript intact instead of being killed mid-step.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
