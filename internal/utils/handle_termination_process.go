package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// HandleTerminationProcess returns a context cancelled on SIGINT or SIGTERM.
// cleanup runs once after the signal arrives.
func HandleTerminationProcess(parent context.Context, cleanup func()) context.Context {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()
		if cleanup != nil {
			cleanup()
		}
	}()

	return ctx
}
