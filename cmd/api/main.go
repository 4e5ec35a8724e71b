// Command api runs the BookWorm REST server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/bookwormapp/bookworm/internal/di"
	"github.com/bookwormapp/bookworm/internal/di/providers"
	"github.com/bookwormapp/bookworm/internal/logger"
)

func main() {
	injector := di.NewContainer()

	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "bookworm: startup failed: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)
	log.Info("BookWorm API ready", "version", providers.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	log.Info("shutting down")

	// Dependents shut down first, so the HTTP server drains before the
	// search index and store close.
	if err := injector.Shutdown(); err != nil {
		log.Error("shutdown incomplete", "error", err)
		os.Exit(1)
	}
}
