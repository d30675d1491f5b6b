// Command catalyst runs the orchestrator: the composition root that wires
// config, the task store, the event bus (when in event-driven mode), the
// sandbox executor, and the REST API, then serves until signalled to stop.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timour/catalyst/pkg/config"
)

func main() {
	cfg := config.Detect()

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to build app", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := app.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during shutdown", slog.Any("error", err))
		}
		cancel()
	}()

	if err := app.Start(ctx); err != nil {
		slog.Error("app stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}
