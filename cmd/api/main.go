package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pollbot/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start the interaction consumer and HTTP server.
func main() {
	slog.Info("pollbot api starting", "event", "api_starting")
	if err := run(); err != nil {
		slog.Error("pollbot api stopped with error", "event", "api_stopped", "error", err.Error())
		os.Exit(1)
	}
	slog.Info("pollbot api stopped", "event", "api_stopped")
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI()
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("api shutdown close failed", "event", "api_close_failed", "error", err.Error())
		}
	}()
	return app.Run(ctx)
}
