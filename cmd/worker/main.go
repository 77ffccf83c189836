// Command worker runs one drain pass over the job queue and exits. The
// advisory lock makes concurrent invocations safe: a pass that finds the
// lock held exits cleanly.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/app"
	"github.com/fairyhunter13/ghostradio/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core, err := app.Bootstrap(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := core.Worker.Drain(ctx); err != nil {
		slog.Error("drain pass failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("drain pass complete")
}
