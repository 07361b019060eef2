package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/saidmurad/cryptobot-sub000/config"
	"github.com/saidmurad/cryptobot-sub000/internal/indengine"
	"github.com/saidmurad/cryptobot-sub000/internal/logger"
)

func main() {
	logger.Init("indengine", slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Init("indengine", logger.ParseLevel(cfg.LogLevel))
	slog.Info("config loaded",
		"instruments", cfg.Instruments,
		"timeframes", cfg.Timeframes,
		"shards", cfg.Shards,
		"poll_interval", cfg.PollInterval.String())

	svc, err := indengine.New(cfg)
	if err != nil {
		slog.Error("init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := svc.Run(ctx); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}
