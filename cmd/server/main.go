package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/app"
	"github.com/BrianDai22/concetrateaiquiz-sub002/internal/config"
	"github.com/BrianDai22/concetrateaiquiz-sub002/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "auth-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New("auth-service", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}

	return a.Run(ctx)
}
