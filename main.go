package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/api"
	"github.com/gt-quantum/fyi-gtm-sub001/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := app.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Initialize logger
	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to initialize service", logger.Error(err))
		return 1
	}
	defer a.Close()

	// Research queue poller
	a.Worker.Start(ctx)
	defer a.Worker.Stop()

	// done channel signals background goroutines (rate limiter) on shutdown
	done := make(chan struct{})
	defer close(done)

	server := api.NewServer(cfg, a.Handlers(), api.Deps{
		DB:        a.DB,
		RedisPing: a.RedisPing(),
		Metrics:   a.Metrics,
		Done:      done,
	}, log)

	log.Info("Tool review service starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("content_repo", cfg.GitHub.Repo),
	)

	if err := server.Run(); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Tool review service exited cleanly")
	return 0
}
