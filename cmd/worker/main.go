package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rshsreehari/coderev-platform/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.InitWorker(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize worker service: %v\n", err)
		os.Exit(1)
	}

	logger := app.Common.Logger
	defer func() { _ = logger.Sync() }()

	runCtx, cancel := context.WithCancel(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("shutting down worker pool")
		cancel()
	}()

	logger.Infof("coderev worker pool running (concurrency=%d)", app.Common.Config.WorkerConcurrency)

	app.Worker.Run(runCtx)
}
