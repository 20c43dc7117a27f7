package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rshsreehari/coderev-platform/internal/bootstrap"
)

func main() {
	ctx := context.Background()

	app, err := bootstrap.InitAPI(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize api service: %v\n", err)
		os.Exit(1)
	}

	logger := app.Common.Logger
	defer func() { _ = logger.Sync() }()

	router := app.Server.NewRouter()

	addr := ":" + app.Common.Config.HTTPPort

	logger.Infof("coderev api listening on %s", addr)

	if err := router.Listen(addr); err != nil {
		logger.Errorf("api server stopped: %v", err)
		os.Exit(1)
	}
}
