package main

import (
	"context"
	"log"

	"partner-server/internal/bootstrap"
	"partner-server/internal/config"
	"partner-server/internal/observability"
	"partner-server/internal/server"
)

func main() {
	logger := observability.NewLogger()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	deps, err := bootstrap.Initialize(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize dependencies: %v", err)
	}

	srv := server.New(cfg, deps, logger)
	srv.Setup()

	if err := srv.Start(ctx); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	if err := srv.WaitForShutdown(ctx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
