package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonmartinstorm/esmsnusern/internal/config"
	"github.com/jonmartinstorm/esmsnusern/internal/logger"
	"github.com/jonmartinstorm/esmsnusern/internal/runner"
	_ "github.com/lib/pq"
)

func main() {
	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		<-ctx.Done()
		slog.Info("SIGTERM mottatt – rydder opp...")
	}()

	logger.SetupLogger()

	cfg, err := config.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Ugyldig konfigurasjon", "error", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Debug)

	if err := runner.CheckDatabaseConnection(ctx, cfg.PostgresDSN); err != nil {
		slog.Error("Klarte ikke å nå databasen", "error", err)
		os.Exit(1)
	}

	if err := runner.RunApp(ctx, cfg, runner.RealDeps{}); err != nil {
		slog.Error("Applikasjonen feilet", "error", err)
		os.Exit(1)
	}
}
