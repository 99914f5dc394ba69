package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonmartinstorm/esmsnusern/internal/collector"
	"github.com/jonmartinstorm/esmsnusern/internal/config"
	"github.com/jonmartinstorm/esmsnusern/internal/dbwriter"
	"github.com/jonmartinstorm/esmsnusern/internal/logger"
	_ "github.com/lib/pq"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		<-ctx.Done()
		slog.Info("SIGTERM mottatt – markøren står igjen så vi kan fortsette senere")
	}()

	logger.SetupLogger()

	cfg, err := config.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Ugyldig konfigurasjon", "error", err)
		os.Exit(1)
	}
	if err := config.ValidateUserConfig(cfg); err != nil {
		slog.Error("Ugyldig konfigurasjon for brukerinnsamling", "error", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Debug)

	store, err := dbwriter.NewPostgresWriter(cfg.PostgresDSN)
	if err != nil {
		slog.Error("Klarte ikke å nå databasen", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("Klarte ikke å lukke store", "error", cerr)
		}
	}()

	client, err := collector.NewGitHubClient(cfg)
	if err != nil {
		slog.Error("Klarte ikke å lage GitHub-klient", "error", err)
		os.Exit(1)
	}

	repoURLs, err := store.StatsURLs(ctx)
	if err != nil {
		slog.Error("Klarte ikke å hente repo-listen", "error", err)
		os.Exit(1)
	}
	if len(repoURLs) == 0 {
		slog.Error("Ingen verktøy i databasen, kjør inventar-pipelinen først")
		os.Exit(1)
	}

	c := collector.New(client, store)
	if err := c.Run(ctx, repoURLs); err != nil {
		slog.Error("Innsamlingen feilet", "error", err)
		os.Exit(1)
	}

	fetched, err := c.FetchNewUserDetails(ctx)
	if err != nil {
		slog.Error("Henting av brukerdetaljer feilet", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Ferdig med brukerinnsamlingen", "nye_brukere", fetched)
}
