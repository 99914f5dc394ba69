package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonmartinstorm/esmsnusern/internal/classifier"
	"github.com/jonmartinstorm/esmsnusern/internal/config"
	"github.com/jonmartinstorm/esmsnusern/internal/dbwriter"
	"github.com/jonmartinstorm/esmsnusern/internal/logger"
	_ "github.com/lib/pq"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	logger.SetupLogger()

	cfg, err := config.LoadAndValidateConfig()
	if err != nil {
		slog.Error("Ugyldig konfigurasjon", "error", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Debug)

	rules, err := classifier.LoadRules(cfg.RulesPath())
	if err != nil {
		slog.Error("Klarte ikke å laste klassifiseringsreglene", "error", err)
		os.Exit(1)
	}
	slog.Info("📜 Regler lastet", "antall", len(rules.Rules))

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

	users, err := store.ListUserDetails(ctx)
	if err != nil {
		slog.Error("Klarte ikke å hente brukerne", "error", err)
		os.Exit(1)
	}

	classified := rules.ClassifyAll(users)

	perCategory := map[string]int{}
	for _, user := range classified {
		if err := store.UpdateClassification(ctx, user.Login, user.Category, user.RuleID); err != nil {
			slog.Warn("Klarte ikke å oppdatere bruker", "login", user.Login, "error", err)
			continue
		}
		perCategory[user.Category]++
	}

	slog.Info("✅ Ferdig med klassifiseringen", "antall", len(classified), "per_kategori", perCategory)
}
