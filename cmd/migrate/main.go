package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jonmartinstorm/esmsnusern/internal/dbwriter"
	_ "github.com/lib/pq"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: false,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		slog.Error("❌ POSTGRES_DSN ikke satt")
		os.Exit(1)
	}

	store, err := dbwriter.NewPostgresWriter(dsn)
	if err != nil {
		slog.Error("Kunne ikke koble til Postgres", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("Klarte ikke å lukke store", "error", cerr)
		}
	}()

	slog.Info("🚀 Oppretter skjema")
	if err := store.EnsureSchema(ctx); err != nil {
		slog.Error("Skjemafeil", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Skjemaet er på plass")
}
