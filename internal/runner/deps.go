package runner

import (
	"context"
	"time"

	"github.com/jonmartinstorm/esmsnusern/internal/bqwriter"
	"github.com/jonmartinstorm/esmsnusern/internal/config"
	"github.com/jonmartinstorm/esmsnusern/internal/dbwriter"
	"github.com/jonmartinstorm/esmsnusern/internal/enricher"
	"github.com/jonmartinstorm/esmsnusern/internal/inventory"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// Store er skrivesiden pipelinen trenger. PostgresWriter oppfyller
// hele kontrakten, mockene i internal/mocks oppfyller den i test.
type Store interface {
	ReplaceTools(ctx context.Context, tools []models.ToolRecord, snapshot time.Time) error
	ReplaceStats(ctx context.Context, stats []models.ToolStats, snapshot time.Time) error
	RecordDropped(ctx context.Context, dropped []models.Dropped, snapshot time.Time) error
	StatsCount(ctx context.Context) (int, error)
	GetRefreshState(ctx context.Context) (*models.RefreshState, error)
	SetRefreshState(ctx context.Context, state models.RefreshState) error
	Close() error
}

type RunnerDeps interface {
	OpenStore(cfg config.Config) (Store, error)
	LoadInventories(ctx context.Context, cfg config.Config) ([]models.ToolRecord, map[string]int, error)
	Enrich(ctx context.Context, cfg config.Config, tools []models.ToolRecord) ([]models.ToolStats, []models.Dropped)
	ExportStats(ctx context.Context, cfg config.Config, stats []models.ToolStats, dropped []models.Dropped, snapshot time.Time) error
}

type RealDeps struct{}

func (RealDeps) OpenStore(cfg config.Config) (Store, error) {
	return dbwriter.NewPostgresWriter(cfg.PostgresDSN)
}

func (RealDeps) LoadInventories(ctx context.Context, cfg config.Config) ([]models.ToolRecord, map[string]int, error) {
	return inventory.LoadAll(ctx, cfg.Token, cfg.ManualListPath())
}

func (RealDeps) Enrich(ctx context.Context, cfg config.Config, tools []models.ToolRecord) ([]models.ToolStats, []models.Dropped) {
	return enricher.New(cfg.Parallelism).Enrich(ctx, tools)
}

func (RealDeps) ExportStats(ctx context.Context, cfg config.Config, stats []models.ToolStats, dropped []models.Dropped, snapshot time.Time) error {
	writer, err := bqwriter.NewBigQueryWriter(ctx, &cfg)
	if err != nil {
		return err
	}
	return writer.ExportStats(ctx, stats, dropped, snapshot)
}
