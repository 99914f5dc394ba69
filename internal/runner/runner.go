package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonmartinstorm/esmsnusern/internal/config"
	"github.com/jonmartinstorm/esmsnusern/internal/merge"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
	"github.com/jonmartinstorm/esmsnusern/internal/refresh"
)

// Run kjører hele inventar-pipelinen: last kilder, slå sammen,
// filtrer, sjekk om noe har endret seg, berik og skriv.
func Run(ctx context.Context, cfg config.Config, deps RunnerDeps) error {
	slog.Info("🔁 Starter inventar-pipelinen")

	store, err := deps.OpenStore(cfg)
	if err != nil {
		return fmt.Errorf("DB-feil: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("Klarte ikke å lukke store", "error", cerr)
		}
	}()

	records, perSource, err := deps.LoadInventories(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("📥 Inventarkilder lastet", "antall", len(records), "per_kilde", perSource)

	merged, duplicates := merge.Merge(records)

	exclusions, err := merge.LoadExclusions(cfg.ExclusionsPath())
	if err != nil {
		return err
	}
	merged, excluded := merge.ApplyExclusions(merged, exclusions)
	merged, noGit := merge.DropNoGit(merged)
	slog.Info("🧹 Inventar slått sammen og filtrert",
		"beholdt", len(merged),
		"duplikater", len(duplicates),
		"ekskludert", len(excluded),
		"uten_git", len(noGit))

	inputFiles := []string{cfg.ManualListPath(), cfg.ExclusionsPath()}
	fingerprint := refresh.Fingerprint(inputFiles, merged)
	ctrl := &refresh.Controller{Store: store}

	shouldRun, err := ctrl.ShouldRun(ctx, fingerprint)
	if err != nil {
		return err
	}
	if !shouldRun {
		slog.Info("💤 Inventaret er uendret, hopper over berikelse")
		return nil
	}

	slog.Info("📊 Beriker med eksterne metrikker", "antall", len(merged), "parallelitet", cfg.Parallelism)
	stats, notFound := deps.Enrich(ctx, cfg, merged)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	dropped := make([]models.Dropped, 0, len(duplicates)+len(excluded)+len(noGit)+len(notFound))
	dropped = append(dropped, duplicates...)
	dropped = append(dropped, excluded...)
	dropped = append(dropped, noGit...)
	dropped = append(dropped, notFound...)

	snapshot := time.Now().UTC()
	slog.Info("📝 Skriver til DB", "antall_verktoy", len(stats), "antall_droppet", len(dropped))
	if err := store.ReplaceTools(ctx, merged, snapshot); err != nil {
		return err
	}
	if err := store.ReplaceStats(ctx, stats, snapshot); err != nil {
		return err
	}
	if err := store.RecordDropped(ctx, dropped, snapshot); err != nil {
		return err
	}

	if cfg.Storage == config.StorageBigQuery {
		slog.Info("☁️ Eksporterer til BigQuery", "dataset", cfg.BQDataset)
		if err := deps.ExportStats(ctx, cfg, stats, dropped, snapshot); err != nil {
			return err
		}
	}

	if err := ctrl.MarkSuccess(ctx, fingerprint); err != nil {
		return err
	}

	summary := buildSummary(perSource, duplicates, excluded, noGit, notFound, stats)
	slog.Info("✅ Ferdig med inventarkjøringen",
		"totalt", summary.Total,
		"duplikater", summary.Duplicates,
		"ekskludert", summary.Excluded,
		"uten_git", summary.NoGit,
		"ikke_funnet", summary.NotFound,
		"datagap", summary.Gaps,
		"gap_andel", fmt.Sprintf("%.2f", summary.GapFraction()))
	return nil
}

func buildSummary(perSource map[string]int, duplicates, excluded, noGit, notFound []models.Dropped, stats []models.ToolStats) models.RunSummary {
	summary := models.RunSummary{
		PerSource:  perSource,
		Duplicates: len(duplicates),
		Excluded:   len(excluded),
		NoGit:      len(noGit),
		NotFound:   len(notFound),
		Total:      len(stats),
	}
	for _, s := range stats {
		if s.DataGap {
			summary.Gaps++
		}
	}
	return summary
}
