// Package enricher slår opp eksterne metrikker for hvert verktøy som
// overlevde filtreringen. Ett feilet kall velter aldri batchen – raden
// får et datagap og kjøringen fortsetter.
package enricher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonmartinstorm/esmsnusern/internal/fetcher"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// DefaultCallTimeout gjør et hengende nettverkskall om til et datagap
// i stedet for å stoppe batchen.
const DefaultCallTimeout = 30 * time.Second

type Enricher struct {
	Parallelism int
	CallTimeout time.Duration
}

func New(parallelism int) *Enricher {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Enricher{
		Parallelism: parallelism,
		CallTimeout: DefaultCallTimeout,
	}
}

// Enrich beriker verktøyene med et begrenset antall samtidige arbeidere.
// Hver arbeider eier nøyaktig én rad i resultat-slicen, så det trengs
// ingen låsing. Rader metrikk-tjenesten svarte 404/403 for kommer
// tilbake som droppede (filtersteg 2), ikke som nullede statistikkrader.
func (e *Enricher) Enrich(ctx context.Context, tools []models.ToolRecord) ([]models.ToolStats, []models.Dropped) {
	type outcome struct {
		stats   models.ToolStats
		dropped *models.Dropped
	}
	results := make([]outcome, len(tools))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.Parallelism)

	for i, tool := range tools {
		g.Go(func() error {
			stats, dropped := e.enrichOne(gctx, tool)
			results[i] = outcome{stats: stats, dropped: dropped}
			return nil
		})
	}
	// Arbeiderne returnerer aldri feil; Wait venter bare ut batchen.
	_ = g.Wait()

	var stats []models.ToolStats
	var dropped []models.Dropped
	for _, res := range results {
		if res.dropped != nil {
			dropped = append(dropped, *res.dropped)
			continue
		}
		stats = append(stats, res.stats)
	}

	slices.SortFunc(stats, func(a, b models.ToolStats) int {
		return strings.Compare(a.ID, b.ID)
	})
	return stats, dropped
}

func (e *Enricher) enrichOne(ctx context.Context, tool models.ToolRecord) (models.ToolStats, *models.Dropped) {
	stats := models.ToolStats{ToolRecord: tool}

	repo, err := e.lookupRepo(ctx, tool.URL)
	switch {
	case errors.Is(err, fetcher.ErrNotFound):
		slog.Warn("Repo finnes ikke hos metrikk-tjenesten", "id", tool.ID, "url", tool.URL)
		return stats, &models.Dropped{Key: tool.ID, Reason: "repository not found"}
	case errors.Is(err, fetcher.ErrAccessDenied):
		slog.Warn("Metrikk-tjenesten nektet tilgang", "id", tool.ID, "url", tool.URL)
		return stats, &models.Dropped{Key: tool.ID, Reason: "access denied"}
	case err != nil:
		slog.Warn("Repo-oppslag feilet – markerer datagap", "id", tool.ID, "error", err)
		markGap(&stats, fmt.Sprintf("repo-oppslag: %v", err))
		return stats, nil
	}

	stats.CreatedAt = repo.CreatedAt
	stats.PushedAt = repo.PushedAt
	stats.Stars = repo.Stars
	stats.Forks = repo.Forks
	stats.Language = repo.Language
	stats.License = repo.License
	stats.Archived = repo.Archived
	if stats.Description == "" {
		stats.Description = repo.Description
	}
	if cs := repo.CommitStats; cs != nil {
		stats.Contributors = cs.TotalCommitters
		if cs.DDS != nil {
			stats.DDS = models.DDS{Score: *cs.DDS, HasData: true}
		}
	}

	e.addPackageData(ctx, &stats)

	if docs := e.findDocs(ctx, tool.URL); docs != "" {
		stats.DocsURL = docs
	} else {
		slog.Debug("Fant ingen dokumentasjon", "id", tool.ID)
	}

	return stats, nil
}

// addPackageData fletter inn pakkeregister-data. Nedlastingstallet er
// nil til et register faktisk har svart – en ekte 0 lagres som 0.
func (e *Enricher) addPackageData(ctx context.Context, stats *models.ToolStats) {
	packages, err := e.lookupPackages(ctx, stats.URL)
	if err != nil {
		if !errors.Is(err, fetcher.ErrNotFound) {
			slog.Warn("Pakke-oppslag feilet – markerer datagap", "id", stats.ID, "error", err)
			markGap(stats, fmt.Sprintf("pakke-oppslag: %v", err))
		}
		return
	}

	var latest time.Time
	for _, pkg := range packages {
		switch {
		case pkg.Downloads != nil && pkg.DownloadsPeriod == "last-month":
			addDownloads(stats, *pkg.Downloads)
		default:
			// ecosyste.ms mangler tall for bl.a. julia; spør registeret direkte.
			count, err := e.registryDownloads(ctx, pkg.Ecosystem, pkg.Name)
			if errors.Is(err, fetcher.ErrNoRegistry) {
				slog.Warn("Ingen nedlastingsdata for pakke", "pakke", pkg.Name, "økosystem", pkg.Ecosystem)
			} else if err != nil {
				slog.Warn("Register-fallback feilet", "pakke", pkg.Name, "error", err)
				markGap(stats, fmt.Sprintf("register-fallback %s: %v", pkg.Ecosystem, err))
			} else {
				addDownloads(stats, count)
			}
		}

		if pkg.DependentReposCount != nil && *pkg.DependentReposCount > stats.Dependents {
			stats.Dependents = *pkg.DependentReposCount
		}
		if pkg.LatestReleasePublishedAt != nil && pkg.LatestReleasePublishedAt.After(latest) {
			latest = *pkg.LatestReleasePublishedAt
		}
	}
	if !latest.IsZero() {
		stats.LatestRelease = latest.Format("2006-01-02")
	}
}

func addDownloads(stats *models.ToolStats, count int64) {
	if stats.Downloads == nil {
		stats.Downloads = new(int64)
	}
	*stats.Downloads += count
}

func markGap(stats *models.ToolStats, reason string) {
	stats.DataGap = true
	if stats.GapReason != "" {
		reason = stats.GapReason + "; " + reason
	}
	stats.GapReason = reason
}

// Kall-wrappere med per-kall-timeout, slik at ett hengende kall blir
// et gap og ikke en stans.

func (e *Enricher) lookupRepo(ctx context.Context, url string) (*fetcher.RepoData, error) {
	tctx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()
	return fetcher.LookupRepo(tctx, url)
}

func (e *Enricher) lookupPackages(ctx context.Context, url string) ([]fetcher.PackageData, error) {
	tctx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()
	return fetcher.LookupPackages(tctx, url)
}

func (e *Enricher) registryDownloads(ctx context.Context, ecosystem, pkg string) (int64, error) {
	tctx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()
	return fetcher.RegistryDownloads(tctx, ecosystem, pkg)
}

func (e *Enricher) findDocs(ctx context.Context, url string) string {
	tctx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()
	return fetcher.FindDocs(tctx, url)
}
