package inventory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonmartinstorm/esmsnusern/internal/merge"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// ErrNoSources betyr at ingen inventarkilder var tilgjengelige.
// Det er det eneste som er fatalt for en kjøring.
var ErrNoSources = errors.New("ingen inventarkilder tilgjengelig")

// LoadAll henter alle kildene i prioritert rekkefølge. En utilgjengelig
// kilde logges og hoppes over; kjøringen fortsetter med resten.
func LoadAll(ctx context.Context, token, manualListPath string) ([]models.ToolRecord, map[string]int, error) {
	type loader struct {
		name string
		load func(context.Context) ([]models.ToolRecord, error)
	}

	loaders := []loader{
		{SourceLFEnergy, GetLFEnergyLandscape},
		{SourceOpenSustain, GetOpenSustainTech},
		{SourceGPST, func(ctx context.Context) ([]models.ToolRecord, error) {
			return GetGPSTOpenTools(ctx, token)
		}},
	}

	var all []models.ToolRecord
	perSource := map[string]int{}
	for _, l := range loaders {
		records, err := l.load(ctx)
		if err != nil {
			slog.Warn("Inventarkilde utilgjengelig – fortsetter uten", "kilde", l.name, "error", err)
			continue
		}
		slog.Info("Hentet inventarkilde", "kilde", l.name, "antall", len(records))
		perSource[l.name] = len(records)
		all = append(all, records...)
	}

	if len(perSource) == 0 {
		return nil, nil, ErrNoSources
	}

	// Den manuelle listen slipper oppslags-probing for URL-er vi
	// allerede kjenner fra de automatiske kildene.
	known := map[string]bool{}
	for _, rec := range all {
		known[merge.NormalizeURL(rec.URL)] = true
	}

	manual, err := LoadManualList(ctx, manualListPath, known)
	if err != nil {
		slog.Warn("Manuell liste utilgjengelig – fortsetter uten", "error", err)
	} else {
		slog.Info("Hentet inventarkilde", "kilde", SourceManual, "antall", len(manual))
		perSource[SourceManual] = len(manual)
		all = append(all, manual...)
	}

	return all, perSource, nil
}
