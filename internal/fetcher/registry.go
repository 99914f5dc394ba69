package fetcher

import (
	"context"
	"errors"
	"fmt"
)

// Pakkeregister-API-er vi spør direkte når ecosyste.ms mangler
// nedlastingstall. Variabler for testbarhet.
var (
	JuliaStatsAPI = "https://juliapkgstats.com/api/v1/monthly_downloads/"
	PyPIStatsAPI  = "https://pypistats.org/api/packages/"
)

// JuliaDownloads henter forrige måneds nedlastinger for en Julia-pakke.
// ecosyste.ms returnerer alltid null for julia-økosystemet.
func JuliaDownloads(ctx context.Context, pkg string) (int64, error) {
	var out struct {
		TotalRequests int64 `json:"total_requests"`
	}
	if err := DoJSON(ctx, "GET", JuliaStatsAPI+pkg, "", nil, &out); err != nil {
		return 0, fmt.Errorf("juliapkgstats for %s: %w", pkg, err)
	}
	return out.TotalRequests, nil
}

// PyPIDownloads henter forrige måneds nedlastinger fra pypistats.org.
// En ekte null fra registeret er en gyldig verdi og returneres som 0, nil.
func PyPIDownloads(ctx context.Context, pkg string) (int64, error) {
	var out struct {
		Data struct {
			LastMonth int64 `json:"last_month"`
		} `json:"data"`
	}
	if err := DoJSON(ctx, "GET", PyPIStatsAPI+pkg+"/recent", "", nil, &out); err != nil {
		return 0, fmt.Errorf("pypistats for %s: %w", pkg, err)
	}
	return out.Data.LastMonth, nil
}

// RegistryDownloads prøver riktig register-fallback for et økosystem.
// ErrNoRegistry betyr at vi ikke har noen fallback – da forblir
// nedlastingstallet "ingen data", ikke 0.
var ErrNoRegistry = errors.New("ingen register-fallback for økosystemet")

func RegistryDownloads(ctx context.Context, ecosystem, pkg string) (int64, error) {
	switch ecosystem {
	case "julia":
		return JuliaDownloads(ctx, pkg)
	case "pypi":
		return PyPIDownloads(ctx, pkg)
	default:
		return 0, fmt.Errorf("%s: %w", ecosystem, ErrNoRegistry)
	}
}
