package inventory

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/jonmartinstorm/esmsnusern/internal/fetcher"
	"github.com/jonmartinstorm/esmsnusern/internal/merge"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// LoadManualList leser den manuelt kuraterte listen (én source_url per
// rad). URL-er vi allerede har fra andre kilder regnes som gyldige uten
// videre; resten probes mot metrikk-tjenesten for å slippe å dra med
// oss døde lenker inn i berikelsen.
func LoadManualList(ctx context.Context, path string, knownURLs map[string]bool) ([]models.ToolRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("kunne ikke åpne manuell liste %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("kunne ikke lese manuell liste %s: %w", path, err)
	}

	col := -1
	if len(rows) > 0 {
		for i, name := range rows[0] {
			if strings.TrimSpace(name) == "source_url" {
				col = i
				break
			}
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("manuell liste %s mangler source_url-kolonnen", path)
	}

	var records []models.ToolRecord
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		url := merge.NormalizeURL(row[col])
		if url == "" {
			continue
		}
		if !knownURLs[url] && !fetcher.RepoExists(ctx, url) {
			continue
		}
		parts := strings.Split(url, "/")
		records = append(records, models.ToolRecord{
			Name:    parts[len(parts)-1],
			URL:     url,
			Sources: []string{SourceManual},
		})
	}
	return records, nil
}
