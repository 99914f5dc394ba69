package merge

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// Exclusion er én rad i den manuelt vedlikeholdte eksklusjonslisten.
// Nøkkelen matcher enten normalisert navn eller normalisert URL, og
// grunnen følger alltid med i revisjonssporet.
type Exclusion struct {
	Key    string
	Reason string
}

// LoadExclusions leser eksklusjonslisten (CSV: id_or_url,reason).
// En manglende fil betyr bare at ingenting er ekskludert.
func LoadExclusions(path string) ([]Exclusion, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("kunne ikke åpne eksklusjonsliste %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("kunne ikke lese eksklusjonsliste %s: %w", path, err)
	}

	var exclusions []Exclusion
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.TrimSpace(row[0]) == "id_or_url" {
			continue
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		excl := Exclusion{Key: strings.TrimSpace(row[0]), Reason: "manuelt ekskludert"}
		if len(row) > 1 && strings.TrimSpace(row[1]) != "" {
			excl.Reason = strings.TrimSpace(row[1])
		}
		exclusions = append(exclusions, excl)
	}
	return exclusions, nil
}

// ApplyExclusions trekker eksklusjonslisten fra tabellen. Hver fjernet
// rad logges med regelen som traff – aldri stille.
func ApplyExclusions(records []models.ToolRecord, exclusions []Exclusion) ([]models.ToolRecord, []models.Dropped) {
	byKey := make(map[string]Exclusion, len(exclusions))
	for _, excl := range exclusions {
		if id := NormalizeName(excl.Key); id != "" {
			byKey[id] = excl
		}
		if url := NormalizeURL(excl.Key); url != "" {
			byKey[url] = excl
		}
	}

	var kept []models.ToolRecord
	var dropped []models.Dropped
	for _, rec := range records {
		excl, hitName := byKey[rec.ID]
		if !hitName {
			excl, hitName = byKey[rec.URL]
		}
		if hitName {
			slog.Info("Ekskluderer verktøy", "id", rec.ID, "grunn", excl.Reason)
			dropped = append(dropped, models.Dropped{
				Key:    rec.ID,
				Reason: fmt.Sprintf("ekskludert av regel %q: %s", excl.Key, excl.Reason),
			})
			continue
		}
		kept = append(kept, rec)
	}
	return kept, dropped
}
