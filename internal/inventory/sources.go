package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonmartinstorm/esmsnusern/internal/fetcher"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// Kildene vi henter inventar fra. Variabler for testbarhet.
var (
	LFEnergyURL = "https://raw.githubusercontent.com/lf-energy/lfenergy-landscape/refs/heads/main/landscape.yml"
	GPSTURL     = "https://api.github.com/repos/G-PST/opentools/contents/data/software"
	OSTURL      = "https://docs.getgrist.com/api/docs/gSscJkc5Rb1Rw45gh1o1Yc/tables/Projects/data"
)

// Kildenavn, i prioritert rekkefølge for tie-break ved sammenslåing.
const (
	SourceLFEnergy    = "lf-energy-landscape"
	SourceOpenSustain = "opensustain-tech"
	SourceGPST        = "g-pst"
	SourceManual      = "manual"
)

// ToolTypes er G-PST-kategoriene vi regner som energisystemmodeller.
var ToolTypes = []string{"production-cost", "capacity-expansion", "power-flow", "other"}

// GetLFEnergyLandscape henter "Energy Systems / Modeling and Optimization"
// fra LF-Energy-landskapet. Landskapet er YAML, ikke JSON.
func GetLFEnergyLandscape(ctx context.Context) ([]models.ToolRecord, error) {
	raw, err := fetcher.GetRaw(ctx, LFEnergyURL, "")
	if err != nil {
		return nil, fmt.Errorf("lf-energy-landskapet utilgjengelig: %w", err)
	}

	var landscape struct {
		Landscape []struct {
			Name          string `yaml:"name"`
			Subcategories []struct {
				Name  string `yaml:"name"`
				Items []struct {
					Name        string `yaml:"name"`
					Description string `yaml:"description"`
					RepoURL     string `yaml:"repo_url"`
					HomepageURL string `yaml:"homepage_url"`
				} `yaml:"items"`
			} `yaml:"subcategories"`
		} `yaml:"landscape"`
	}
	if err := yaml.Unmarshal(raw, &landscape); err != nil {
		return nil, fmt.Errorf("kunne ikke parse lf-energy-landskapet: %w", err)
	}

	var records []models.ToolRecord
	for _, cat := range landscape.Landscape {
		if cat.Name != "Energy Systems" {
			continue
		}
		for _, sub := range cat.Subcategories {
			if sub.Name != "Modeling and Optimization" {
				continue
			}
			for _, item := range sub.Items {
				url := item.RepoURL
				if url == "" {
					url = item.HomepageURL
				}
				records = append(records, models.ToolRecord{
					Name:        item.Name,
					URL:         url,
					Description: item.Description,
					Sources:     []string{SourceLFEnergy},
				})
			}
		}
	}
	return records, nil
}

// GetGPSTOpenTools henter manuelt kuraterte verktøy fra G-PST opentools.
// Hvert verktøy ligger som en egen YAML-fil under data/software, så vi
// lister katalogen via contents-API-et og henter filene én og én.
func GetGPSTOpenTools(ctx context.Context, token string) ([]models.ToolRecord, error) {
	var listing []struct {
		Name        string `json:"name"`
		DownloadURL string `json:"download_url"`
	}
	if err := fetcher.DoJSON(ctx, "GET", GPSTURL, token, nil, &listing); err != nil {
		return nil, fmt.Errorf("g-pst opentools utilgjengelig: %w", err)
	}

	var records []models.ToolRecord
	for _, entry := range listing {
		raw, err := fetcher.GetRaw(ctx, entry.DownloadURL, token)
		if err != nil {
			slog.Warn("Hopper over g-pst-verktøy", "fil", entry.Name, "error", err)
			continue
		}

		var tool struct {
			Name          string   `yaml:"name"`
			URLSourcecode string   `yaml:"url_sourcecode"`
			Description   string   `yaml:"description"`
			Categories    []string `yaml:"categories"`
		}
		if err := yaml.Unmarshal(raw, &tool); err != nil {
			slog.Warn("Kunne ikke parse g-pst-verktøy", "fil", entry.Name, "error", err)
			continue
		}

		var kept []string
		for _, cat := range tool.Categories {
			if slices.Contains(ToolTypes, cat) {
				kept = append(kept, cat)
			}
		}
		if len(kept) == 0 {
			continue
		}

		records = append(records, models.ToolRecord{
			Name:        tool.Name,
			URL:         tool.URLSourcecode,
			Description: tool.Description,
			Category:    strings.Join(kept, ","),
			Sources:     []string{SourceGPST},
		})
	}
	return records, nil
}

// GetOpenSustainTech henter ESM-radene fra OpenSustain.tech sin
// Grist-tabell. Svaret er kolonneorientert JSON.
func GetOpenSustainTech(ctx context.Context) ([]models.ToolRecord, error) {
	raw, err := fetcher.GetRaw(ctx, OSTURL, "")
	if err != nil {
		return nil, fmt.Errorf("opensustain.tech utilgjengelig: %w", err)
	}

	var table struct {
		GitURL       []string `json:"git_url"`
		Description  []string `json:"description"`
		ProjectNames []string `json:"project_names"`
		// Lagret som lister på formen ["L", "Grid Analysis and Planning"];
		// vi vil bare ha den andre verdien.
		SubCategory [][]any `json:"sub_category"`
	}
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("kunne ikke parse opensustain.tech-tabellen: %w", err)
	}

	wanted := []string{"Energy System Modeling Frameworks", "Grid Analysis and Planning"}

	var records []models.ToolRecord
	for i := range table.GitURL {
		if i >= len(table.SubCategory) || len(table.SubCategory[i]) < 2 {
			continue
		}
		sub, _ := table.SubCategory[i][1].(string)
		if !slices.Contains(wanted, sub) {
			continue
		}
		rec := models.ToolRecord{
			URL:     table.GitURL[i],
			Sources: []string{SourceOpenSustain},
		}
		if i < len(table.ProjectNames) {
			rec.Name = table.ProjectNames[i]
		}
		if i < len(table.Description) {
			rec.Description = table.Description[i]
		}
		records = append(records, rec)
	}
	return records, nil
}
