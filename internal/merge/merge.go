// Package merge slår sammen inventarkildene til én tabell uten
// duplikater, og dokumenterer hver rad som droppes underveis.
package merge

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// SourcePriority avgjør hvem som vinner kanoniske visningsfelter når
// flere kilder lister samme verktøy. Senere kilder bidrar bare med
// proveniens og utfylling av tomme felter.
var SourcePriority = []string{
	"lf-energy-landscape",
	"opensustain-tech",
	"g-pst",
	"manual",
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName er dedup-nøkkel nr 1: små bokstaver, alle runs av
// spesialtegn erstattet med én understrek.
func NormalizeName(name string) string {
	normalized := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(normalized, "_")
}

// NormalizeURL er dedup-nøkkel nr 2: små bokstaver, uten trailing
// skråstrek og .git, og med https som standard skjema.
func NormalizeURL(raw string) string {
	normalized := strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
	if normalized == "" {
		return ""
	}
	if !strings.Contains(normalized, "://") {
		normalized = "https://" + normalized
	}
	return strings.TrimSuffix(normalized, ".git")
}

// Merge normaliserer, grupperer på navn og deretter på URL, og
// returnerer en deterministisk sortert tabell pluss revisjonssporet
// for alle duplikater. Å kjøre Merge to ganger på samme input gir
// byte-identisk output.
func Merge(records []models.ToolRecord) ([]models.ToolRecord, []models.Dropped) {
	normalized := make([]models.ToolRecord, 0, len(records))
	var dropped []models.Dropped

	for _, rec := range records {
		rec.URL = NormalizeURL(rec.URL)
		if rec.Name == "" && rec.URL != "" {
			parts := strings.Split(rec.URL, "/")
			rec.Name = parts[len(parts)-1]
		}
		rec.ID = NormalizeName(rec.Name)
		if rec.ID == "" && rec.URL == "" {
			dropped = append(dropped, models.Dropped{
				Key:    rec.Name,
				Reason: "mangler både navn og kildekode-URL",
			})
			continue
		}
		normalized = append(normalized, rec)
	}

	// Stabil sortering på kildeprioritet, så første rad i hver gruppe
	// alltid er den som vinner kanoniske felter.
	slices.SortStableFunc(normalized, func(a, b models.ToolRecord) int {
		return sourceRank(a) - sourceRank(b)
	})

	byName, droppedByName := groupBy(normalized, func(r models.ToolRecord) string { return r.ID })
	byURL, droppedByURL := groupBy(byName, func(r models.ToolRecord) string { return r.URL })

	dropped = append(dropped, droppedByName...)
	dropped = append(dropped, droppedByURL...)

	slices.SortFunc(byURL, func(a, b models.ToolRecord) int {
		return strings.Compare(a.ID, b.ID)
	})
	return byURL, dropped
}

// groupBy beholder første rad per nøkkel og fletter resten inn i den.
// Tom nøkkel grupperes aldri.
func groupBy(records []models.ToolRecord, key func(models.ToolRecord) string) ([]models.ToolRecord, []models.Dropped) {
	index := map[string]int{}
	var out []models.ToolRecord
	var dropped []models.Dropped

	for _, rec := range records {
		k := key(rec)
		if k == "" {
			out = append(out, rec)
			continue
		}
		if i, seen := index[k]; seen {
			fillEmpty(&out[i], rec)
			dropped = append(dropped, models.Dropped{
				Key:    rec.ID,
				Reason: fmt.Sprintf("duplikat av %s", out[i].ID),
			})
			continue
		}
		index[k] = len(out)
		out = append(out, rec)
	}
	return out, dropped
}

// fillEmpty beholder kanoniske felter og lar duplikatet bare fylle
// tomrom og bidra med proveniens.
func fillEmpty(dst *models.ToolRecord, src models.ToolRecord) {
	for _, s := range src.Sources {
		dst.AddSource(s)
	}
	if dst.URL == "" {
		dst.URL = src.URL
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}
}

func sourceRank(rec models.ToolRecord) int {
	best := len(SourcePriority)
	for _, s := range rec.Sources {
		if i := slices.Index(SourcePriority, s); i >= 0 && i < best {
			best = i
		}
	}
	return best
}

// DropNoGit fjerner rader uten en oppslagbar Git-hosting-URL.
// Resolverbarhet mot metrikk-tjenesten bekreftes først i filtersteg 2,
// etter berikelsen; her ser vi bare på vertsnavnet.
func DropNoGit(records []models.ToolRecord) ([]models.ToolRecord, []models.Dropped) {
	var kept []models.ToolRecord
	var dropped []models.Dropped

	for _, rec := range records {
		if hasGitHost(rec.URL) {
			kept = append(kept, rec)
			continue
		}
		dropped = append(dropped, models.Dropped{
			Key:    rec.ID,
			Reason: "ingen gyldig git-repo-URL",
		})
	}
	return kept, dropped
}

func hasGitHost(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Host)
	return strings.Contains(host, "git") || strings.Contains(host, "bitbucket")
}
