package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Basis-URL-er for dokumentasjonsprobing. Variabler for testbarhet.
var (
	RTDSiteTemplate = "https://%s.readthedocs.io"
	RTDProjectsAPI  = "https://readthedocs.org/api/v3/projects/"
)

// SplitRepoURL plukker host, eier og repo-navn ut av en repo-URL.
func SplitRepoURL(repoURL string) (host, owner, repo string, err error) {
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", "", "", err
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 {
		return "", "", "", fmt.Errorf("kan ikke utlede eier/repo fra %s", repoURL)
	}
	return parsed.Host, parts[0], parts[len(parts)-1], nil
}

// RTDSlugCandidates er de mest sannsynlige readthedocs-slugene for et
// prosjekt, i prioritert rekkefølge. Antakelsene er sterke men treffer
// de aller fleste prosjektene som faktisk bruker readthedocs.
func RTDSlugCandidates(owner, repo string) []string {
	return []string{
		repo,
		strings.ReplaceAll(repo, "_", "-"),
		owner + "-" + repo,
		repo + "-documentation",
	}
}

// FindDocs prober et lite, fast sett av kjente dokumentasjons-mønstre
// og returnerer første treff. Ingen treff gir tom streng – vi gjetter
// aldri en docs-URL vi ikke har verifisert.
func FindDocs(ctx context.Context, repoURL string) string {
	host, owner, repo, err := SplitRepoURL(repoURL)
	if err != nil {
		return ""
	}

	for _, slug := range RTDSlugCandidates(owner, repo) {
		if verifyRTD(ctx, slug, repoURL) {
			return fmt.Sprintf(RTDSiteTemplate, slug)
		}
	}

	// github.com -> github.io, gitlab.com -> gitlab.io
	pagesHost := strings.Replace(host, ".com", ".io", 1)
	pagesURL := fmt.Sprintf("https://%s.%s/%s", owner, pagesHost, repo)
	if CheckURL(ctx, pagesURL) {
		return pagesURL
	}
	if stable := pagesURL + "/stable"; CheckURL(ctx, stable) {
		return stable
	}

	if host == "bitbucket.org" {
		if wiki := repoURL + ".git/wiki"; CheckURL(ctx, wiki) {
			return wiki
		}
	} else if wiki := repoURL + ".wiki.git"; CheckURL(ctx, wiki) {
		return wiki
	}

	return ""
}

// verifyRTD sjekker at et readthedocs-treff faktisk peker tilbake på
// repoet vi forventer, via RTD sitt prosjekt-API. Slug-kollisjoner med
// helt andre prosjekter er vanlige nok til at dette trengs.
func verifyRTD(ctx context.Context, slug, repoURL string) bool {
	site := fmt.Sprintf(RTDSiteTemplate, slug)
	if !CheckURL(ctx, site) {
		return false
	}

	var project struct {
		Repository struct {
			URL string `json:"url"`
		} `json:"repository"`
	}
	if err := DoJSON(ctx, "GET", RTDProjectsAPI+strings.ToLower(slug)+"/", "", nil, &project); err != nil {
		return false
	}
	if project.Repository.URL == "" {
		return false
	}

	// RTD kan peke på en gammel URL som redirecter til dagens repo.
	resolved := ResolveURL(ctx, project.Repository.URL)
	return strings.EqualFold(strings.TrimSuffix(resolved, ".git"), repoURL)
}
