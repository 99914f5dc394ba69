package fetcher

import (
	"context"
	"net/url"
	"time"
)

// Basis-URL-er for ecosyste.ms. Variabler slik at tester kan peke dem
// mot en httptest-server.
var (
	RepoLookupAPI     = "https://repos.ecosyste.ms/api/v1/repositories/lookup?url="
	PackagesLookupAPI = "https://packages.ecosyste.ms/api/v1/packages/lookup?repository_url="
)

// CommitStats er commit-fordelingen fra ecosyste.ms. DDS er en peker
// fordi feltet kan mangle helt – 0 og "ingen data" er ikke det samme.
type CommitStats struct {
	DDS             *float64 `json:"dds"`
	TotalCommitters int64    `json:"total_committers"`
}

// RepoData er delmengden av repository-oppslaget vi bryr oss om.
type RepoData struct {
	FullName    string       `json:"full_name"`
	Owner       string       `json:"owner"`
	Host        Host         `json:"host"`
	Description string       `json:"description"`
	Archived    bool         `json:"archived"`
	Stars       int64        `json:"stargazers_count"`
	Forks       int64        `json:"forks_count"`
	Language    string       `json:"language"`
	License     string       `json:"license"`
	CreatedAt   time.Time    `json:"created_at"`
	PushedAt    time.Time    `json:"pushed_at"`
	HTMLURL     string       `json:"html_url"`
	CommitStats *CommitStats `json:"commit_stats"`
}

type Host struct {
	Name string `json:"name"`
}

// PackageData er ett pakkeregister-treff for et repo.
type PackageData struct {
	Name                     string     `json:"name"`
	Ecosystem                string     `json:"ecosystem"`
	Downloads                *int64     `json:"downloads"`
	DownloadsPeriod          string     `json:"downloads_period"`
	DependentReposCount      *int64     `json:"dependent_repos_count"`
	LatestReleasePublishedAt *time.Time `json:"latest_release_published_at"`
}

// LookupRepo slår opp et repo i ecosyste.ms på normalisert URL.
// 404 og 403 kommer tilbake som ErrNotFound/ErrAccessDenied, som
// filtersteg 2 bruker til å droppe raden med grunn.
func LookupRepo(ctx context.Context, repoURL string) (*RepoData, error) {
	var data RepoData
	if err := DoJSON(ctx, "GET", RepoLookupAPI+url.QueryEscape(repoURL), "", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// LookupPackages slår opp pakkene knyttet til et repo i ecosyste.ms.
func LookupPackages(ctx context.Context, repoURL string) ([]PackageData, error) {
	var data []PackageData
	if err := DoJSON(ctx, "GET", PackagesLookupAPI+url.QueryEscape(repoURL), "", nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// RepoExists sjekker om ecosyste.ms kjenner til repoet. Brukes av
// lasteren for den manuelle listen, der ukjente repoer forkastes tidlig.
func RepoExists(ctx context.Context, repoURL string) bool {
	_, err := LookupRepo(ctx, repoURL)
	return err == nil
}
