// Package collector henter alle brukere som har interagert med
// repoene i stats-tabellen. Hosting-API-et kan ikke levere bare
// deltaer pålitelig, så vi skanner alltid fullt og fletter inn i
// ledgeren med set-union – aldri overskriving.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"

	"github.com/jonmartinstorm/esmsnusern/internal/config"
	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// PageSize er sidestørrelsen mot hosting-API-et.
const PageSize = 100

// RateFloor er antall gjenværende kall vi pauser ved, slik at vi
// holder oss under timeskvoten i stedet for å treffe den.
const RateFloor = 20

// Store er den persisterte ledgeren og brukertabellen.
type Store interface {
	AppendInteractions(ctx context.Context, interactions []models.Interaction) (int64, error)
	UnseenLogins(ctx context.Context) ([]string, error)
	UpsertUserDetails(ctx context.Context, user models.UserDetails) error
	UpsertOrg(ctx context.Context, org models.OrgDetails) error
	GetCursor(ctx context.Context) (string, error)
	SetCursor(ctx context.Context, repo string) error
	ClearCursor(ctx context.Context) error
}

type Collector struct {
	Client *github.Client
	Store  Store

	// sleep kan byttes ut i tester.
	sleep func(time.Duration)
}

func New(client *github.Client, store Store) *Collector {
	return &Collector{Client: client, Store: store, sleep: time.Sleep}
}

// NewGitHubClient lager en klient med GitHub App-transport hvis appen
// er konfigurert, ellers med personlig token.
func NewGitHubClient(cfg config.Config) (*github.Client, error) {
	if cfg.AppID != 0 && cfg.AppInstallationID != 0 && cfg.AppPrivateKey != "" {
		transport, err := ghinstallation.NewKeyFromFile(
			http.DefaultTransport, cfg.AppID, cfg.AppInstallationID, cfg.AppPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("kunne ikke lage GitHub App-transport: %w", err)
		}
		return github.NewClient(&http.Client{Transport: transport}), nil
	}
	return github.NewClient(nil).WithAuthToken(cfg.Token), nil
}

// Run samler interaksjoner for alle GitHub-repoene i listen. En
// markør over sist fullførte repo persisteres, så en restart fortsetter
// der forrige kjøring slapp i stedet for fra start.
func (c *Collector) Run(ctx context.Context, repoURLs []string) error {
	cursor, err := c.Store.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("kunne ikke lese markør: %w", err)
	}
	skipping := cursor != ""
	if skipping {
		slog.Info("Fortsetter etter forrige kjøring", "markør", cursor)
	}

	for _, repoURL := range repoURLs {
		repo, ok := githubRepo(repoURL)
		if !ok {
			slog.Debug("Hopper over repo utenfor github.com", "url", repoURL)
			continue
		}
		if skipping {
			if repo == cursor {
				skipping = false
			}
			continue
		}

		slog.Info("🔍 Samler interaksjoner", "repo", repo)
		interactions, err := c.collectRepo(ctx, repo)
		if err != nil {
			return fmt.Errorf("innsamling for %s: %w", repo, err)
		}

		added, err := c.Store.AppendInteractions(ctx, interactions)
		if err != nil {
			return fmt.Errorf("kunne ikke skrive ledger for %s: %w", repo, err)
		}
		slog.Info("Flettet inn i ledgeren", "repo", repo, "observert", len(interactions), "nye", added)

		if err := c.Store.SetCursor(ctx, repo); err != nil {
			return fmt.Errorf("kunne ikke skrive markør: %w", err)
		}
	}

	if err := c.Store.ClearCursor(ctx); err != nil {
		return fmt.Errorf("kunne ikke nullstille markør: %w", err)
	}
	return nil
}

// githubRepo gjør en stats-tabell-URL om til owner/name, eller false
// for repoer som ikke er hostet på github.com.
func githubRepo(repoURL string) (string, bool) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(repoURL, "https://"), "http://")
	if !strings.HasPrefix(trimmed, "github.com/") {
		return "", false
	}
	parts := strings.Split(strings.Trim(strings.TrimPrefix(trimmed, "github.com/"), "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "/" + parts[1], true
}

func (c *Collector) collectRepo(ctx context.Context, repo string) ([]models.Interaction, error) {
	owner, name, _ := strings.Cut(repo, "/")

	var all []models.Interaction
	collectors := []func(context.Context, string, string, string) ([]models.Interaction, error){
		c.stargazers, c.forks, c.issuesAndPulls, c.watchers,
	}
	for _, collect := range collectors {
		interactions, err := collect(ctx, owner, name, repo)
		if err != nil {
			return nil, err
		}
		all = append(all, interactions...)
	}
	return all, nil
}

func (c *Collector) stargazers(ctx context.Context, owner, name, repo string) ([]models.Interaction, error) {
	var all []models.Interaction
	opts := &github.ListOptions{PerPage: PageSize}
	for {
		stargazers, resp, err := c.Client.Activity.ListStargazers(ctx, owner, name, opts)
		retry, err := c.pace(ctx, resp, err)
		if err != nil {
			return nil, err
		}
		if retry {
			continue
		}
		for _, sg := range stargazers {
			if sg.User == nil {
				continue
			}
			all = append(all, models.Interaction{
				Login: sg.User.GetLogin(),
				Repo:  repo,
				Kind:  models.InteractionStargazer,
				When:  timestamp(sg.StarredAt),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *Collector) forks(ctx context.Context, owner, name, repo string) ([]models.Interaction, error) {
	var all []models.Interaction
	opts := &github.RepositoryListForksOptions{ListOptions: github.ListOptions{PerPage: PageSize}}
	for {
		forks, resp, err := c.Client.Repositories.ListForks(ctx, owner, name, opts)
		retry, err := c.pace(ctx, resp, err)
		if err != nil {
			return nil, err
		}
		if retry {
			continue
		}
		for _, fork := range forks {
			if fork.Owner == nil {
				continue
			}
			all = append(all, models.Interaction{
				Login: fork.Owner.GetLogin(),
				Repo:  repo,
				Kind:  models.InteractionFork,
				When:  timestamp(fork.CreatedAt),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (c *Collector) issuesAndPulls(ctx context.Context, owner, name, repo string) ([]models.Interaction, error) {
	var all []models.Interaction
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: PageSize},
	}
	for {
		issues, resp, err := c.Client.Issues.ListByRepo(ctx, owner, name, opts)
		retry, err := c.pace(ctx, resp, err)
		if err != nil {
			return nil, err
		}
		if retry {
			continue
		}
		for _, issue := range issues {
			if issue.User == nil {
				continue
			}
			// Issue-API-et leverer også pull requests.
			kind := models.InteractionIssue
			if issue.IsPullRequest() {
				kind = models.InteractionPull
			}
			all = append(all, models.Interaction{
				Login: issue.User.GetLogin(),
				Repo:  repo,
				Kind:  kind,
				When:  timestamp(issue.CreatedAt),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.ListOptions.Page = resp.NextPage
	}
}

func (c *Collector) watchers(ctx context.Context, owner, name, repo string) ([]models.Interaction, error) {
	var all []models.Interaction
	opts := &github.ListOptions{PerPage: PageSize}
	for {
		watchers, resp, err := c.Client.Activity.ListWatchers(ctx, owner, name, opts)
		retry, err := c.pace(ctx, resp, err)
		if err != nil {
			return nil, err
		}
		if retry {
			continue
		}
		for _, user := range watchers {
			all = append(all, models.Interaction{
				Login: user.GetLogin(),
				Repo:  repo,
				Kind:  models.InteractionWatcher,
				// Hosting-API-et har ikke tidspunkt for watchers.
			})
		}
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// pace holder oss under timeskvoten: ved kvotefeil venter vi til reset
// og prøver siden på nytt i stedet for å feile kjøringen; ved få
// gjenværende kall venter vi føre var.
func (c *Collector) pace(ctx context.Context, resp *github.Response, err error) (retry bool, outErr error) {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		wait := time.Until(rateErr.Rate.Reset.Time) + time.Second
		slog.Warn("Kvote for hosting-API-et brukt opp – pauser", "venter", wait.Truncate(time.Second))
		c.sleep(wait)
		return true, ctx.Err()
	}
	if err != nil {
		return false, err
	}
	if resp != nil && resp.Rate.Remaining > 0 && resp.Rate.Remaining < RateFloor {
		wait := time.Until(resp.Rate.Reset.Time) + time.Second
		slog.Warn("Nærmer oss kvoten – pauser til reset", "gjenstår", resp.Rate.Remaining, "venter", wait.Truncate(time.Second))
		c.sleep(wait)
	}
	return false, ctx.Err()
}

func timestamp(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
