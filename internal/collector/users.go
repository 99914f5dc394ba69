package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-github/v75/github"

	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

// FetchNewUserDetails henter profilfelter for logins som finnes i
// ledgeren men ikke i brukertabellen. Profiler hentes én gang per
// første observasjon; re-klassifisering krever aldri ny henting.
func (c *Collector) FetchNewUserDetails(ctx context.Context) (int, error) {
	logins, err := c.Store.UnseenLogins(ctx)
	if err != nil {
		return 0, fmt.Errorf("kunne ikke finne nye logins: %w", err)
	}
	slog.Info("Henter profildetaljer for nye brukere", "antall", len(logins))

	fetched := 0
	for _, login := range logins {
		user, orgs, err := c.userDetails(ctx, login)
		if err != nil {
			if ctx.Err() != nil {
				return fetched, ctx.Err()
			}
			slog.Warn("Klarte ikke hente brukerdetaljer", "login", login, "error", err)
			continue
		}
		for _, org := range orgs {
			if err := c.Store.UpsertOrg(ctx, org); err != nil {
				slog.Warn("Kunne ikke skrive organisasjon", "org", org.Login, "error", err)
			}
		}
		if err := c.Store.UpsertUserDetails(ctx, user); err != nil {
			return fetched, fmt.Errorf("kunne ikke skrive brukerdetaljer for %s: %w", login, err)
		}
		fetched++
	}
	return fetched, nil
}

func (c *Collector) userDetails(ctx context.Context, login string) (models.UserDetails, []models.OrgDetails, error) {
	var user *github.User
	for {
		u, resp, err := c.Client.Users.Get(ctx, login)
		retry, err := c.pace(ctx, resp, err)
		if err != nil {
			return models.UserDetails{}, nil, err
		}
		if retry {
			continue
		}
		user = u
		break
	}

	details := models.UserDetails{
		Login:     login,
		Company:   user.GetCompany(),
		Blog:      user.GetBlog(),
		Location:  user.GetLocation(),
		Bio:       user.GetBio(),
		Twitter:   user.GetTwitterUsername(),
		Followers: int64(user.GetFollowers()),
		Following: int64(user.GetFollowing()),
	}
	if email := user.GetEmail(); strings.Contains(email, "@") {
		details.EmailDomain = email[strings.LastIndex(email, "@")+1:]
	}

	details.Readme = c.profileReadme(ctx, login)

	orgs, err := c.userOrgs(ctx, login)
	if err != nil {
		return models.UserDetails{}, nil, err
	}
	for _, org := range orgs {
		details.Orgs = append(details.Orgs, org.Login)
	}

	return details, orgs, nil
}

// profileReadme henter README fra brukerens profil-repo (login/login).
// De fleste brukere har ikke et slikt repo; det er ikke en feil.
func (c *Collector) profileReadme(ctx context.Context, login string) string {
	content, _, err := c.Client.Repositories.GetReadme(ctx, login, login, nil)
	if err != nil || content == nil {
		return ""
	}
	readme, err := content.GetContent()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(readme)
}

func (c *Collector) userOrgs(ctx context.Context, login string) ([]models.OrgDetails, error) {
	var all []models.OrgDetails
	opts := &github.ListOptions{PerPage: PageSize}
	for {
		orgs, resp, err := c.Client.Organizations.List(ctx, login, opts)
		retry, err := c.pace(ctx, resp, err)
		if err != nil {
			return nil, err
		}
		if retry {
			continue
		}
		for _, org := range orgs {
			all = append(all, models.OrgDetails{
				Login:       org.GetLogin(),
				Description: strings.TrimSpace(org.GetDescription()),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}
