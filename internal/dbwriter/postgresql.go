package dbwriter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonmartinstorm/esmsnusern/internal/models"
)

type PostgresWriter struct {
	DB *sql.DB
}

func NewPostgresWriter(postgresdsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", postgresdsn)
	if err != nil {
		slog.Error("Kunne ikke åpne PostgreSQL-database", "error", err)
		return nil, fmt.Errorf("kunne ikke åpne PostgreSQL-database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	return &PostgresWriter{DB: db}, nil
}

func (p *PostgresWriter) Close() error {
	return p.DB.Close()
}

// ReplaceTools skriver den sammenslåtte inventartabellen på nytt i én
// transaksjon, så en avbrutt kjøring aldri etterlater en halv tabell.
func (p *PostgresWriter) ReplaceTools(ctx context.Context, tools []models.ToolRecord, snapshot time.Time) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tools`); err != nil {
			return fmt.Errorf("kunne ikke tømme tools: %w", err)
		}
		for _, tool := range tools {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO tools (id, name, url, description, category, sources, hentet_dato)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				tool.ID, tool.Name, tool.URL, tool.Description, tool.Category,
				strings.Join(tool.Sources, ","), snapshot)
			if err != nil {
				return fmt.Errorf("InsertTool feilet for %s: %w", tool.ID, err)
			}
		}
		return nil
	})
}

// ReplaceStats skriver stats-tabellen på nytt i én transaksjon.
func (p *PostgresWriter) ReplaceStats(ctx context.Context, stats []models.ToolStats, snapshot time.Time) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tool_stats`); err != nil {
			return fmt.Errorf("kunne ikke tømme tool_stats: %w", err)
		}
		for _, s := range stats {
			downloads := sql.NullInt64{}
			if s.Downloads != nil {
				downloads = sql.NullInt64{Int64: *s.Downloads, Valid: true}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO tool_stats (
					id, name, url, description, category, sources,
					created_at, pushed_at, stars, forks, contributors, dependents,
					downloads_last_month, dds, dds_has_data, docs_url,
					language, license, archived, latest_release,
					data_gap, gap_reason, hentet_dato)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				         $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`,
				s.ID, s.Name, s.URL, s.Description, s.Category, strings.Join(s.Sources, ","),
				nullTime(s.CreatedAt), nullTime(s.PushedAt), s.Stars, s.Forks, s.Contributors, s.Dependents,
				downloads, s.DDS.Score, s.DDS.HasData, nullString(s.DocsURL),
				s.Language, s.License, s.Archived, s.LatestRelease,
				s.DataGap, s.GapReason, snapshot)
			if err != nil {
				return fmt.Errorf("InsertStats feilet for %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// RecordDropped lagrer revisjonssporet for kjøringen.
func (p *PostgresWriter) RecordDropped(ctx context.Context, dropped []models.Dropped, snapshot time.Time) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dropped_tools`); err != nil {
			return fmt.Errorf("kunne ikke tømme dropped_tools: %w", err)
		}
		for _, d := range dropped {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO dropped_tools (key, reason, hentet_dato) VALUES ($1, $2, $3)`,
				d.Key, d.Reason, snapshot)
			if err != nil {
				return fmt.Errorf("InsertDropped feilet for %s: %w", d.Key, err)
			}
		}
		return nil
	})
}

// StatsCount brukes av refresh-kontrolleren for å se om output finnes.
func (p *PostgresWriter) StatsCount(ctx context.Context) (int, error) {
	var count int
	err := p.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_stats`).Scan(&count)
	return count, err
}

// StatsURLs er repo-URL-kolonnen innsamleren (og fork/sync-verktøyet)
// leser.
func (p *PostgresWriter) StatsURLs(ctx context.Context) ([]string, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT url FROM tool_stats ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

// AppendInteractions fletter nye interaksjoner inn i ledgeren med
// set-union-semantikk og returnerer antallet som faktisk var nye.
func (p *PostgresWriter) AppendInteractions(ctx context.Context, interactions []models.Interaction) (int64, error) {
	var added int64
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		for _, ia := range interactions {
			when := sql.NullTime{}
			if ia.When != nil {
				when = sql.NullTime{Time: *ia.When, Valid: true}
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO user_interactions (login, repo, interaction, interacted_at)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (login, repo, interaction, COALESCE(interacted_at, 'epoch'::timestamptz))
				 DO NOTHING`,
				ia.Login, ia.Repo, ia.Kind, when)
			if err != nil {
				return fmt.Errorf("InsertInteraction feilet for %s/%s: %w", ia.Login, ia.Repo, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			added += n
		}
		return nil
	})
	return added, err
}

// UnseenLogins er logins i ledgeren som ennå ikke har en profilrad.
func (p *PostgresWriter) UnseenLogins(ctx context.Context) ([]string, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT DISTINCT ui.login FROM user_interactions ui
		 LEFT JOIN user_details ud ON ud.login = ui.login
		 WHERE ud.login IS NULL
		 ORDER BY ui.login`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logins []string
	for rows.Next() {
		var login string
		if err := rows.Scan(&login); err != nil {
			return nil, err
		}
		logins = append(logins, login)
	}
	return logins, rows.Err()
}

func (p *PostgresWriter) UpsertUserDetails(ctx context.Context, user models.UserDetails) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO user_details (
			login, company, blog, location, email_domain, bio, twitter,
			followers, following, readme, orgs, category, rule_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (login) DO UPDATE SET
			company = EXCLUDED.company, blog = EXCLUDED.blog,
			location = EXCLUDED.location, email_domain = EXCLUDED.email_domain,
			bio = EXCLUDED.bio, twitter = EXCLUDED.twitter,
			followers = EXCLUDED.followers, following = EXCLUDED.following,
			readme = EXCLUDED.readme, orgs = EXCLUDED.orgs`,
		user.Login, user.Company, user.Blog, user.Location, user.EmailDomain,
		user.Bio, user.Twitter, user.Followers, user.Following, user.Readme,
		strings.Join(user.Orgs, ","), user.Category, user.RuleID)
	return err
}

func (p *PostgresWriter) UpsertOrg(ctx context.Context, org models.OrgDetails) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO user_orgs (login, description) VALUES ($1, $2)
		 ON CONFLICT (login) DO NOTHING`,
		org.Login, org.Description)
	return err
}

// ListUserDetails leser hele brukertabellen for re-klassifisering.
func (p *PostgresWriter) ListUserDetails(ctx context.Context) ([]models.UserDetails, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT login, company, blog, location, email_domain, bio, twitter,
		        followers, following, readme, orgs, category, rule_id
		 FROM user_details ORDER BY login`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.UserDetails
	for rows.Next() {
		var user models.UserDetails
		var orgs string
		err := rows.Scan(&user.Login, &user.Company, &user.Blog, &user.Location,
			&user.EmailDomain, &user.Bio, &user.Twitter, &user.Followers,
			&user.Following, &user.Readme, &orgs, &user.Category, &user.RuleID)
		if err != nil {
			return nil, err
		}
		if orgs != "" {
			user.Orgs = strings.Split(orgs, ",")
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateClassification skriver bare kategori/regel – aldri profilfelter.
func (p *PostgresWriter) UpdateClassification(ctx context.Context, login, category, ruleID string) error {
	_, err := p.DB.ExecContext(ctx,
		`UPDATE user_details SET category = $2, rule_id = $3 WHERE login = $1`,
		login, category, ruleID)
	return err
}

func (p *PostgresWriter) GetCursor(ctx context.Context) (string, error) {
	var repo string
	err := p.DB.QueryRowContext(ctx,
		`SELECT last_repo FROM collector_cursor WHERE id = 1`).Scan(&repo)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return repo, err
}

func (p *PostgresWriter) SetCursor(ctx context.Context, repo string) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO collector_cursor (id, last_repo) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET last_repo = EXCLUDED.last_repo`, repo)
	return err
}

func (p *PostgresWriter) ClearCursor(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `DELETE FROM collector_cursor WHERE id = 1`)
	return err
}

func (p *PostgresWriter) GetRefreshState(ctx context.Context) (*models.RefreshState, error) {
	var state models.RefreshState
	err := p.DB.QueryRowContext(ctx,
		`SELECT fingerprint, completed_at, version FROM refresh_state WHERE id = 1`).
		Scan(&state.Fingerprint, &state.CompletedAt, &state.Version)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (p *PostgresWriter) SetRefreshState(ctx context.Context, state models.RefreshState) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO refresh_state (id, fingerprint, completed_at, version) VALUES (1, $1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET
			fingerprint = EXCLUDED.fingerprint, completed_at = EXCLUDED.completed_at,
			version = EXCLUDED.version`,
		state.Fingerprint, state.CompletedAt, state.Version)
	return err
}

func (p *PostgresWriter) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%v (rollback feilet: %w)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		slog.Error("Commit-feil", "error", err)
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// NullTime/NullString gjør "ingen data" om til NULL i stedet for
// nullverdier som kan misforstås.

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
