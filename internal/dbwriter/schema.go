package dbwriter

import (
	"context"
	"fmt"
)

// Kolonnenavnene er kontrakten mot dashbordet og fork/sync-verktøyene
// og skal være stabile fra kjøring til kjøring.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tools (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		url         TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category    TEXT NOT NULL DEFAULT '',
		sources     TEXT NOT NULL DEFAULT '',
		hentet_dato TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tool_stats (
		id                   TEXT PRIMARY KEY,
		name                 TEXT NOT NULL,
		url                  TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		category             TEXT NOT NULL DEFAULT '',
		sources              TEXT NOT NULL DEFAULT '',
		created_at           TIMESTAMPTZ,
		pushed_at            TIMESTAMPTZ,
		stars                BIGINT NOT NULL DEFAULT 0,
		forks                BIGINT NOT NULL DEFAULT 0,
		contributors         BIGINT NOT NULL DEFAULT 0,
		dependents           BIGINT NOT NULL DEFAULT 0,
		downloads_last_month BIGINT,
		dds                  DOUBLE PRECISION NOT NULL DEFAULT 0,
		dds_has_data         BOOLEAN NOT NULL DEFAULT FALSE,
		docs_url             TEXT,
		language             TEXT NOT NULL DEFAULT '',
		license              TEXT NOT NULL DEFAULT '',
		archived             BOOLEAN NOT NULL DEFAULT FALSE,
		latest_release       TEXT NOT NULL DEFAULT '',
		data_gap             BOOLEAN NOT NULL DEFAULT FALSE,
		gap_reason           TEXT NOT NULL DEFAULT '',
		hentet_dato          TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dropped_tools (
		key         TEXT NOT NULL,
		reason      TEXT NOT NULL,
		hentet_dato TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS user_interactions (
		login         TEXT NOT NULL,
		repo          TEXT NOT NULL,
		interaction   TEXT NOT NULL,
		interacted_at TIMESTAMPTZ
	)`,
	// NULL-tidspunkter (watchers) må også dedupliseres, derfor COALESCE.
	`CREATE UNIQUE INDEX IF NOT EXISTS user_interactions_identity
		ON user_interactions (login, repo, interaction, COALESCE(interacted_at, 'epoch'::timestamptz))`,
	`CREATE TABLE IF NOT EXISTS user_details (
		login        TEXT PRIMARY KEY,
		company      TEXT NOT NULL DEFAULT '',
		blog         TEXT NOT NULL DEFAULT '',
		location     TEXT NOT NULL DEFAULT '',
		email_domain TEXT NOT NULL DEFAULT '',
		bio          TEXT NOT NULL DEFAULT '',
		twitter      TEXT NOT NULL DEFAULT '',
		followers    BIGINT NOT NULL DEFAULT 0,
		following    BIGINT NOT NULL DEFAULT 0,
		readme       TEXT NOT NULL DEFAULT '',
		orgs         TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL DEFAULT '',
		rule_id      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS user_orgs (
		login       TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS collector_cursor (
		id        INT PRIMARY KEY,
		last_repo TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_state (
		id           INT PRIMARY KEY,
		fingerprint  TEXT NOT NULL,
		completed_at TIMESTAMPTZ NOT NULL,
		version      BIGINT NOT NULL DEFAULT 0
	)`,
}

// EnsureSchema oppretter tabellene hvis de mangler.
func (p *PostgresWriter) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := p.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("kunne ikke opprette skjema: %w", err)
		}
	}
	return nil
}
