package db

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect selects the DDL flavour.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// sent_at is TIMESTAMPTZ on postgres and unix seconds on sqlite.
var createSentArticles = map[Dialect]string{
	Postgres: `
CREATE TABLE IF NOT EXISTS sent_articles (
    id          BIGSERIAL PRIMARY KEY,
    fingerprint TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    url         TEXT NOT NULL,
    source      TEXT NOT NULL,
    country     TEXT NOT NULL DEFAULT '',
    language    TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    priority    TEXT NOT NULL DEFAULT '',
    score       INTEGER NOT NULL DEFAULT 0,
    sent_at     TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	SQLite: `
CREATE TABLE IF NOT EXISTS sent_articles (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    fingerprint TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    url         TEXT NOT NULL,
    source      TEXT NOT NULL,
    country     TEXT NOT NULL DEFAULT '',
    language    TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    priority    TEXT NOT NULL DEFAULT '',
    score       INTEGER NOT NULL DEFAULT 0,
    sent_at     INTEGER NOT NULL,
    created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`,
}

var sentArticlesIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_sent_articles_sent_at ON sent_articles(sent_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sent_articles_source ON sent_articles(source)`,
}

// MigrateUp creates the dedup table and its indexes. It is safe to run on
// every start.
func MigrateUp(ctx context.Context, db *sql.DB, dialect Dialect) error {
	ddl, ok := createSentArticles[dialect]
	if !ok {
		return fmt.Errorf("MigrateUp: unknown dialect %q", dialect)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("MigrateUp: create sent_articles: %w", err)
	}
	for _, idx := range sentArticlesIndexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("MigrateUp: %w", err)
		}
	}
	return nil
}
