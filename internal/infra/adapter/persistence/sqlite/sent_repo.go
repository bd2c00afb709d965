// Package sqlite is the default dedup store: a local file written by a
// single worker process.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/repository"
)

const table = "sent_articles"

var insertColumns = []string{
	"fingerprint", "title", "url", "source", "country",
	"language", "category", "priority", "score", "sent_at",
}

type SentRepo struct{ db *sql.DB }

// NewSentRepo expects a database already migrated with db.MigrateUp.
func NewSentRepo(db *sql.DB) repository.SentRepository {
	return &SentRepo{db: db}
}

func (repo *SentRepo) Exists(ctx context.Context, fingerprint string) (bool, error) {
	query, args, err := sq.Select("1").From(table).
		Where(sq.Eq{"fingerprint": fingerprint}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("Exists: ToSql: %w", err)
	}

	var one int
	err = repo.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Exists: QueryRowContext: %w", err)
	}
	return true, nil
}

func (repo *SentRepo) Insert(ctx context.Context, rec entity.SentRecord) error {
	if rec.Fingerprint == "" {
		return fmt.Errorf("Insert: %w: empty fingerprint", entity.ErrInvalidInput)
	}
	query, args, err := sq.Insert(table).
		Options("OR IGNORE").
		Columns(insertColumns...).
		Values(
			rec.Fingerprint, rec.Title, rec.URL, rec.Source, rec.Country,
			rec.Language, rec.Category, string(rec.Priority), rec.Score, rec.SentAt.Unix(),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("Insert: ToSql: %w", err)
	}
	if _, err := repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("Insert: ExecContext: %w", err)
	}
	return nil
}

func (repo *SentRepo) Stats(ctx context.Context, since time.Time) (*entity.SentStats, error) {
	query, args, err := sq.Select("source", "country", "category", "score").
		From(table).
		Where(sq.GtOrEq{"sent_at": since.Unix()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("Stats: ToSql: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Stats: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := entity.NewSentStats()
	for rows.Next() {
		var rec entity.SentRecord
		if err := rows.Scan(&rec.Source, &rec.Country, &rec.Category, &rec.Score); err != nil {
			return nil, fmt.Errorf("Stats: Scan: %w", err)
		}
		stats.Add(rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Stats: rows.Err: %w", err)
	}
	return stats, nil
}

func (repo *SentRepo) Close() error {
	return repo.db.Close()
}
