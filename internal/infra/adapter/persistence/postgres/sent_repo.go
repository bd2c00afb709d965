// Package postgres is the shared dedup store used when several workers
// deliver to the same audience.
package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/repository"
	"github.com/heitormarin83/consultancy-news-agent/internal/resilience/circuitbreaker"
)

const table = "sent_articles"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type SentRepo struct {
	db *circuitbreaker.DBCircuitBreaker
}

// NewSentRepo wraps db in a circuit breaker. The database must already be
// migrated with db.MigrateUp.
func NewSentRepo(db *circuitbreaker.DBCircuitBreaker) repository.SentRepository {
	return &SentRepo{db: db}
}

func (repo *SentRepo) Exists(ctx context.Context, fingerprint string) (bool, error) {
	query, args, err := psql.Select("1").From(table).
		Where(sq.Eq{"fingerprint": fingerprint}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("Exists: ToSql: %w", err)
	}

	rows, err := repo.db.QueryContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("Exists: QueryContext: %w", err)
	}
	defer func() { _ = rows.Close() }()

	found := rows.Next()
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("Exists: rows.Err: %w", err)
	}
	return found, nil
}

func (repo *SentRepo) Insert(ctx context.Context, rec entity.SentRecord) error {
	if rec.Fingerprint == "" {
		return fmt.Errorf("Insert: %w: empty fingerprint", entity.ErrInvalidInput)
	}
	query, args, err := psql.Insert(table).
		Columns(
			"fingerprint", "title", "url", "source", "country",
			"language", "category", "priority", "score", "sent_at",
		).
		Values(
			rec.Fingerprint, rec.Title, rec.URL, rec.Source, rec.Country,
			rec.Language, rec.Category, string(rec.Priority), rec.Score, rec.SentAt,
		).
		Suffix("ON CONFLICT (fingerprint) DO NOTHING").
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
	query, args, err := psql.Select("source", "country", "category", "score").
		From(table).
		Where(sq.GtOrEq{"sent_at": since}).
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
