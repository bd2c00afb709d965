package repository

import (
	"context"
	"time"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
)

// SentRepository is the dedup store: one record per article ever emitted,
// keyed by fingerprint.
type SentRepository interface {
	// Exists reports whether a record with this fingerprint was stored.
	Exists(ctx context.Context, fingerprint string) (bool, error)

	// Insert stores rec. Inserting a fingerprint that already exists is a
	// no-op, not an error.
	Insert(ctx context.Context, rec entity.SentRecord) error

	// Stats aggregates records sent at or after since.
	Stats(ctx context.Context, since time.Time) (*entity.SentStats, error)

	// Close releases the underlying handle.
	Close() error
}
