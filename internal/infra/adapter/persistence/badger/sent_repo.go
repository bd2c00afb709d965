// Package badger is an embedded key/value dedup store for deployments that
// do not want a SQL database. Each record lives under "sent:<fingerprint>"
// as JSON.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/heitormarin83/consultancy-news-agent/internal/domain/entity"
	"github.com/heitormarin83/consultancy-news-agent/internal/repository"
)

const sentPrefix = "sent:"

type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badgerdb.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

type SentRepo struct {
	db *badgerdb.DB
}

// Open opens the store in dir, creating the directory if needed. An empty
// dir opens an in-memory store.
func Open(dir string, logger *slog.Logger) (*SentRepo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badgerdb.Options
	if dir == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		opts = badgerdb.DefaultOptions(dir)
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger.With(slog.String("component", "badger"))}
	opts.Compression = options.None

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	return &SentRepo{db: db}, nil
}

var _ repository.SentRepository = (*SentRepo)(nil)

func key(fingerprint string) []byte {
	return []byte(sentPrefix + fingerprint)
}

func (repo *SentRepo) Exists(ctx context.Context, fingerprint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := repo.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key(fingerprint))
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return true, nil
}

func (repo *SentRepo) Insert(ctx context.Context, rec entity.SentRecord) error {
	if rec.Fingerprint == "" {
		return fmt.Errorf("Insert: %w: empty fingerprint", entity.ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("Insert: marshal: %w", err)
	}

	err = repo.db.Update(func(txn *badgerdb.Txn) error {
		k := key(rec.Fingerprint)
		_, err := txn.Get(k)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return err
		}
		return txn.Set(k, val)
	})
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

func (repo *SentRepo) Stats(ctx context.Context, since time.Time) (*entity.SentStats, error) {
	stats := entity.NewSentStats()
	err := repo.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(sentPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec entity.SentRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			if rec.SentAt.Before(since) {
				continue
			}
			stats.Add(rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Stats: %w", err)
	}
	return stats, nil
}

func (repo *SentRepo) Close() error {
	return repo.db.Close()
}
