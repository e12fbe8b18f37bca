package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/marlin/internal/domain/repository"
	"github.com/bnema/marlin/internal/logging"
)

type stateRepo struct {
	db *sql.DB
}

// NewStateRepository creates a key-value state repository backed by the
// shell_state table.
func NewStateRepository(db *sql.DB) repository.StateRepository {
	return &stateRepo{db: db}
}

// Get returns the blob stored under key, or (nil, nil) if absent.
func (r *stateRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT blob FROM shell_state WHERE key = ?", key,
	).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get state %q: %w", key, err)
	}
	return blob, nil
}

// Set upserts the blob under key.
func (r *stateRepo) Set(ctx context.Context, key string, blob []byte) error {
	log := logging.FromContext(ctx)
	_, err := r.db.ExecContext(ctx, `
INSERT INTO shell_state (key, blob, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at`,
		key, blob, time.Now())
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	log.Trace().Str("key", key).Int("bytes", len(blob)).Msg("state checkpoint written")
	return nil
}
