package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_snapshot_store.go -package=mocks stationlog/internal/storage SnapshotStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a snapshot key has never been saved.
	ErrNotFound = errors.New("snapshot not found")
)

// SnapshotStore defines the persistence adapter contract: a durable
// key-to-blob mapping. Callers serialize their whole state and write it
// under a single fixed key, replace-on-write.
type SnapshotStore interface {
	// Save durably stores data under key, replacing any previous value.
	Save(ctx context.Context, key string, data []byte) error
	// Load returns the data last saved under key.
	// Returns nil and ErrNotFound if the key has never been saved.
	Load(ctx context.Context, key string) ([]byte, error)
}

// SnapshotRepo provides snapshot persistence backed by SQLite.
// It implements the SnapshotStore interface.
type SnapshotRepo struct {
	db *sql.DB
}

// NewSnapshotRepo creates a new SnapshotRepo.
func NewSnapshotRepo(db *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// Save durably stores data under key, replacing any previous value.
// The write is committed before Save returns, so a successful return means
// the snapshot is on disk.
func (r *SnapshotRepo) Save(ctx context.Context, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load returns the data last saved under key.
// Returns nil and ErrNotFound if the key has never been saved.
func (r *SnapshotRepo) Load(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := r.db.QueryRowContext(ctx,
		"SELECT data FROM snapshots WHERE key = ?", key,
	).Scan(&data)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return []byte(data), nil
}
