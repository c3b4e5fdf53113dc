package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const createWatermarksSQL = `
CREATE TABLE IF NOT EXISTS ingestion_watermarks (
	source TEXT PRIMARY KEY,
	last_seen TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// WatermarkStore tracks the per-source ingestion cursor. Updates are
// last-write-wins: a regressed watermark after a crash only causes
// overlapping re-fetch, which the unique url constraint absorbs.
type WatermarkStore struct {
	db DBTX
}

// NewWatermarkStore constructs a store over db.
func NewWatermarkStore(db DBTX) *WatermarkStore {
	return &WatermarkStore{db: db}
}

// EnsureSchema creates the ingestion_watermarks table if missing.
func (s *WatermarkStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createWatermarksSQL); err != nil {
		return fmt.Errorf("create ingestion_watermarks table: %w", err)
	}
	return nil
}

// Get returns the stored cursor for source. The second return is false
// when no watermark exists yet.
func (s *WatermarkStore) Get(ctx context.Context, source string) (string, bool, error) {
	var lastSeen string
	err := s.db.QueryRow(ctx,
		`SELECT last_seen FROM ingestion_watermarks WHERE source = $1 LIMIT 1`,
		source,
	).Scan(&lastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select watermark: %w", err)
	}
	return lastSeen, true, nil
}

// Set upserts the cursor for source, always overwriting with the latest
// value and timestamp.
func (s *WatermarkStore) Set(ctx context.Context, source, lastSeen string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO ingestion_watermarks (source, last_seen, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (source)
DO UPDATE SET last_seen = EXCLUDED.last_seen, updated_at = now()`,
		source, lastSeen,
	)
	if err != nil {
		return fmt.Errorf("upsert watermark: %w", err)
	}
	return nil
}
