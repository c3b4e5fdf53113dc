package scrape

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/gradstream/applicant-pipeline/internal/record"
	"github.com/gradstream/applicant-pipeline/internal/snapshot"
)

// SnapshotSource serves rows from a static snapshot blob. It is the
// fallback when no live collaborator is configured. Unlike the live
// source it must filter locally: only rows whose sort key strictly
// exceeds the cursor are returned.
type SnapshotSource struct {
	store  snapshot.Store
	key    string
	logger *zap.Logger
}

// NewSnapshotSource builds a source reading the snapshot object at key.
func NewSnapshotSource(store snapshot.Store, key string, logger *zap.Logger) (*SnapshotSource, error) {
	if store == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if key == "" {
		return nil, fmt.Errorf("snapshot key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotSource{store: store, key: key, logger: logger}, nil
}

// FetchSince loads the snapshot, keeps the dict-shaped rows, and filters
// to those strictly newer than the cursor.
func (s *SnapshotSource) FetchSince(ctx context.Context, source, since string) ([]record.Raw, error) {
	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	rows := make([]record.Raw, 0, len(items))
	skipped := 0
	for _, item := range items {
		var row record.Raw
		if err := json.Unmarshal(item, &row); err != nil {
			skipped++
			continue
		}
		if since != "" && record.SortKey(row) <= since {
			continue
		}
		rows = append(rows, row)
	}
	if skipped > 0 {
		s.logger.Warn("snapshot contained non-object rows",
			zap.String("source", source),
			zap.Int("skipped", skipped),
		)
	}
	return rows, nil
}
