// Package snapshot reads the static applicant-data snapshot used as the
// fallback scrape source when no live collaborator is configured.
package snapshot

import "context"

// Store fetches a snapshot blob by key. Implementations exist for the
// local filesystem and Google Cloud Storage.
type Store interface {
	// Get returns the raw bytes of the snapshot object.
	Get(ctx context.Context, key string) ([]byte, error)
}
