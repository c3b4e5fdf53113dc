// Package scrape provides the candidate-row sources the ingestion
// handlers fetch from: a live collaborator export and a static snapshot
// fallback.
package scrape

import (
	"context"

	"github.com/gradstream/applicant-pipeline/internal/record"
)

// Source fetches candidate applicant rows newer than the cursor. Each
// implementation owns its own filtering: the live collaborator is
// trusted to pre-filter server-side, while the snapshot fallback filters
// locally by sort key.
type Source interface {
	FetchSince(ctx context.Context, source, since string) ([]record.Raw, error)
}
