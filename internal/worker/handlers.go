package worker

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gradstream/applicant-pipeline/internal/metrics"
	"github.com/gradstream/applicant-pipeline/internal/record"
	"github.com/gradstream/applicant-pipeline/internal/store"
)

// DefaultSource is the watermark source used when a scrape payload does
// not name one.
const DefaultSource = "applicant_data_json"

// handleScrapeNewData performs one idempotent incremental ingestion run
// inside the message's transaction: resolve the cursor, fetch candidate
// rows, normalize, batch-upsert, and advance the watermark.
func (w *Worker) handleScrapeNewData(ctx context.Context, db store.DBTX, payload map[string]any) error {
	source := payloadString(payload, "source", w.cfg.DefaultSource)

	applicants := store.NewApplicantStore(db, w.cfg.BatchSize)
	watermarks := store.NewWatermarkStore(db)
	if err := applicants.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := watermarks.EnsureSchema(ctx); err != nil {
		return err
	}

	since := payloadString(payload, "since", "")
	if since == "" {
		cursor, ok, err := watermarks.Get(ctx, source)
		if err != nil {
			return err
		}
		if ok {
			since = cursor
		}
	}

	rows, err := w.source.FetchSince(ctx, source, since)
	if err != nil {
		return fmt.Errorf("fetch rows: %w", err)
	}
	if len(rows) == 0 {
		w.logger.Info("no new rows",
			zap.String("source", source),
			zap.String("since", since),
		)
		return nil
	}

	// Ascending sort keeps the watermark monotone for this run. It is
	// not a cross-message ordering guarantee.
	sort.SliceStable(rows, func(i, j int) bool {
		return record.SortKey(rows[i]) < record.SortKey(rows[j])
	})

	records := make([]record.Record, 0, len(rows))
	dropped := 0
	for _, row := range rows {
		rec, ok := record.Normalize(row)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	if dropped > 0 {
		w.logger.Warn("dropped rows without a resolvable url",
			zap.String("source", source),
			zap.Int("dropped", dropped),
		)
	}

	inserted, err := applicants.UpsertBatch(ctx, records)
	if err != nil {
		return err
	}
	metrics.ObserveRowsUpserted(inserted)

	maxSeen := record.SortKey(rows[len(rows)-1])
	if maxSeen != "" {
		if err := watermarks.Set(ctx, source, maxSeen); err != nil {
			return err
		}
		metrics.ObserveWatermarkAdvance(source)
	}

	w.logger.Info("scrape task processed",
		zap.String("source", source),
		zap.Int("rows", len(rows)),
		zap.Int64("inserted", inserted),
		zap.String("watermark", maxSeen),
	)
	return nil
}

// handleRecomputeAnalytics is a reserved extension point for refreshing
// precomputed aggregates. It runs a minimal query to prove connectivity.
func (w *Worker) handleRecomputeAnalytics(ctx context.Context, db store.DBTX, _ map[string]any) error {
	var one int
	if err := db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("analytics connectivity check: %w", err)
	}
	w.logger.Info("recompute analytics task processed")
	return nil
}

func payloadString(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key]; ok {
		if s, isStr := v.(string); isStr && s != "" {
			return s
		}
	}
	return fallback
}
