// Package worker executes queued ingestion tasks: one transaction per
// message, committed and acked together or rolled back and rejected
// together.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/gradstream/applicant-pipeline/internal/metrics"
	"github.com/gradstream/applicant-pipeline/internal/scrape"
	"github.com/gradstream/applicant-pipeline/internal/task"
)

// ErrUnknownKind classifies messages whose kind is outside the dispatch
// table. It is raised only after a transaction was opened, so the
// caller observes rollback-then-reject.
var ErrUnknownKind = errors.New("unknown task kind")

// Disposition is what the consume loop should do with the delivery.
type Disposition int

const (
	// Ack confirms the message after a committed transaction.
	Ack Disposition = iota
	// Reject drops the message without requeue. Failed messages are
	// never redelivered; re-publishing is an external responsibility.
	Reject
)

// TxBeginner opens database transactions. Satisfied by pgxpool.Pool and
// by pgxmock in tests.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config controls Worker behavior.
type Config struct {
	// DefaultSource names the watermark source used when the payload
	// does not carry one.
	DefaultSource string
	// BatchSize bounds rows per INSERT chunk.
	BatchSize int
}

// Worker processes task messages one at a time. Scale-out is achieved
// by running more worker processes, not intra-process concurrency.
type Worker struct {
	db     TxBeginner
	source scrape.Source
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(db TxBeginner, source scrape.Source, cfg Config, logger *zap.Logger) *Worker {
	if cfg.DefaultSource == "" {
		cfg.DefaultSource = DefaultSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		db:     db,
		source: source,
		cfg:    cfg,
		logger: logger,
	}
}

// Process runs one message through the per-message state machine:
// RECEIVED -> PARSED -> DISPATCHED -> {COMMITTED+ACK | ROLLED_BACK+REJECT}.
// A malformed envelope is rejected before any database connection is
// touched.
func (w *Worker) Process(ctx context.Context, body []byte) Disposition {
	start := time.Now()

	msg, err := task.Decode(body)
	if err != nil {
		w.logger.Error("invalid task message, dropping", zap.Error(err))
		metrics.ObserveTaskRejected("malformed")
		return Reject
	}
	kind := string(msg.Kind)
	metrics.ObserveTaskConsumed(kind)

	tx, err := w.db.Begin(ctx)
	if err != nil {
		w.logger.Error("begin transaction failed", zap.String("kind", kind), zap.Error(err))
		metrics.ObserveTaskRejected("begin")
		return Reject
	}

	if err := w.dispatch(ctx, tx, msg); err != nil {
		w.rollback(ctx, tx, kind)
		reason := "handler"
		if errors.Is(err, ErrUnknownKind) {
			reason = "unknown_kind"
		}
		w.logger.Error("task failed, rolling back",
			zap.String("kind", kind),
			zap.String("reason", reason),
			zap.Error(err),
		)
		metrics.ObserveTaskRejected(reason)
		return Reject
	}

	if err := tx.Commit(ctx); err != nil {
		w.logger.Error("commit failed", zap.String("kind", kind), zap.Error(err))
		metrics.ObserveTaskRejected("commit")
		return Reject
	}

	metrics.ObserveTaskAcked(kind)
	metrics.ObserveTaskDuration(kind, time.Since(start))
	w.logger.Info("task processed",
		zap.String("kind", kind),
		zap.Duration("elapsed", time.Since(start)),
	)
	return Ack
}

// dispatch routes the message to its handler. The kind set is closed;
// the default arm is the classified unknown-kind error path.
func (w *Worker) dispatch(ctx context.Context, tx pgx.Tx, msg task.Message) error {
	switch msg.Kind {
	case task.KindScrapeNewData:
		return w.handleScrapeNewData(ctx, tx, msg.Payload)
	case task.KindRecomputeAnalytics:
		return w.handleRecomputeAnalytics(ctx, tx, msg.Payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}
}

func (w *Worker) rollback(ctx context.Context, tx pgx.Tx, kind string) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		w.logger.Warn("rollback failed", zap.String("kind", kind), zap.Error(err))
	}
}
