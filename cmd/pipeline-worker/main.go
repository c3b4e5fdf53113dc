// Package main runs the blocking queue consumer for the applicant
// pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/gradstream/applicant-pipeline/internal/config"
	"github.com/gradstream/applicant-pipeline/internal/logging"
	"github.com/gradstream/applicant-pipeline/internal/metrics"
	queueamqp "github.com/gradstream/applicant-pipeline/internal/queue/amqp"
	"github.com/gradstream/applicant-pipeline/internal/scrape"
	"github.com/gradstream/applicant-pipeline/internal/snapshot"
	"github.com/gradstream/applicant-pipeline/internal/store"
	"github.com/gradstream/applicant-pipeline/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.NewPool(ctx, store.PoolConfig{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: cfg.DB.ConnMaxLifetime(),
	})
	if err != nil {
		logger.Fatal("open postgres pool failed", zap.Error(err))
	}
	defer pool.Close()

	source, err := buildSource(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("build scrape source failed", zap.Error(err))
	}

	w := worker.New(pool, source, worker.Config{
		DefaultSource: cfg.Ingest.DefaultSource,
		BatchSize:     cfg.Ingest.BatchSize,
	}, logger.Named("worker"))

	consumer := queueamqp.NewConsumer(queueamqp.Config{
		URL:                cfg.Broker.URL,
		Exchange:           cfg.Broker.Exchange,
		Queue:              cfg.Broker.Queue,
		RoutingKey:         cfg.Broker.RoutingKey,
		Prefetch:           cfg.Broker.Prefetch,
		ConsumerTag:        cfg.Broker.ConsumerTag,
		DeadLetterExchange: cfg.Broker.DeadLetterExchange,
	}, w, logger.Named("consumer"))

	if cfg.Server.DebugPort > 0 {
		go serveDebug(cfg.Server.DebugPort, logger)
	}

	if err := consumer.Run(ctx); err != nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// serveDebug exposes metrics and liveness from the worker process.
func serveDebug(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("healthz write failed", zap.Error(err))
		}
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("debug server started", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("debug server error", zap.Error(err))
	}
}

// buildSource picks where scrape tasks read applicant rows from: the
// collaborator HTTP service when configured, otherwise a snapshot blob.
func buildSource(ctx context.Context, cfg config.Config, logger *zap.Logger) (scrape.Source, error) {
	if cfg.Ingest.CollaboratorURL != "" {
		return scrape.NewHTTPSource(cfg.Ingest.CollaboratorURL, cfg.FetchTimeout())
	}

	var blobs snapshot.Store
	switch cfg.Ingest.Snapshot.Provider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		blobs, err = snapshot.NewGCSStore(client, cfg.Ingest.Snapshot.Bucket)
		if err != nil {
			return nil, err
		}
	default:
		var err error
		blobs, err = snapshot.NewLocalStore(cfg.Ingest.Snapshot.BaseDir)
		if err != nil {
			return nil, err
		}
	}
	return scrape.NewSnapshotSource(blobs, cfg.Ingest.Snapshot.Key, logger.Named("snapshot"))
}
