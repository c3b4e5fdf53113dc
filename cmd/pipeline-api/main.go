// Package main runs the HTTP trigger for the applicant pipeline.
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

	"go.uber.org/zap"

	"github.com/gradstream/applicant-pipeline/internal/api"
	"github.com/gradstream/applicant-pipeline/internal/busy"
	"github.com/gradstream/applicant-pipeline/internal/config"
	"github.com/gradstream/applicant-pipeline/internal/logging"
	"github.com/gradstream/applicant-pipeline/internal/metrics"
	queueamqp "github.com/gradstream/applicant-pipeline/internal/queue/amqp"
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

	publisher := queueamqp.NewPublisher(queueamqp.Config{
		URL:                cfg.Broker.URL,
		Exchange:           cfg.Broker.Exchange,
		Queue:              cfg.Broker.Queue,
		RoutingKey:         cfg.Broker.RoutingKey,
		DeadLetterExchange: cfg.Broker.DeadLetterExchange,
	}, logger.Named("publisher"))
	gate := busy.NewGate(cfg.Busy.LockPath)

	apiServer := api.NewServer(publisher, gate, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := publisher.Close(); err != nil {
		logger.Error("publisher close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
