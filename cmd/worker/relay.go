package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/care-api/internal/handler"
	"github.com/jwalitptl/care-api/internal/repository/postgres"
	internalworker "github.com/jwalitptl/care-api/internal/worker"
	"github.com/jwalitptl/care-api/pkg/messaging/redis"
	"github.com/jwalitptl/care-api/pkg/metrics"
	"github.com/jwalitptl/care-api/pkg/worker"
)

const shutdownTimeout = 10 * time.Second

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Relay committed care events to Redis for the reminder poller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelay()
		},
	}
}

func runRelay() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.ToBrokerConfig(), log)
	if err != nil {
		return err
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg, "care")

	outboxRepo := postgres.NewOutboxRepository(postgres.NewBaseRepository(db))
	processor, err := worker.NewOutboxProcessor(outboxRepo, broker, cfg.Outbox.ToWorkerConfig(), log, m)
	if err != nil {
		return err
	}
	cleanup := internalworker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.RetentionDays, cfg.Outbox.CleanupEvery, log, m)

	gin.SetMode(gin.ReleaseMode)
	ops := handler.NewHandler(reg, map[string]handler.Check{
		"database": db.PingContext,
		"broker":   broker.Ping,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Ops.Port),
		Handler:           handler.NewOpsRouter(ops, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("ops server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case err = <-serveErr:
		log.Error(err, "ops server failed")
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error(shutdownErr, "ops server shutdown failed")
	}
	wg.Wait()
	return err
}
