package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roomsync/internal/api"
	"roomsync/internal/auth"
	"roomsync/internal/manager"
	"roomsync/internal/messaging"
	"roomsync/internal/metrics"
	"roomsync/internal/reconcile"
	"roomsync/internal/storage"
	"roomsync/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operator API, consume run requests and run on a schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		if cfg.Auth.JWTSecret == "" {
			return errors.New("auth.jwt_secret (or JWT_SECRET) is required to serve")
		}
		auth.SetSecret(cfg.Auth.JWTSecret)
		metrics.Init()

		ctx := cmd.Context()
		store, err := storage.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout)
		if err != nil {
			log.Error("cannot reach MongoDB", zap.Error(err))
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(closeCtx)
		}()
		log.Info("MongoDB connected", zap.String("database", cfg.Mongo.Database))

		audit, err := openAudit(ctx, cfg, log)
		if err != nil {
			return err
		}
		if audit != nil {
			defer audit.Close()
		}

		var rabbit *messaging.RabbitClient
		var publisher manager.ReportPublisher
		if cfg.RabbitMQ.URL != "" {
			rabbit, err = messaging.NewRabbitClient(cfg.RabbitMQ.URL, log)
			if err != nil {
				return err
			}
			defer rabbit.Close()
			if err := rabbit.DeclareQueues(); err != nil {
				return err
			}
			publisher = rabbit
			log.Info("RabbitMQ connected")
		}

		runs := manager.NewRunManager(reconcile.NewJob(store, log), auditSink(audit), publisher, log)
		// Registered after the store, audit and rabbit closers, so it runs
		// before them.
		defer runs.Shutdown()

		if rabbit != nil {
			pool := worker.NewWorkerPool(rabbit, runs, cfg.Workers, log)
			if err := pool.Start(ctx); err != nil {
				return err
			}
			defer pool.Stop()
		}

		if cfg.Schedule.Interval > 0 {
			schedCtx, stopSchedule := context.WithCancel(ctx)
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				runs.Schedule(schedCtx, cfg.Schedule.Interval)
			}()
			defer func() {
				stopSchedule()
				wg.Wait()
			}()
		}

		server := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.NewAPI(runs, log).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting API server", zap.String("addr", cfg.HTTP.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			log.Info("shutdown initiated")
		case err := <-errCh:
			log.Error("server error", zap.Error(err))
			return err
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown error", zap.Error(err))
		}
		log.Info("graceful shutdown complete")
		return nil
	},
}
