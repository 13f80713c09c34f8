package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roomsync/internal/manager"
	"roomsync/internal/model"
	"roomsync/internal/reconcile"
	"roomsync/internal/storage"
)

var fixRoomsDryRun bool

var fixRoomsCmd = &cobra.Command{
	Use:   "fix-rooms",
	Short: "Run link repair, verification and sync once",
	Long: `Run the reconciliation once against the configured MongoDB and exit.

Connects using MONGODB_URI (default mongodb://localhost:27017/boarding-house).
The connection is closed on every exit path. Use --dry-run to print the
decisions without writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx := cmd.Context()
		store, err := storage.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout)
		if err != nil {
			log.Error("cannot reach MongoDB, nothing was repaired", zap.Error(err))
			return err
		}
		log.Info("MongoDB connected", zap.String("database", cfg.Mongo.Database))
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := store.Close(closeCtx); err != nil {
				log.Warn("disconnect failed", zap.Error(err))
				return
			}
			log.Info("MongoDB disconnected")
		}()

		audit, err := openAudit(ctx, cfg, log)
		if err != nil {
			log.Warn("continuing without audit store", zap.Error(err))
		}
		if audit != nil {
			defer audit.Close()
		}

		runs := manager.NewRunManager(reconcile.NewJob(store, log), auditSink(audit), nil, log)
		report, err := runs.Trigger(ctx, reconcile.Options{DryRun: fixRoomsDryRun})
		if err != nil {
			return err
		}
		logSummary(log, report)
		return nil
	},
}

func init() {
	fixRoomsCmd.Flags().BoolVar(&fixRoomsDryRun, "dry-run", false, "show what would change without writing")
}

func logSummary(log *zap.Logger, r *model.Report) {
	log.Info("summary",
		zap.String("run_id", r.RunID.String()),
		zap.Bool("dry_run", r.DryRun),
		zap.Int("rooms_scanned", r.Repair.Scanned),
		zap.Int("rooms_fixed", r.Fixed()),
		zap.Int("rooms_errored", r.Repair.Errors),
		zap.String("verified", fmt.Sprintf("%d/%d", r.Verify.Valid, r.Verify.Linked)),
		zap.Int("tenants_synced", r.Sync.Updated),
		zap.Int("tenants_missing", r.Sync.Skipped))
	if r.DryRun && r.Changed() {
		log.Info("dry run completed, no changes made; run without --dry-run to apply")
	}
}
