package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roomsync/internal/config"
	"roomsync/internal/logger"
	"roomsync/internal/manager"
	"roomsync/internal/storage"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "roomsync",
	Short: "Repair room/tenant links in the boarding-house database",
	Long: `roomsync repairs rooms.currentTenant values that hold a tenant id instead
of a user id, clears links that resolve to nothing, and copies each room's
number back onto the tenant living in it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("roomsync version %s\nCommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(fixRoomsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(enqueueCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration and builds the process logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "roomsync")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, log, nil
}

// openAudit connects the optional Postgres run history. A nil store with a
// nil error means auditing is disabled.
func openAudit(ctx context.Context, cfg *config.Config, log *zap.Logger) (*storage.AuditStore, error) {
	if cfg.Database.URL == "" {
		log.Info("audit store disabled (no database.url)")
		return nil, nil
	}
	audit, err := storage.NewAuditStore(cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := audit.EnsureSchema(ctx); err != nil {
		audit.Close()
		return nil, err
	}
	log.Info("PostgreSQL audit store connected")
	return audit, nil
}

// auditSink converts a possibly-nil store into a possibly-nil interface
// without producing a non-nil interface around a nil pointer.
func auditSink(a *storage.AuditStore) manager.AuditSink {
	if a == nil {
		return nil
	}
	return a
}
