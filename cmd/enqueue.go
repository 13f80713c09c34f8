package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"roomsync/internal/messaging"
)

var (
	enqueueDryRun bool
	enqueueBy     string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Ask a running roomsync service to reconcile via RabbitMQ",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if cfg.RabbitMQ.URL == "" {
			return errors.New("rabbitmq.url (or RABBITMQ_URL) is not set")
		}

		rabbit, err := messaging.NewRabbitClient(cfg.RabbitMQ.URL, log)
		if err != nil {
			return err
		}
		defer rabbit.Close()

		if err := rabbit.DeclareQueues(); err != nil {
			return err
		}
		req := messaging.RunRequest{DryRun: enqueueDryRun, RequestedBy: enqueueBy}
		if err := rabbit.PublishRequest(req); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queued run request on %s (dry_run=%v)\n", messaging.RequestQueue, enqueueDryRun)
		return nil
	},
}

func init() {
	enqueueCmd.Flags().BoolVar(&enqueueDryRun, "dry-run", false, "request a dry run")
	enqueueCmd.Flags().StringVar(&enqueueBy, "requested-by", "cli", "who is asking, recorded in logs")
}
