package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/config"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/infra"
	"github.com/Matheus2ouza/app-estacionamento-sub001/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var (
	dlqLimit   int64
	redriveMax int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the session event queue",
}

var eventsDLQCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Show dead-lettered session events, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runEventsDLQ,
}

var eventsRedriveCmd = &cobra.Command{
	Use:   "redrive",
	Short: "Move dead-lettered session events back to the queue",
	Long: `Move dead-lettered session events back to the queue with a fresh attempt
budget. The daily projection is additive: redrive only after fixing the cause.`,
	Args: cobra.NoArgs,
	RunE: runEventsRedrive,
}

func init() {
	eventsDLQCmd.Flags().Int64Var(&dlqLimit, "limit", 20, "Maximum entries to show")
	eventsRedriveCmd.Flags().IntVar(&redriveMax, "max", 0, "Maximum jobs to move (0 = all)")

	eventsCmd.AddCommand(eventsDLQCmd, eventsRedriveCmd)
	rootCmd.AddCommand(eventsCmd)
}

func eventsRedis(ctx context.Context) (*redis.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(cfg)
	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func runEventsDLQ(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rdb, err := eventsRedis(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()
	return printDLQ(ctx, cmd, rdb)
}

func printDLQ(ctx context.Context, cmd *cobra.Command, rdb *redis.Client) error {
	total, err := worker.DLQLength(ctx, rdb, worker.QueueSessionEvents)
	if err != nil {
		return err
	}
	entries, err := worker.PeekDLQ(ctx, rdb, worker.QueueSessionEvents, dlqLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d dead-lettered job(s) in %s\n", total, worker.QueueSessionEvents)
	for _, e := range entries {
		fmt.Fprintf(out, "%s  %-14s attempts=%d  %s\n", e.FailedAt.Format(time.RFC3339), e.JobType, e.Attempts, e.Reason)
	}
	return nil
}

func runEventsRedrive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rdb, err := eventsRedis(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()
	moved, err := worker.Redrive(ctx, rdb, worker.QueueSessionEvents, redriveMax)
	fmt.Fprintf(cmd.OutOrStdout(), "redriven: %d\n", moved)
	return err
}
