package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/elev8tion/agm-platform-sub001/internal/demo"
	"github.com/elev8tion/agm-platform-sub001/pkg/config"
	"github.com/elev8tion/agm-platform-sub001/pkg/handler"
	"github.com/elev8tion/agm-platform-sub001/pkg/worker"
)

func workerOptions(cfg *config.Config) []worker.Option {
	opts := []worker.Option{
		worker.Concurrency(cfg.Worker.Concurrency),
		worker.PollInterval(cfg.Worker.PollInterval.Std()),
		worker.HeartbeatInterval(cfg.Worker.HeartbeatInterval.Std()),
		worker.HeartbeatTimeout(cfg.Worker.HeartbeatTimeout.Std()),
		worker.MaintenanceInterval(cfg.Worker.MaintenanceInterval.Std()),
		worker.CleanupInterval(cfg.Cleanup.Interval.Std()),
		worker.Retention(cfg.Cleanup.Retention.Std()),
	}
	if cfg.Worker.EnableRecurring {
		opts = append(opts, worker.EnableRecurring())
	}
	return opts
}

// NewWorkerCmd runs a standalone worker pool without the HTTP API.
func NewWorkerCmd(open func() (*env, error)) *cobra.Command {
	var workerID string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run a worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			registry := handler.NewRegistry()
			demo.Register(registry)

			opts := workerOptions(e.cfg)
			if workerID != "" {
				opts = append(opts, worker.WithWorkerID(workerID))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pool := worker.New(e.sched, registry, e.hub, opts...)
			if err := pool.Start(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workerID, "worker-id", "", "Stable worker id (defaults to a random UUID)")
	return cmd
}
