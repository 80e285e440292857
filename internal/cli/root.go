// Package cli wires the agmd subcommands.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/elev8tion/agm-platform-sub001/pkg/config"
	"github.com/elev8tion/agm-platform-sub001/pkg/notify"
	"github.com/elev8tion/agm-platform-sub001/pkg/sched"
	"github.com/elev8tion/agm-platform-sub001/pkg/storage"
)

// env bundles the pieces every subcommand needs.
type env struct {
	cfg   *config.Config
	sched *sched.Scheduler
	hub   *notify.Hub
}

// NewRootCmd builds the agmd command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "agmd",
		Short:         "Priority job scheduler daemon and control tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	open := func() (*env, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		store, err := storage.OpenWithPool(cfg.Database.Driver, cfg.Database.DSN, storage.PoolConfig{
			MaxOpenConns:    cfg.Database.Pool.MaxOpenConns,
			MaxIdleConns:    cfg.Database.Pool.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.Pool.ConnMaxLifetime.Std(),
			ConnMaxIdleTime: cfg.Database.Pool.ConnMaxIdleTime.Std(),
		})
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(context.Background()); err != nil {
			return nil, err
		}
		hub := notify.NewHub(
			notify.WithBuffer(cfg.Notify.Buffer),
			notify.WithSendTimeout(cfg.Notify.SendTimeout.Std()),
		)
		s := sched.New(store, hub, sched.Config{
			RetryBaseDelay:    cfg.Retry.BaseDelay.Std(),
			RetryMaxDelay:     cfg.Retry.MaxDelay.Std(),
			DefaultMaxRetries: cfg.Retry.DefaultMaxRetries,
		})
		return &env{cfg: cfg, sched: s, hub: hub}, nil
	}

	cmd.AddCommand(
		NewServeCmd(open),
		NewWorkerCmd(open),
		NewEnqueueCmd(open),
		NewStatusCmd(open),
		NewListCmd(open),
		NewStatsCmd(open),
		NewCancelCmd(open),
		NewRequeueCmd(open),
		NewCleanupCmd(open),
	)
	return cmd
}
