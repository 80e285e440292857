package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/elev8tion/agm-platform-sub001/internal/demo"
	"github.com/elev8tion/agm-platform-sub001/pkg/api"
	"github.com/elev8tion/agm-platform-sub001/pkg/handler"
	"github.com/elev8tion/agm-platform-sub001/pkg/worker"
)

// NewServeCmd runs the HTTP API and a worker pool in one process.
func NewServeCmd(open func() (*env, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and a worker pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open()
			if err != nil {
				return err
			}

			registry := handler.NewRegistry()
			demo.Register(registry)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			router := mux.NewRouter()
			api.SetupRoutes(router, e.sched, e.hub)
			server := &http.Server{
				Addr:         e.cfg.Server.Addr,
				Handler:      router,
				ReadTimeout:  e.cfg.Server.ReadTimeout.Std(),
				WriteTimeout: e.cfg.Server.WriteTimeout.Std(),
			}

			pool := worker.New(e.sched, registry, e.hub, workerOptions(e.cfg)...)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("http server listening", "addr", e.cfg.Server.Addr)
				if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				if err := pool.Start(ctx); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout.Std())
				defer cancel()
				return server.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}
}
