package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/boa-portal/membership-sync/httpapi"
	"github.com/boa-portal/membership-sync/importer"
	"github.com/boa-portal/membership-sync/reconciler"
	"github.com/boa-portal/membership-sync/repo"
	"github.com/boa-portal/membership-sync/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API and the background reconciler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

			database, err := a.openDB(ctx, metrics)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := telemetry.RegisterDBStats(prometheus.DefaultRegisterer, database, a.cfg.Database.Name); err != nil {
				return err
			}

			users := repo.NewUserRepo(database)
			svc := importer.NewService(users, repo.NewMembershipStore(database), importer.Config{
				Logger:   a.logger,
				Recorder: metrics,
			})

			rec := reconciler.New(users, reconciler.Config{
				Interval: a.cfg.Reconcile.Interval,
				Logger:   a.logger,
				Recorder: metrics,
			})
			if a.cfg.Reconcile.Enabled {
				rec.Start(ctx)
				defer rec.Stop()
			}

			srv := &http.Server{
				Addr: a.cfg.HTTPAddr,
				Handler: httpapi.NewRouter(httpapi.Deps{
					Importer:       svc,
					Pinger:         database,
					Gatherer:       prometheus.DefaultGatherer,
					Logger:         a.logger,
					MaxUploadBytes: a.cfg.Import.MaxUploadBytes,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("http server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
