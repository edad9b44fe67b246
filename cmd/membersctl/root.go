package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/boa-portal/membership-sync/config"
	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/telemetry"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	envFiles []string
	cfg      *config.Config
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "membersctl",
		Short:         "BOA membership import and status reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.envFiles...)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger(os.Stderr)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	cmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", config.DefaultEnvFiles, "dotenv files to load when present")

	cmd.AddCommand(
		newServeCmd(a),
		newImportCmd(a),
		newTemplateCmd(a),
		newReconcileCmd(a),
		newMigrateCmd(a),
	)
	return cmd
}

// openDB connects with retries on transient failures. m may be nil.
// DATABASE_URL wins; otherwise the DSN is built from the DB_* settings.
func (a *app) openDB(ctx context.Context, m *telemetry.Metrics) (*db.DB, error) {
	dbo := a.cfg.Database

	dbCfg := dbo.DBConfig()
	dbCfg.Hooks = telemetry.DBHooks(db.LogHookConfig{
		Logger:             a.logger,
		SlowQueryThreshold: dbo.SlowQueryThreshold,
		LogArgs:            dbo.LogArgs,
	}, m, a.cfg.ServiceName, dbo.Driver)

	open := func() (*db.DB, error) {
		return db.OpenWithDriver(dbo.Driver, dbo.DriverOptions(), dbCfg)
	}
	if dbo.URL != "" {
		dsn, err := dbo.DSN()
		if err != nil {
			return nil, fmt.Errorf("database config: %w", err)
		}
		dbCfg.DSN = dsn
		open = func() (*db.DB, error) { return db.Open(dbCfg) }
	}

	var d *db.DB
	err := db.WithRetry(ctx, db.RetryConfig{
		MaxAttempts: dbo.ConnectAttempts,
		Delay:       dbo.ConnectRetryDelay,
	}, func() error {
		var openErr error
		d, openErr = open()
		if openErr != nil {
			a.logger.WarnContext(ctx, "database not reachable yet", "driver", dbo.Driver, "error", openErr)
		}
		return openErr
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}
