package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"github.com/boa-portal/membership-sync/migrations"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withMigrator(func(m *migrate.Migrate) error {
					if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return fmt.Errorf("up failed: %w", err)
					}
					a.logger.Info("migrations: up completed")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down [N]",
			Short: "Roll back N migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("down: invalid steps argument %q", args[0])
					}
					steps = n
				}
				return a.withMigrator(func(m *migrate.Migrate) error {
					if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return fmt.Errorf("down failed: %w", err)
					}
					a.logger.Info("migrations: down completed", "steps", steps)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withMigrator(func(m *migrate.Migrate) error {
					v, dirty, err := m.Version()
					if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
						return fmt.Errorf("version failed: %w", err)
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "version: %d  dirty: %v\n", v, dirty)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "force <V>",
			Short: "Set the migration version without running migrations (clears dirty state)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("force: invalid version %q", args[0])
				}
				return a.withMigrator(func(m *migrate.Migrate) error {
					if err := m.Force(v); err != nil {
						return fmt.Errorf("force failed: %w", err)
					}
					a.logger.Info("migrations: forced", "version", v)
					return nil
				})
			},
		},
		newMigrateDropCmd(a),
	)
	return cmd
}

func newMigrateDropCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every table (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: drop will destroy all tables. Type 'yes' to confirm:")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if strings.TrimSpace(line) != "yes" {
					fmt.Fprintln(cmd.OutOrStdout(), "aborted")
					return nil
				}
			}
			return a.withMigrator(func(m *migrate.Migrate) error {
				if err := m.Drop(); err != nil {
					return fmt.Errorf("drop failed: %w", err)
				}
				a.logger.Info("migrations: all tables dropped")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")
	return cmd
}

// withMigrator opens a migrator over MIGRATIONS_PATH, or over the embedded
// files for the configured driver when the path is empty.
func (a *app) withMigrator(fn func(*migrate.Migrate) error) error {
	dbURL, err := a.cfg.Database.MigrateURL()
	if err != nil {
		return err
	}

	var m *migrate.Migrate
	if path := a.cfg.MigrationsPath; path != "" {
		m, err = migrate.New("file://"+path, dbURL)
	} else {
		fsys, fsErr := migrations.FS(a.cfg.Database.Driver)
		if fsErr != nil {
			return fsErr
		}
		src, srcErr := iofs.New(fsys, ".")
		if srcErr != nil {
			return fmt.Errorf("migration source: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dbURL)
	}
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	defer m.Close()

	m.Log = &migrateLogger{logger: a.logger}
	return fn(m)
}

type migrateLogger struct {
	logger *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool { return false }
