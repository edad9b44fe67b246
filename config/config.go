// Package config loads process configuration from the environment, with
// optional .env files for local runs.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"

	"github.com/boa-portal/membership-sync/db"
)

// DefaultEnvFiles are loaded, when present, before the environment is read.
// Variables already set in the process environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

type Config struct {
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080" validate:"required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"membership-sync"`

	// MigrationsPath points at a directory of migration files. Empty means
	// the files embedded in the binary.
	MigrationsPath string `env:"MIGRATIONS_PATH"`

	Database  DatabaseOptions
	Reconcile ReconcileOptions
	Import    ImportOptions
}

type DatabaseOptions struct {
	// URL, when set, is used verbatim as the driver DSN.
	URL      string `env:"DATABASE_URL"`
	Driver   string `env:"DB_DRIVER" envDefault:"mysql" validate:"oneof=mysql postgres sqlite3"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" validate:"gte=0,lte=65535"`
	User     string `env:"DB_USER" envDefault:"root"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"boa"`
	SSLMode  string `env:"DB_SSLMODE"`

	MaxOpenConns       int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25" validate:"gte=0"`
	MaxIdleConns       int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10" validate:"gte=0"`
	ConnMaxLifetime    time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
	ConnMaxIdleTime    time.Duration `env:"DB_CONN_MAX_IDLE_TIME" envDefault:"2m"`
	QueryTimeout       time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"10s"`
	SlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`
	LogArgs            bool          `env:"DB_LOG_ARGS" envDefault:"false"`
	ConnectAttempts    int           `env:"DB_CONNECT_ATTEMPTS" envDefault:"5" validate:"gte=1"`
	ConnectRetryDelay  time.Duration `env:"DB_CONNECT_RETRY_DELAY" envDefault:"2s"`
}

type ReconcileOptions struct {
	Enabled  bool          `env:"RECONCILE_ENABLED" envDefault:"true"`
	Interval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"5s" validate:"gt=0"`
}

type ImportOptions struct {
	MaxUploadBytes int64 `env:"IMPORT_MAX_UPLOAD_BYTES" envDefault:"10485760" validate:"gt=0"`
}

// Load reads the given .env files (missing ones are skipped), parses the
// environment and validates the result.
func Load(envFiles ...string) (*Config, error) {
	if err := LoadEnv(envFiles); err != nil {
		return nil, err
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// LoadEnv loads the files that exist, without overriding variables that
// are already set.
func LoadEnv(envFiles []string) error {
	existing := make([]string, 0, len(envFiles))
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: %s: %w", f, err)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// DSN returns the database/sql data source name for the configured driver.
// A MySQL DATABASE_URL always gets parseTime=true so DATETIME columns scan
// into time.Time.
func (d DatabaseOptions) DSN() (string, error) {
	if d.URL != "" {
		return d.urlDSN()
	}
	drv, err := db.LookupDriver(d.Driver)
	if err != nil {
		return "", err
	}
	return drv.DSN(d.DriverOptions())
}

// DriverOptions maps the discrete DB_* settings onto db.DriverOptions.
func (d DatabaseOptions) DriverOptions() db.DriverOptions {
	return db.DriverOptions{
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		Database: d.Name,
		SSLMode:  d.SSLMode,
	}
}

func (d DatabaseOptions) urlDSN() (string, error) {
	if d.Driver != "mysql" {
		return d.URL, nil
	}
	mc, err := mysql.ParseDSN(strings.TrimPrefix(d.URL, "mysql://"))
	if err != nil {
		return "", fmt.Errorf("config: DATABASE_URL: %w", err)
	}
	mc.ParseTime = true
	return mc.FormatDSN(), nil
}

// MigrateURL returns the DSN in the scheme-prefixed form golang-migrate
// expects.
func (d DatabaseOptions) MigrateURL() (string, error) {
	dsn, err := d.DSN()
	if err != nil {
		return "", err
	}
	switch d.Driver {
	case "postgres":
		return dsn, nil
	case "mysql", "sqlite3":
		prefix := d.Driver + "://"
		if strings.HasPrefix(dsn, prefix) {
			return dsn, nil
		}
		return prefix + dsn, nil
	}
	return "", fmt.Errorf("config: unsupported driver %q", d.Driver)
}

// DBConfig maps the pool and timeout settings onto db.Config. The caller
// supplies the DSN and hooks.
func (d DatabaseOptions) DBConfig() db.Config {
	return db.Config{
		DriverName:      d.Driver,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
		DefaultTimeout:  d.QueryTimeout,
	}
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
