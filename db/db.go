// Package db is the SQL-first storage layer shared by the importer, the
// reconciler and the CLI. It is NOT an ORM: every statement is written by hand
// in the repositories, with `?` placeholders that are rebound for the active
// driver before execution.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config holds all options for opening and managing the connection pool.
type Config struct {
	// DSN is the driver-specific data-source name.
	DSN string

	// DriverName is "mysql", "postgres" or "sqlite3".
	DriverName string

	// Pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Default query timeout applied when no deadline is set on the context.
	// Zero means no default timeout.
	DefaultTimeout time.Duration

	// Hooks executed around every statement (logging, metrics, tracing).
	// nil entries are skipped.
	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────────────────────

// DB is a concurrency-safe wrapper around *sql.DB adding placeholder
// rebinding, hook dispatch, unified error mapping and transactions.
type DB struct {
	sqldb    *sql.DB
	cfg      Config
	bindType int
	hooks    hookChain
	errMap   ErrorMapper
}

// Open opens the database described by cfg and verifies connectivity with Ping.
// Callers are responsible for calling Close() when the application shuts down.
func Open(cfg Config) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db: DSN must not be empty")
	}
	if cfg.DriverName == "" {
		return nil, fmt.Errorf("db: DriverName must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	d := New(sqldb, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db: ping: %w", d.mapErr(err))
	}

	return d, nil
}

// New wraps an already opened *sql.DB. cfg.DSN is ignored; cfg.DriverName
// selects the placeholder style.
func New(sqldb *sql.DB, cfg Config) *DB {
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	return &DB{
		sqldb:    sqldb,
		cfg:      cfg,
		bindType: sqlx.BindType(cfg.DriverName),
		hooks:    newHookChain(cfg.Hooks),
		errMap:   DefaultErrorMapper(),
	}
}

// Raw returns the underlying *sql.DB.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// DriverName reports the database/sql driver in use.
func (d *DB) DriverName() string { return d.cfg.DriverName }

// Close closes all pooled connections. Safe to call multiple times.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// Stats returns pool statistics for monitoring.
func (d *DB) Stats() sql.DBStats { return d.sqldb.Stats() }

// ─────────────────────────────────────────────────────────────────────────────
// Query execution helpers
// ─────────────────────────────────────────────────────────────────────────────

// Exec executes a statement that returns no rows (INSERT, UPDATE, DELETE, DDL).
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()
	query = d.rebind(query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	res, err := d.sqldb.ExecContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query that returns rows.
// The caller MUST close the returned *sql.Rows. The default timeout is not
// applied here because the rows outlive this call.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = d.rebind(query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	rows, err := d.sqldb.QueryContext(ctx, query, args...)
	err = d.mapErr(err)
	d.hooks.After(ctx, query, args, time.Since(start), err)
	return rows, err
}

// QueryRow executes a query expected to return at most one row.
// ErrNotFound is returned from Scan when no row matches.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	query = d.rebind(query)
	start := time.Now()
	d.hooks.Before(ctx, query, args)
	raw := d.sqldb.QueryRowContext(ctx, query, args...)
	d.hooks.After(ctx, query, args, time.Since(start), nil) // err unknown until Scan
	return &Row{raw: raw, errMap: d.errMap}
}

// Prepare creates a prepared statement for repeated use.
// The caller is responsible for calling stmt.Close().
func (d *DB) Prepare(ctx context.Context, query string) (*Stmt, error) {
	query = d.rebind(query)
	s, err := d.sqldb.PrepareContext(ctx, query)
	if err != nil {
		return nil, d.mapErr(err)
	}
	return &Stmt{stmt: s, query: query, hooks: d.hooks, errMap: d.errMap}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch helpers
// ─────────────────────────────────────────────────────────────────────────────

// BatchExec runs query once per item through one prepared statement on q.
// Pass a *Tx for all-or-nothing semantics.
//
//	err := db.BatchExec(ctx, tx, "INSERT INTO users(name,email) VALUES(?,?)", rows,
//	    func(row UserRow) []any { return []any{row.Name, row.Email} })
func BatchExec[T any](
	ctx context.Context,
	q Querier,
	query string,
	items []T,
	argsFn func(T) []any,
) error {
	if len(items) == 0 {
		return nil
	}
	stmt, err := q.Prepare(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, item := range items {
		if _, err := stmt.Exec(ctx, argsFn(item)...); err != nil {
			return fmt.Errorf("db: batch item %d: %w", i, err)
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

func (d *DB) applyDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.DefaultTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.DefaultTimeout)
}

func (d *DB) rebind(query string) string {
	return sqlx.Rebind(d.bindType, query)
}

func (d *DB) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return d.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Row
// ─────────────────────────────────────────────────────────────────────────────

// Row wraps *sql.Row and maps errors through the unified error mapper.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
}

// Scan copies columns from the matched row into dest values.
// ErrNotFound is returned when no row was found.
func (r *Row) Scan(dest ...any) error {
	err := r.raw.Scan(dest...)
	if err == nil {
		return nil
	}
	return r.errMap.Map(err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Stmt
// ─────────────────────────────────────────────────────────────────────────────

// Stmt wraps a prepared *sql.Stmt with hook dispatch and error mapping.
type Stmt struct {
	stmt   *sql.Stmt
	query  string
	hooks  hookChain
	errMap ErrorMapper
}

// Exec executes the prepared statement.
func (s *Stmt) Exec(ctx context.Context, args ...any) (sql.Result, error) {
	start := time.Now()
	s.hooks.Before(ctx, s.query, args)
	res, err := s.stmt.ExecContext(ctx, args...)
	if err != nil {
		err = s.errMap.Map(err)
	}
	s.hooks.After(ctx, s.query, args, time.Since(start), err)
	return res, err
}

// Close releases the prepared statement resources.
func (s *Stmt) Close() error { return s.stmt.Close() }

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry
// ─────────────────────────────────────────────────────────────────────────────

// RetryConfig controls retry behaviour for transient errors.
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// RetryOn decides whether a given error should trigger a retry.
	// Defaults to ErrDeadlock, ErrTimeout and ErrConnectionFailed if nil.
	RetryOn func(error) bool
}

// WithRetry executes fn, retrying on transient errors per cfg.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	retryOn := cfg.RetryOn
	if retryOn == nil {
		retryOn = func(err error) bool {
			return IsDeadlock(err) || IsTimeout(err) || IsConnectionFailed(err)
		}
	}
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !retryOn(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("db: all %d attempts failed, last error: %w", cfg.MaxAttempts, lastErr)
}
