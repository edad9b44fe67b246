package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Tx
// ─────────────────────────────────────────────────────────────────────────────

// Tx mirrors the DB API surface so that repositories can accept either *DB
// or *Tx via the Querier interface.
type Tx struct {
	sqltx *sql.Tx
	db    *DB
}

// Exec executes a statement that does not return rows.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = t.db.rebind(query)
	start := time.Now()
	t.db.hooks.Before(ctx, query, args)
	res, err := t.sqltx.ExecContext(ctx, query, args...)
	err = t.db.mapErr(err)
	t.db.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

// Query executes a query returning rows. The caller MUST close *sql.Rows.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = t.db.rebind(query)
	start := time.Now()
	t.db.hooks.Before(ctx, query, args)
	rows, err := t.sqltx.QueryContext(ctx, query, args...)
	err = t.db.mapErr(err)
	t.db.hooks.After(ctx, query, args, time.Since(start), err)
	return rows, err
}

// QueryRow executes a query expected to return at most one row.
func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *Row {
	query = t.db.rebind(query)
	start := time.Now()
	t.db.hooks.Before(ctx, query, args)
	raw := t.sqltx.QueryRowContext(ctx, query, args...)
	t.db.hooks.After(ctx, query, args, time.Since(start), nil)
	return &Row{raw: raw, errMap: t.db.errMap}
}

// Prepare creates a prepared statement within the transaction.
func (t *Tx) Prepare(ctx context.Context, query string) (*Stmt, error) {
	query = t.db.rebind(query)
	s, err := t.sqltx.PrepareContext(ctx, query)
	if err != nil {
		return nil, t.db.mapErr(err)
	}
	return &Stmt{stmt: s, query: query, hooks: t.db.hooks, errMap: t.db.errMap}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx
// ─────────────────────────────────────────────────────────────────────────────

// TxOptions allows callers to configure isolation level and read-only flag.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// ExecTx starts a transaction, executes fn, and commits on success or rolls
// back on error or panic. Nested calls are not supported.
//
//	err := d.ExecTx(ctx, func(tx *db.Tx) error {
//	    exists, err := repo.NewMembershipRepo(tx).ExistsByEmail(ctx, email)
//	    ...
//	})
func (d *DB) ExecTx(ctx context.Context, fn func(*Tx) error, opts ...TxOptions) (err error) {
	ctx, cancel := d.applyDefaultTimeout(ctx)
	defer cancel()

	var sqlOpts *sql.TxOptions
	if len(opts) > 0 {
		sqlOpts = &sql.TxOptions{
			Isolation: opts[0].Isolation,
			ReadOnly:  opts[0].ReadOnly,
		}
	}

	sqltx, err := d.sqldb.BeginTx(ctx, sqlOpts)
	if err != nil {
		return d.mapErr(err)
	}

	tx := &Tx{sqltx: sqltx, db: d}

	defer func() {
		if p := recover(); p != nil {
			_ = sqltx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := sqltx.Rollback(); rbErr != nil {
				err = fmt.Errorf("db: rollback failed (%v) after original error: %w", rbErr, err)
			}
		}
	}()

	err = fn(tx)
	if err != nil {
		return d.mapErr(err)
	}

	if err = sqltx.Commit(); err != nil {
		return d.mapErr(err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Querier
// ─────────────────────────────────────────────────────────────────────────────

// Querier is the minimal interface shared by both *DB and *Tx.
// Repository constructors accept Querier so they work inside transactions.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
	Prepare(ctx context.Context, query string) (*Stmt, error)
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Tx)(nil)
)
