// Package dbtest opens throw-away in-memory SQLite databases carrying the
// production schema, for tests in other packages.
package dbtest

import (
	"context"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/boa-portal/membership-sync/db"
	"github.com/boa-portal/membership-sync/migrations"
)

// Open returns a migrated in-memory database closed at test cleanup.
// The pool is pinned to one connection: every ":memory:" connection would
// otherwise see its own empty database.
func Open(t testing.TB, hooks ...db.Hook) *db.DB {
	t.Helper()

	d, err := db.Open(db.Config{
		DSN:          ":memory:",
		DriverName:   "sqlite3",
		MaxOpenConns: 1,
		Hooks:        hooks,
	})
	require.NoError(t, err, "dbtest: open")
	t.Cleanup(func() { _ = d.Close() })

	stmts, err := migrations.Up("sqlite3")
	require.NoError(t, err, "dbtest: load migrations")
	for _, stmt := range stmts {
		_, err := d.Exec(context.Background(), stmt)
		require.NoError(t, err, "dbtest: migrate")
	}
	return d
}
