// Package migrations embeds the ordered schema files for every supported
// driver. Each driver has its own directory named after the database/sql
// driver ("mysql", "postgres", "sqlite3").
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed mysql/*.sql postgres/*.sql sqlite3/*.sql
var files embed.FS

// FS returns the migration files for driver, rooted at its directory.
func FS(driver string) (fs.FS, error) {
	sub, err := fs.Sub(files, driver)
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if _, err := fs.Stat(files, driver); err != nil {
		return nil, fmt.Errorf("migrations: no migrations for driver %q", driver)
	}
	return sub, nil
}

// Up returns the contents of every up migration for driver, in version order.
// It is meant for bootstrapping throw-away databases such as in-memory SQLite.
func Up(driver string) ([]string, error) {
	fsys, err := FS(driver)
	if err != nil {
		return nil, err
	}
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	sort.Strings(names)

	stmts := make([]string, 0, len(names))
	for _, name := range names {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("migrations: read %s: %w", name, err)
		}
		stmts = append(stmts, strings.TrimSpace(string(b)))
	}
	return stmts, nil
}
