// Command membersctl runs the membership sync service and its admin tasks:
// the HTTP API with the background reconciler, one-off imports, template
// generation, single reconciliation passes and schema migrations.
package main

import (
	"fmt"
	"os"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
