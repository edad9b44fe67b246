package db

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver builds a DSN for one database/sql driver from structured options.
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "mysql".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)
}

// DriverOptions carries the common connection parameters in a
// driver-agnostic form.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var drivers = map[string]Driver{
	MySQLDriver{}.Name():    MySQLDriver{},
	PostgresDriver{}.Name(): PostgresDriver{},
	SQLiteDriver{}.Name():   SQLiteDriver{},
}

// LookupDriver returns the registered Driver by name or an error.
func LookupDriver(name string) (Driver, error) {
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver opens a DB using a registered Driver and structured options.
// The database/sql driver itself must be linked in by the caller.
//
//	d, err := db.OpenWithDriver("mysql", db.DriverOptions{
//	    Host: "localhost", User: "boa", Password: "secret", Database: "boa",
//	}, db.Config{MaxOpenConns: 25})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn
	return Open(cfg)
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL (go-sql-driver/mysql)
// ─────────────────────────────────────────────────────────────────────────────

type MySQLDriver struct{}

func (MySQLDriver) Name() string { return "mysql" }

// DSN always enables parseTime so DATE/DATETIME columns scan into time.Time.
func (MySQLDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("mysql driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 3306
	}

	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, strconv.Itoa(port))
	c.DBName = o.Database
	c.ParseTime = true
	if len(o.Extra) > 0 {
		c.Params = make(map[string]string, len(o.Extra))
		for k, v := range o.Extra {
			c.Params[k] = v
		}
	}
	return c.FormatDSN(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     net.JoinHostPort(o.Host, strconv.Itoa(port)),
		Path:     "/" + o.Database,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite (mattn/go-sqlite3)
// ─────────────────────────────────────────────────────────────────────────────

type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	if len(o.Extra) == 0 {
		return o.Database, nil
	}
	q := url.Values{}
	for k, v := range o.Extra {
		q.Set(k, v)
	}
	return o.Database + "?" + q.Encode(), nil
}
