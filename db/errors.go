package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("db: record not found")

	// ErrDuplicateKey is returned on unique constraint violations.
	ErrDuplicateKey = errors.New("db: duplicate key")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated.
	ErrForeignKeyViolation = errors.New("db: foreign key violation")

	// ErrDeadlock is returned when the database detects a deadlock.
	ErrDeadlock = errors.New("db: deadlock detected")

	// ErrTimeout is returned when a statement exceeds its deadline.
	ErrTimeout = errors.New("db: query timeout")

	// ErrCheckViolation is returned when a CHECK constraint is violated.
	ErrCheckViolation = errors.New("db: check constraint violation")

	// ErrConnectionFailed is returned when the driver cannot reach the server.
	ErrConnectionFailed = errors.New("db: connection failed")
)

func IsNotFound(err error) bool            { return errors.Is(err, ErrNotFound) }
func IsDuplicateKey(err error) bool        { return errors.Is(err, ErrDuplicateKey) }
func IsForeignKeyViolation(err error) bool { return errors.Is(err, ErrForeignKeyViolation) }
func IsDeadlock(err error) bool            { return errors.Is(err, ErrDeadlock) }
func IsTimeout(err error) bool             { return errors.Is(err, ErrTimeout) }
func IsConnectionFailed(err error) bool    { return errors.Is(err, ErrConnectionFailed) }

// ─────────────────────────────────────────────────────────────────────────────
// DBError
// ─────────────────────────────────────────────────────────────────────────────

// DBError pairs a sentinel with the original driver error, so callers can use
// errors.Is(err, ErrDuplicateKey) or unwrap to the raw driver error.
type DBError struct {
	// Sentinel is one of the package-level Err* variables.
	Sentinel error
	// Cause is the original driver error.
	Cause error
}

// Error keeps the driver message last; the importer surfaces it verbatim.
func (e *DBError) Error() string {
	return fmt.Sprintf("%s: %v", e.Sentinel, e.Cause)
}

func (e *DBError) Is(target error) bool { return errors.Is(e.Sentinel, target) }
func (e *DBError) Unwrap() error        { return e.Cause }

// ─────────────────────────────────────────────────────────────────────────────
// ErrorMapper
// ─────────────────────────────────────────────────────────────────────────────

// ErrorMapper translates raw driver errors into the package sentinels.
type ErrorMapper interface {
	Map(err error) error
}

// ErrorMapperFunc adapts a function to ErrorMapper.
type ErrorMapperFunc func(error) error

func (f ErrorMapperFunc) Map(err error) error { return f(err) }

// DefaultErrorMapper handles MySQL, PostgreSQL (lib/pq) and SQLite.
func DefaultErrorMapper() ErrorMapper {
	return ErrorMapperFunc(defaultMap)
}

func defaultMap(err error) error {
	if err == nil {
		return nil
	}

	var dbe *DBError
	if errors.As(err, &dbe) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &DBError{Sentinel: ErrNotFound, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	}

	if mapped := mapMySQLError(err); mapped != nil {
		return mapped
	}
	if mapped := mapPQError(err); mapped != nil {
		return mapped
	}
	if mapped := mapSQLiteError(err); mapped != nil {
		return mapped
	}
	if mapped := mapConnError(err); mapped != nil {
		return mapped
	}

	return err
}

// ─────────────────────────────────────────────────────────────────────────────
// MySQL
// ─────────────────────────────────────────────────────────────────────────────

func mapMySQLError(err error) error {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}

	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return nil
	}
	switch me.Number {
	case 1062: // ER_DUP_ENTRY
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case 1452, 1216, 1217, 1451: // ER_NO_REFERENCED_ROW_2, ER_NO_REFERENCED_ROW, ER_ROW_IS_REFERENCED(_2)
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case 1213, 1205: // ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case 3819: // ER_CHECK_CONSTRAINT_VIOLATED
		return &DBError{Sentinel: ErrCheckViolation, Cause: err}
	case 3024: // ER_QUERY_TIMEOUT
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	case 1040, 1045, 1049, 2002, 2003, 2006, 2013:
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// https://www.postgresql.org/docs/current/errcodes-appendix.html
func mapPQError(err error) error {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return nil
	}
	switch pe.Code {
	case "23505":
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case "23503":
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case "23514":
		return &DBError{Sentinel: ErrCheckViolation, Cause: err}
	case "40P01":
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	case "57014":
		return &DBError{Sentinel: ErrTimeout, Cause: err}
	}
	if pe.Code.Class() == "08" {
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite (message based; the cgo driver is only linked where it is used)
// ─────────────────────────────────────────────────────────────────────────────

func mapSQLiteError(err error) error {
	s := err.Error()
	switch {
	case strings.Contains(s, "UNIQUE constraint failed"):
		return &DBError{Sentinel: ErrDuplicateKey, Cause: err}
	case strings.Contains(s, "FOREIGN KEY constraint failed"):
		return &DBError{Sentinel: ErrForeignKeyViolation, Cause: err}
	case strings.Contains(s, "CHECK constraint failed"):
		return &DBError{Sentinel: ErrCheckViolation, Cause: err}
	case strings.Contains(s, "database is locked"):
		return &DBError{Sentinel: ErrDeadlock, Cause: err}
	}
	return nil
}

func mapConnError(err error) error {
	var opErr *net.OpError
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &opErr) {
		return &DBError{Sentinel: ErrConnectionFailed, Cause: err}
	}
	return nil
}
