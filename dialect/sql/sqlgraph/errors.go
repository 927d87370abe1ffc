package sqlgraph

import (
	"errors"
	"strings"

	"github.com/crudox/crudox"
)

// PostgreSQL SQLSTATE codes for constraint violations (class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// MySQL error numbers for constraint violations.
const (
	mysqlDuplicateEntry         = 1062
	mysqlForeignKeyParent       = 1451 // Cannot delete or update a parent row
	mysqlForeignKeyChild        = 1452 // Cannot add or update a child row
	mysqlCheckConstraintViolate = 3819
)

// errorCoder is implemented by driver errors carrying a string error code,
// such as pq.Error.
type errorCoder interface {
	Code() string
}

// errorNumberer is implemented by driver errors carrying a numeric code,
// such as mysql.MySQLError.
type errorNumberer interface {
	Number() uint16
}

// sqlStateError is implemented by driver errors exposing a SQLSTATE code.
type sqlStateError interface {
	SQLState() string
}

// Classify wraps a driver error that resulted from a constraint violation
// in a crudox.ConstraintError, so callers can match on the framework's
// taxonomy instead of per-driver error types. Other errors pass through
// unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case IsUniqueConstraintError(err):
		return crudox.NewConstraintError("unique", err)
	case IsForeignKeyConstraintError(err):
		return crudox.NewConstraintError("foreign key", err)
	case IsCheckConstraintError(err):
		return crudox.NewConstraintError("check", err)
	default:
		return err
	}
}

// IsConstraintError reports whether the error resulted from a database
// constraint violation.
func IsConstraintError(err error) bool {
	return crudox.IsConstraintError(err) ||
		IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err)
}

// IsUniqueConstraintError reports whether the error resulted from a
// uniqueness violation.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == pgUniqueViolation {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == pgUniqueViolation {
		return true
	}
	if e, ok := asError[errorNumberer](err); ok && e.Number() == mysqlDuplicateEntry {
		return true
	}
	return containsAny(err.Error(),
		"Error 1062",                 // MySQL
		"violates unique constraint", // PostgreSQL
		"UNIQUE constraint failed",   // SQLite
	)
}

// IsForeignKeyConstraintError reports whether the error resulted from a
// foreign-key violation.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == pgForeignKeyViolation {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == pgForeignKeyViolation {
		return true
	}
	if e, ok := asError[errorNumberer](err); ok {
		if n := e.Number(); n == mysqlForeignKeyParent || n == mysqlForeignKeyChild {
			return true
		}
	}
	return containsAny(err.Error(),
		"Error 1451",                      // MySQL
		"Error 1452",                      // MySQL
		"violates foreign key constraint", // PostgreSQL
		"FOREIGN KEY constraint failed",   // SQLite
	)
}

// IsCheckConstraintError reports whether the error resulted from a check
// constraint violation.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == pgCheckViolation {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == pgCheckViolation {
		return true
	}
	if e, ok := asError[errorNumberer](err); ok && e.Number() == mysqlCheckConstraintViolate {
		return true
	}
	return containsAny(err.Error(),
		"Error 3819",                // MySQL
		"violates check constraint", // PostgreSQL
		"CHECK constraint failed",   // SQLite
	)
}

// asError extracts an error implementing T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
