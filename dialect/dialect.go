// Package dialect provides the database abstraction consumed by the rest of
// the engine. It defines the dialect name constants and the narrow driver
// interfaces through which every data-access operation flows, so that the
// query translator and the CRUD service stay independent of the concrete
// database backend (PostgreSQL, MySQL or SQLite).
package dialect

import (
	"context"
)

// Supported dialect names.
const (
	// MySQL is the mysql dialect name.
	MySQL = "mysql"
	// SQLite is the sqlite dialect name.
	SQLite = "sqlite"
	// Postgres is the postgres dialect name.
	Postgres = "postgres"
)

// ExecQuerier wraps the two basic data-access operations. Both Driver and Tx
// implement it, which lets a unit of work run unchanged inside or outside a
// transaction.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in
	// SQL, INSERT or UPDATE. It scans the result into the pointer v for
	// drivers that support it (*sql.Result).
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT.
	// It scans the result into the pointer v (*sql.Rows).
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all database operations.
type Driver interface {
	ExecQuerier

	// Tx starts and returns a new transaction.
	// The transaction must be committed or rolled back.
	Tx(context.Context) (Tx, error)

	// Close closes the underlying connection.
	Close() error

	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transaction behavior. A Tx is also an ExecQuerier, so statements
// can be executed against it directly.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// nopTx pretends to be a transaction over an ExecQuerier. It is used when a
// unit of work must join an already running transaction.
type nopTx struct {
	ExecQuerier
}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

// NopTx returns a Tx with a no-op Commit / Rollback over the given driver.
func NopTx(d ExecQuerier) Tx {
	return nopTx{d}
}

// DebugFunc is called with the query and arguments before execution when a
// driver is wrapped with Debug.
type DebugFunc func(ctx context.Context, query string, args any)
