// Package crud implements the storage-facing service layer. A Service binds
// one resolved entity to a dialect.Driver and exposes the read, write, bulk
// and transactional operations the composed resources delegate to. Records
// travel as maps keyed by field name, so the same service serves REST and
// GraphQL surfaces without per-entity structs.
package crud

import (
	"context"

	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/querylanguage"
)

// Record is one entity row keyed by field name. Values carry the Go type of
// the field: time.Time for time fields, decimal.Decimal for decimals,
// uuid.UUID for uuids, nil for NULL.
type Record map[string]any

// Servicer is the contract the operation composition layer binds against.
type Servicer interface {
	// Entity returns the resolved entity the service operates on.
	Entity() *metadata.Entity

	// FindAll returns the records matching the query. Order and pagination
	// of the query are honored; a nil query returns everything.
	FindAll(ctx context.Context, q *querylanguage.Query) ([]Record, error)

	// FindOne returns the record with the given primary key. When orFail is
	// set a missing record is an error; otherwise it is (nil, nil).
	FindOne(ctx context.Context, id any, orFail bool) (Record, error)

	// FindOneBy returns the first record matching the filter, with the same
	// orFail two-mode contract as FindOne.
	FindOneBy(ctx context.Context, where *querylanguage.Filter, orFail bool) (Record, error)

	// Paginate returns one page of records together with the derived page
	// information. The total reflects all rows matching the filter.
	Paginate(ctx context.Context, q *querylanguage.Query) ([]Record, querylanguage.PageInfo, error)

	// GroupedList executes a grouping query and returns one record per
	// group, keyed by group-key aliases and aggregate aliases. Pagination
	// applies to the set of groups and the total counts distinct groups.
	GroupedList(ctx context.Context, q *querylanguage.Query) ([]Record, querylanguage.PageInfo, error)

	// Create inserts a record and returns it as stored, defaults applied.
	Create(ctx context.Context, input Record) (Record, error)

	// Update applies the input to the record with the given primary key and
	// returns the updated record. Missing records are an error.
	Update(ctx context.Context, id any, input Record) (Record, error)

	// Remove removes the record with the given primary key and returns it.
	// On a soft-deletable service this marks the record deleted.
	Remove(ctx context.Context, id any) (Record, error)

	// BulkInsert inserts the inputs atomically and returns the stored rows.
	BulkInsert(ctx context.Context, inputs []Record) ([]Record, error)

	// BulkUpdate applies the input to every record matching the filter and
	// returns the number of affected rows.
	BulkUpdate(ctx context.Context, where *querylanguage.Filter, input Record) (int, error)

	// BulkRemove removes every record matching the filter and returns the
	// number of affected rows.
	BulkRemove(ctx context.Context, where *querylanguage.Filter) (int, error)

	// RunInTransaction runs fn inside a transaction. The transaction is
	// carried in the context passed to fn; service calls made with it join
	// the transaction. An error from fn rolls the whole unit back and
	// propagates unchanged. A nested call joins the outer transaction.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Audit reports a completed mutation to the configured auditor.
	Audit(ctx context.Context, action string, id any, before, after Record)
}

// SoftDeletable is the capability contract of services whose entity carries
// a deletedAt field. The composition layer checks for it at build time, so
// soft-delete operations can never reach a service lacking the capability.
type SoftDeletable interface {
	Servicer

	// SoftRemove marks the record deleted by setting its deletedAt field.
	SoftRemove(ctx context.Context, id any) (Record, error)

	// Recover clears the deletedAt field of a soft-deleted record.
	Recover(ctx context.Context, id any) (Record, error)

	// HardRemove deletes the row from storage, soft-deleted or not.
	HardRemove(ctx context.Context, id any) (Record, error)

	// BulkRecover clears deletedAt on every soft-deleted record matching
	// the filter and returns the number of affected rows.
	BulkRecover(ctx context.Context, where *querylanguage.Filter) (int, error)

	// BulkDelete deletes from storage every record matching the filter,
	// soft-deleted or not, and returns the number of affected rows.
	BulkDelete(ctx context.Context, where *querylanguage.Filter) (int, error)
}
