// Package crudox is a declarative CRUD engine for hybrid REST and GraphQL
// APIs. Entity definitions (schema package) are registered in a metadata
// registry, which drives generated filter, ordering and grouping input
// shapes (querylanguage package), a structured query translator and
// aggregation engine over a SQL builder (dialect/sql, dialect/sql/sqlgraph),
// a record-level CRUD service (crud package), and runtime operation
// composition (compose package) that exposes the whole pipeline as a
// dispatch table consumable by any transport.
//
// The root package holds the pieces shared by every layer: the error
// taxonomy and the result cache contract.
package crudox
