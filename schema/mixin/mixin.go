// Package mixin provides ready-to-use sets of fields shared by entity
// definitions.
package mixin

import (
	"github.com/crudox/crudox/schema"
	"github.com/crudox/crudox/schema/field"
)

// ID adds an auto-increment int64 primary key named "id".
type ID struct{}

// Fields returns the primary key field.
func (ID) Fields() []schema.Field {
	return []schema.Field{
		field.Int64("id").PrimaryKey().Immutable(),
	}
}

// UUIDID adds a UUID primary key named "id".
type UUIDID struct{}

// Fields returns the primary key field.
func (UUIDID) Fields() []schema.Field {
	return []schema.Field{
		field.UUID("id").PrimaryKey().Immutable(),
	}
}

// Time adds createdAt and updatedAt timestamp fields. createdAt is set on
// creation and is immutable; updatedAt is refreshed on every update.
type Time struct{}

// Fields returns the time tracking fields.
func (Time) Fields() []schema.Field {
	return []schema.Field{
		field.Time("createdAt").
			DefaultNow().
			Immutable().
			Comment("Timestamp when the record was created"),
		field.Time("updatedAt").
			DefaultNow().
			Comment("Timestamp when the record was last updated"),
	}
}

// SoftDelete adds a nillable deletedAt field. When set, the record is
// considered removed but remains in the database, and read operations skip
// it unless asked to include deleted rows.
type SoftDelete struct{}

// Fields returns the soft delete field.
func (SoftDelete) Fields() []schema.Field {
	return []schema.Field{
		field.Time("deletedAt").
			Optional().
			Nillable().
			Comment("Timestamp when the record was soft deleted"),
	}
}

var (
	_ schema.Mixin = ID{}
	_ schema.Mixin = UUIDID{}
	_ schema.Mixin = Time{}
	_ schema.Mixin = SoftDelete{}
)
