// Package mixin provides field sets beyond the core mixins: multi-tenancy,
// audit attribution, and combined presets. They are starting points; a
// project with different naming conventions should define its own mixins the
// same way.
package mixin

import (
	"github.com/google/uuid"

	"github.com/crudox/crudox/schema"
	"github.com/crudox/crudox/schema/field"
	coremixin "github.com/crudox/crudox/schema/mixin"
)

// TenantID adds an immutable tenantId field for row-level tenant isolation.
// Pair it with the privacy package's tenant rules.
type TenantID struct{}

// Fields returns the tenant field.
func (TenantID) Fields() []schema.Field {
	return []schema.Field{
		field.String("tenantId").
			Immutable().
			Comment("Tenant the row belongs to"),
	}
}

// Audit adds createdBy and updatedBy attribution fields. Both are optional;
// the caller fills them from the request identity.
type Audit struct{}

// Fields returns the attribution fields.
func (Audit) Fields() []schema.Field {
	return []schema.Field{
		field.String("createdBy").Optional().Immutable(),
		field.String("updatedBy").Optional(),
	}
}

// ExternalID adds a unique, immutable UUID field named externalId,
// generated on creation. Use it to expose stable identifiers while keeping
// an auto-increment primary key.
type ExternalID struct{}

// Fields returns the external id field.
func (ExternalID) Fields() []schema.Field {
	return []schema.Field{
		field.UUID("externalId").
			Unique().
			Immutable().
			DefaultFunc(func() string { return uuid.NewString() }),
	}
}

// TimeSoftDelete combines the core Time and SoftDelete mixins: createdAt,
// updatedAt, and deletedAt in one declaration.
type TimeSoftDelete struct{}

// Fields returns the combined fields.
func (TimeSoftDelete) Fields() []schema.Field {
	return append(
		coremixin.Time{}.Fields(),
		coremixin.SoftDelete{}.Fields()...,
	)
}

var (
	_ schema.Mixin = TenantID{}
	_ schema.Mixin = Audit{}
	_ schema.Mixin = ExternalID{}
	_ schema.Mixin = TimeSoftDelete{}
)
