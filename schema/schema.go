// Package schema provides the building blocks for defining entities.
//
// An entity definition embeds [Entity] and overrides the methods it needs:
//
//	type User struct{ schema.Entity }
//
//	func (User) Mixin() []schema.Mixin {
//	    return []schema.Mixin{
//	        mixin.ID{},
//	        mixin.Time{},
//	    }
//	}
//
//	func (User) Fields() []schema.Field {
//	    return []schema.Field{
//	        field.String("email").Unique(),
//	        field.Enum("status").Values("active", "suspended"),
//	    }
//	}
//
//	func (User) Relations() []schema.Relation {
//	    return []schema.Relation{
//	        relation.ToMany("posts", "Post", "author"),
//	    }
//	}
//
// Definitions are plain values; registering them with the metadata registry
// resolves names, columns, and relation endpoints.
package schema

import (
	"github.com/crudox/crudox/schema/field"
	"github.com/crudox/crudox/schema/relation"
)

// Field is implemented by all field builders in schema/field.
type Field interface {
	Descriptor() *field.Descriptor
}

// Relation is implemented by all relation builders in schema/relation.
type Relation interface {
	Descriptor() *relation.Descriptor
}

// A Definition declares the shape of one entity. The metadata registry
// derives the entity name from the definition's type name unless the
// definition implements [Namer].
type Definition interface {
	Fields() []Field
	Relations() []Relation
	Mixin() []Mixin
}

// A Mixin is a reusable set of fields shared by multiple definitions.
type Mixin interface {
	Fields() []Field
}

// Namer overrides the entity name derived from the definition type.
type Namer interface {
	Name() string
}

// Tabler overrides the table name derived from the entity name.
type Tabler interface {
	Table() string
}

// Entity is the default implementation of Definition. It should be embedded
// in all entity definitions.
type Entity struct{}

// Fields returns the fields of the entity.
func (Entity) Fields() []Field { return nil }

// Relations returns the relations of the entity.
func (Entity) Relations() []Relation { return nil }

// Mixin returns the mixins of the entity.
func (Entity) Mixin() []Mixin { return nil }

var _ Definition = (*Entity)(nil)
