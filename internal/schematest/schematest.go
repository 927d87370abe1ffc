// Package schematest provides a small canonical entity set used by tests
// across the repository: users owning pets (one-to-many) and belonging to
// groups (many-to-many), plus soft-deletable orders with decimal amounts.
package schematest

import (
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/schema"
	"github.com/crudox/crudox/schema/field"
	"github.com/crudox/crudox/schema/mixin"
	"github.com/crudox/crudox/schema/relation"
)

type User struct{ schema.Entity }

func (User) Fields() []schema.Field {
	return []schema.Field{
		field.Int64("id").PrimaryKey().Immutable().StorageKey("uid"),
		field.String("name"),
		field.Int("age").Optional(),
		field.Bool("active").Default(true),
		field.String("country").Optional(),
	}
}

func (User) Relations() []schema.Relation {
	return []schema.Relation{
		relation.ToMany("pets", "Pet", "owner"),
		relation.ToMany("orders", "Order", "user"),
		relation.ManyToMany("groups", "Group"),
	}
}

type Pet struct{ schema.Entity }

func (Pet) Mixin() []schema.Mixin {
	return []schema.Mixin{mixin.ID{}}
}

func (Pet) Fields() []schema.Field {
	return []schema.Field{
		field.String("name"),
		field.Int("age").Optional(),
	}
}

func (Pet) Relations() []schema.Relation {
	return []schema.Relation{
		relation.To("owner", "User").Required(),
	}
}

type Group struct{ schema.Entity }

func (Group) Fields() []schema.Field {
	return []schema.Field{
		field.Int64("id").PrimaryKey().StorageKey("gid"),
		field.String("name").Unique(),
	}
}

type Order struct{ schema.Entity }

func (Order) Mixin() []schema.Mixin {
	return []schema.Mixin{mixin.ID{}, mixin.Time{}, mixin.SoftDelete{}}
}

func (Order) Fields() []schema.Field {
	return []schema.Field{
		field.Enum("status").Values("pending", "paid", "cancelled").Default("pending"),
		field.Decimal("amount", 2),
		field.Int("quantity").Default(1),
	}
}

func (Order) Relations() []schema.Relation {
	return []schema.Relation{
		relation.To("user", "User").Required(),
		relation.ToMany("items", "OrderItem", "order"),
	}
}

type OrderItem struct{ schema.Entity }

func (OrderItem) Mixin() []schema.Mixin {
	return []schema.Mixin{mixin.ID{}}
}

func (OrderItem) Fields() []schema.Field {
	return []schema.Field{
		field.String("sku"),
		field.Int("quantity"),
		field.Decimal("price", 2),
	}
}

func (OrderItem) Relations() []schema.Relation {
	return []schema.Relation{
		relation.To("order", "Order").Required(),
	}
}

// Registry returns a frozen registry holding the canonical entities.
func Registry() *metadata.Registry {
	reg := metadata.NewRegistry()
	reg.MustRegister(User{}, Pet{}, Group{}, Order{}, OrderItem{})
	if err := reg.Freeze(); err != nil {
		panic(err)
	}
	return reg
}

// Entity looks up an entity from a fresh canonical registry.
func Entity(name string) *metadata.Entity {
	ent, err := Registry().Lookup(name)
	if err != nil {
		panic(err)
	}
	return ent
}
