// Package relation provides the builders for declaring links between
// entities. A relation is declared on the side that owns it and resolved by
// the metadata registry once both endpoints are registered.
package relation

// A Kind classifies the cardinality of a relation.
type Kind uint8

// Relation kinds.
const (
	O2O Kind = iota // one-to-one, foreign key on this entity
	M2O             // many-to-one, foreign key on this entity
	O2M             // one-to-many, foreign key on the target entity
	M2M             // many-to-many through a join table
)

var kindNames = [...]string{
	O2O: "one-to-one",
	M2O: "many-to-one",
	O2M: "one-to-many",
	M2M: "many-to-many",
}

func (k Kind) String() string { return kindNames[k] }

// ToMany reports whether the relation can yield multiple rows.
func (k Kind) ToMany() bool { return k == O2M || k == M2M }

// Descriptor holds the declared options of a single relation.
type Descriptor struct {
	Name       string // Relation name as exposed in query inputs.
	Target     string // Target entity name.
	Kind       Kind
	FKColumn   string // Foreign key column override.
	RefName    string // For O2M: the name of the inverse relation on the target.
	Table      string // For M2M: join table name override.
	OwnColumn  string // For M2M: join table column referencing this entity.
	RefColumn  string // For M2M: join table column referencing the target.
	Required   bool   // Foreign key must be set on create.
	Comment    string
}

type builder struct {
	desc *Descriptor
}

// Descriptor returns the descriptor of the relation.
func (b *builder) Descriptor() *Descriptor {
	return b.desc
}

// ToOneBuilder builds relations whose foreign key lives on the declaring
// entity.
type ToOneBuilder struct{ builder }

// To returns a new to-one relation to the target entity. The foreign key
// column defaults to the underscored relation name suffixed with the target
// primary key.
func To(name, target string) *ToOneBuilder {
	return &ToOneBuilder{builder{&Descriptor{Name: name, Target: target, Kind: M2O}}}
}

// Unique restricts the relation to one row per target, making it one-to-one.
func (b *ToOneBuilder) Unique() *ToOneBuilder { b.desc.Kind = O2O; return b }

// Required makes the foreign key mandatory on create.
func (b *ToOneBuilder) Required() *ToOneBuilder { b.desc.Required = true; return b }

// Column overrides the foreign key column on the declaring entity.
func (b *ToOneBuilder) Column(c string) *ToOneBuilder { b.desc.FKColumn = c; return b }

// Comment sets the relation description.
func (b *ToOneBuilder) Comment(c string) *ToOneBuilder { b.desc.Comment = c; return b }

// ToManyBuilder builds relations whose foreign key lives on the target
// entity.
type ToManyBuilder struct{ builder }

// ToMany returns a new one-to-many relation to the target entity. ref names
// the inverse to-one relation declared on the target; the foreign key column
// is taken from it.
func ToMany(name, target, ref string) *ToManyBuilder {
	return &ToManyBuilder{builder{&Descriptor{Name: name, Target: target, Kind: O2M, RefName: ref}}}
}

// Comment sets the relation description.
func (b *ToManyBuilder) Comment(c string) *ToManyBuilder { b.desc.Comment = c; return b }

// ManyToManyBuilder builds relations resolved through a join table.
type ManyToManyBuilder struct{ builder }

// ManyToMany returns a new many-to-many relation to the target entity. The
// join table name defaults to the underscored singular names of both
// entities joined in declaration order.
func ManyToMany(name, target string) *ManyToManyBuilder {
	return &ManyToManyBuilder{builder{&Descriptor{Name: name, Target: target, Kind: M2M}}}
}

// Through overrides the join table and its two foreign key columns. own
// references the declaring entity, ref references the target.
func (b *ManyToManyBuilder) Through(table, own, ref string) *ManyToManyBuilder {
	b.desc.Table = table
	b.desc.OwnColumn = own
	b.desc.RefColumn = ref
	return b
}

// Comment sets the relation description.
func (b *ManyToManyBuilder) Comment(c string) *ManyToManyBuilder { b.desc.Comment = c; return b }
