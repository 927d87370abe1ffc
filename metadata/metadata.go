// Package metadata resolves entity definitions into runtime descriptors.
//
// A Registry collects schema definitions and, once frozen, exposes resolved
// entities: table and column names filled in, mixin fields merged, relation
// endpoints linked. All query machinery works from these resolved
// descriptors; nothing else reads the raw definitions.
package metadata

import (
	"reflect"
	"sort"
	"sync"

	"github.com/go-openapi/inflect"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/schema"
	"github.com/crudox/crudox/schema/field"
	"github.com/crudox/crudox/schema/relation"
)

// System field names recognized across all entities.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldDeletedAt = "deletedAt"
)

// IsSystemField reports whether the field name is maintained by the
// framework rather than the caller.
func IsSystemField(name string) bool {
	switch name {
	case FieldID, FieldCreatedAt, FieldUpdatedAt, FieldDeletedAt:
		return true
	}
	return false
}

// Field is a resolved entity field.
type Field struct {
	Name       string
	Column     string
	Type       field.Type
	Nillable   bool
	Optional   bool
	Unique     bool
	Immutable  bool
	PrimaryKey bool
	Sensitive  bool
	Default    any
	Enums      []string
	Precision  int32
	Comment    string
}

// System reports whether the field is maintained by the framework.
func (f *Field) System() bool { return IsSystemField(f.Name) }

// Relation is a resolved link between two entities.
type Relation struct {
	Name     string
	Kind     relation.Kind
	Owner    *Entity
	Target   *Entity
	Required bool
	Comment  string

	// FKColumn is the foreign key column. For to-one relations it lives on
	// the owner table, for one-to-many on the target table.
	FKColumn string

	// Join table geometry, set for many-to-many relations only.
	JoinTable string
	OwnColumn string
	RefColumn string
}

// ToMany reports whether the relation can yield multiple rows.
func (r *Relation) ToMany() bool { return r.Kind.ToMany() }

// Entity is a resolved entity descriptor.
type Entity struct {
	Name  string
	Table string

	fields    []*Field
	fieldmap  map[string]*Field
	relations []*Relation
	relmap    map[string]*Relation
	pk        *Field
}

// Fields returns the entity fields in declaration order, mixin fields first.
func (e *Entity) Fields() []*Field { return e.fields }

// Field returns the field with the given name.
func (e *Entity) Field(name string) (*Field, bool) {
	f, ok := e.fieldmap[name]
	return f, ok
}

// Relations returns the entity relations in declaration order.
func (e *Entity) Relations() []*Relation { return e.relations }

// Relation returns the relation with the given name.
func (e *Entity) Relation(name string) (*Relation, bool) {
	r, ok := e.relmap[name]
	return r, ok
}

// PrimaryKey returns the primary key field.
func (e *Entity) PrimaryKey() *Field { return e.pk }

// SoftDeletable reports whether the entity carries a deletedAt field.
func (e *Entity) SoftDeletable() bool {
	_, ok := e.fieldmap[FieldDeletedAt]
	return ok
}

// Columns returns the column names of all fields in declaration order.
func (e *Entity) Columns() []string {
	cols := make([]string, len(e.fields))
	for i, f := range e.fields {
		cols[i] = f.Column
	}
	return cols
}

// Column returns the column name of the given field, or an error naming the
// entity when the field is unknown.
func (e *Entity) Column(name string) (string, error) {
	f, ok := e.fieldmap[name]
	if !ok {
		return "", crudox.NewValidationErrorf(name, "unknown field for entity %s", e.Name)
	}
	return f.Column, nil
}

// Registry collects entity definitions and resolves them into entities.
// Register all definitions first, then call Freeze once; lookups before
// Freeze fail. A frozen registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	pending  map[string]schema.Definition
	order    []string
	entities map[string]*Entity
	frozen   bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending:  make(map[string]schema.Definition),
		entities: make(map[string]*Entity),
	}
}

// Register adds entity definitions to the registry. The entity name is the
// definition type name unless the definition implements schema.Namer.
func (r *Registry) Register(defs ...schema.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return crudox.NewConfigError("metadata: registry is frozen")
	}
	for _, def := range defs {
		name := definitionName(def)
		if name == "" {
			return crudox.NewConfigError("metadata: cannot derive entity name from %T", def)
		}
		if _, ok := r.pending[name]; ok {
			return crudox.NewConfigError("metadata: entity %s registered twice", name)
		}
		r.pending[name] = def
		r.order = append(r.order, name)
	}
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// package-level wiring where a bad definition should fail at startup.
func (r *Registry) MustRegister(defs ...schema.Definition) {
	if err := r.Register(defs...); err != nil {
		panic(err)
	}
}

// Freeze resolves all registered definitions. After Freeze returns nil the
// registry is immutable and lookups succeed.
func (r *Registry) Freeze() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return nil
	}
	// First pass: fields, tables, and primary keys.
	for _, name := range r.order {
		ent, err := r.resolveEntity(name, r.pending[name])
		if err != nil {
			return err
		}
		r.entities[name] = ent
	}
	// Second pass: relations, once every target can be looked up.
	for _, name := range r.order {
		if err := r.resolveRelations(r.entities[name], r.pending[name]); err != nil {
			return err
		}
	}
	r.frozen = true
	return nil
}

// Lookup returns the resolved entity with the given name.
func (r *Registry) Lookup(name string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.frozen {
		return nil, crudox.NewConfigError("metadata: registry is not frozen")
	}
	ent, ok := r.entities[name]
	if !ok {
		return nil, crudox.NewConfigError("metadata: unknown entity %s", name)
	}
	return ent, nil
}

// Entities returns all resolved entities sorted by name.
func (r *Registry) Entities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entity, 0, len(r.entities))
	for _, ent := range r.entities {
		out = append(out, ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) resolveEntity(name string, def schema.Definition) (*Entity, error) {
	ent := &Entity{
		Name:     name,
		Table:    inflect.Tableize(name),
		fieldmap: make(map[string]*Field),
		relmap:   make(map[string]*Relation),
	}
	if t, ok := def.(schema.Tabler); ok {
		ent.Table = t.Table()
	}
	var decls []schema.Field
	for _, m := range def.Mixin() {
		decls = append(decls, m.Fields()...)
	}
	decls = append(decls, def.Fields()...)
	for _, fd := range decls {
		desc := fd.Descriptor()
		if err := desc.Validate(); err != nil {
			return nil, crudox.NewConfigError("metadata: entity %s: %v", name, err)
		}
		if _, ok := ent.fieldmap[desc.Name]; ok {
			return nil, crudox.NewConfigError("metadata: entity %s: duplicate field %s", name, desc.Name)
		}
		f := &Field{
			Name:       desc.Name,
			Column:     desc.Column,
			Type:       desc.Type,
			Nillable:   desc.Nillable,
			Optional:   desc.Optional,
			Unique:     desc.Unique,
			Immutable:  desc.Immutable,
			PrimaryKey: desc.PrimaryKey,
			Sensitive:  desc.Sensitive,
			Default:    desc.Default,
			Enums:      desc.Enums,
			Precision:  desc.Precision,
			Comment:    desc.Comment,
		}
		if f.Column == "" {
			f.Column = inflect.Underscore(f.Name)
		}
		if f.PrimaryKey {
			if ent.pk != nil {
				return nil, crudox.NewConfigError("metadata: entity %s: multiple primary keys (%s, %s)", name, ent.pk.Name, f.Name)
			}
			ent.pk = f
		}
		ent.fields = append(ent.fields, f)
		ent.fieldmap[f.Name] = f
	}
	if ent.pk == nil {
		return nil, crudox.NewConfigError("metadata: entity %s: missing primary key", name)
	}
	return ent, nil
}

func (r *Registry) resolveRelations(ent *Entity, def schema.Definition) error {
	for _, rd := range def.Relations() {
		desc := rd.Descriptor()
		target, ok := r.entities[desc.Target]
		if !ok {
			return crudox.NewConfigError("metadata: entity %s: relation %s targets unknown entity %s", ent.Name, desc.Name, desc.Target)
		}
		if _, ok := ent.relmap[desc.Name]; ok {
			return crudox.NewConfigError("metadata: entity %s: duplicate relation %s", ent.Name, desc.Name)
		}
		if _, ok := ent.fieldmap[desc.Name]; ok {
			return crudox.NewConfigError("metadata: entity %s: relation %s collides with a field", ent.Name, desc.Name)
		}
		rel := &Relation{
			Name:     desc.Name,
			Kind:     desc.Kind,
			Owner:    ent,
			Target:   target,
			Required: desc.Required,
			Comment:  desc.Comment,
		}
		switch desc.Kind {
		case relation.O2O, relation.M2O:
			rel.FKColumn = desc.FKColumn
			if rel.FKColumn == "" {
				rel.FKColumn = inflect.Underscore(desc.Name) + "_id"
			}
		case relation.O2M:
			inv := findInverse(r.pending[target.Name], ent.Name, desc)
			if inv == nil {
				return crudox.NewConfigError("metadata: entity %s: relation %s has no inverse %q on %s", ent.Name, desc.Name, desc.RefName, target.Name)
			}
			rel.FKColumn = inv.FKColumn
			if rel.FKColumn == "" {
				rel.FKColumn = inflect.Underscore(inv.Name) + "_id"
			}
		case relation.M2M:
			rel.JoinTable = desc.Table
			rel.OwnColumn = desc.OwnColumn
			rel.RefColumn = desc.RefColumn
			if rel.JoinTable == "" {
				rel.JoinTable = inflect.Underscore(ent.Name) + "_" + inflect.Tableize(target.Name)
			}
			if rel.OwnColumn == "" {
				rel.OwnColumn = inflect.Underscore(ent.Name) + "_id"
			}
			if rel.RefColumn == "" {
				rel.RefColumn = inflect.Underscore(target.Name) + "_id"
			}
		}
		ent.relations = append(ent.relations, rel)
		ent.relmap[rel.Name] = rel
	}
	return nil
}

// findInverse locates the to-one declaration on the target entity that a
// one-to-many declaration points back at. Relations resolve in registration
// order, so the inverse may not be linked yet; the raw declaration is
// scanned instead.
func findInverse(target schema.Definition, owner string, desc *relation.Descriptor) *relation.Descriptor {
	if target == nil {
		return nil
	}
	for _, rd := range target.Relations() {
		d := rd.Descriptor()
		if d.Name == desc.RefName && (d.Kind == relation.M2O || d.Kind == relation.O2O) && d.Target == owner {
			return d
		}
	}
	return nil
}

// definitionName derives the entity name from the definition.
func definitionName(def schema.Definition) string {
	if n, ok := def.(schema.Namer); ok {
		return n.Name()
	}
	t := reflect.TypeOf(def)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
