package querylanguage

import (
	"sort"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/metadata"
)

// Include selects which fields of an entity participate in a generated
// shape. The zero value (nil) means the default set: every scalar field
// that is neither a system field nor marked sensitive. Explicit entries
// override the default: true includes (for relations, with a freshly
// generated nested shape), false excludes, and a previously built shape
// value reuses that shape for a relation instead of regenerating it.
type Include map[string]any

// FieldShape describes the permitted operators of one filterable field.
type FieldShape struct {
	Field *metadata.Field
	Ops   []Op
}

// Allows reports whether the operator is permitted on the field.
func (s *FieldShape) Allows(op Op) bool {
	for _, o := range s.Ops {
		if o == op {
			return true
		}
	}
	return false
}

// WhereShape is the generated filter-input shape of an entity.
type WhereShape struct {
	Entity    *metadata.Entity
	fields    map[string]*FieldShape
	relations map[string]*WhereShape
}

// NewWhereShape builds the filter shape of the entity.
func NewWhereShape(ent *metadata.Entity, include Include) (*WhereShape, error) {
	s := &WhereShape{
		Entity:    ent,
		fields:    make(map[string]*FieldShape),
		relations: make(map[string]*WhereShape),
	}
	for _, f := range defaultFields(ent) {
		s.fields[f.Name] = &FieldShape{Field: f, Ops: OpsFor(f.Type)}
	}
	for _, name := range sortedKeys(include) {
		f, isField := ent.Field(name)
		rel, isRel := ent.Relation(name)
		if !isField && !isRel {
			return nil, crudox.NewConfigError("querylanguage: entity %s has no field or relation %q", ent.Name, name)
		}
		switch v := include[name].(type) {
		case bool:
			if !v {
				delete(s.fields, name)
				continue
			}
			if isField {
				s.fields[name] = &FieldShape{Field: f, Ops: OpsFor(f.Type)}
				continue
			}
			nested, err := NewWhereShape(rel.Target, nil)
			if err != nil {
				return nil, err
			}
			s.relations[name] = nested
		case *WhereShape:
			if !isRel {
				return nil, crudox.NewConfigError("querylanguage: entity %s: %q is not a relation", ent.Name, name)
			}
			if v.Entity != rel.Target {
				if v.Entity.Name != rel.Target.Name {
					return nil, crudox.NewConfigError("querylanguage: entity %s: relation %q expects a %s shape, got %s", ent.Name, name, rel.Target.Name, v.Entity.Name)
				}
				return nil, crudox.NewConfigError("querylanguage: entity %s: relation %q: the %s shape was built from a different registry", ent.Name, name, v.Entity.Name)
			}
			s.relations[name] = v
		default:
			return nil, crudox.NewConfigError("querylanguage: entity %s: field %q: include value must be bool or a shape", ent.Name, name)
		}
	}
	return s, nil
}

// Field returns the shape of the named filterable field.
func (s *WhereShape) Field(name string) (*FieldShape, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Relation returns the nested shape of the named relation.
func (s *WhereShape) Relation(name string) (*WhereShape, bool) {
	r, ok := s.relations[name]
	return r, ok
}

// Fields returns the filterable field names in sorted order.
func (s *WhereShape) Fields() []string { return sortedKeys(s.fields) }

// Relations returns the filterable relation names in sorted order.
func (s *WhereShape) Relations() []string { return sortedKeys(s.relations) }

// OrderShape is the generated ordering shape of an entity. Relations nest
// only when they resolve to a single row; multiplicative relations have no
// single value to order by and are rejected at construction.
type OrderShape struct {
	Entity    *metadata.Entity
	fields    map[string]*metadata.Field
	relations map[string]*OrderShape
}

// NewOrderShape builds the ordering shape of the entity.
func NewOrderShape(ent *metadata.Entity, include Include) (*OrderShape, error) {
	s := &OrderShape{
		Entity:    ent,
		fields:    make(map[string]*metadata.Field),
		relations: make(map[string]*OrderShape),
	}
	for _, f := range defaultFields(ent) {
		s.fields[f.Name] = f
	}
	for _, name := range sortedKeys(include) {
		f, isField := ent.Field(name)
		rel, isRel := ent.Relation(name)
		if !isField && !isRel {
			return nil, crudox.NewConfigError("querylanguage: entity %s has no field or relation %q", ent.Name, name)
		}
		switch v := include[name].(type) {
		case bool:
			if !v {
				delete(s.fields, name)
				continue
			}
			if isField {
				s.fields[name] = f
				continue
			}
			if rel.ToMany() {
				return nil, crudox.NewConfigError("querylanguage: entity %s: cannot order by %s relation %q", ent.Name, rel.Kind, name)
			}
			nested, err := NewOrderShape(rel.Target, nil)
			if err != nil {
				return nil, err
			}
			s.relations[name] = nested
		case *OrderShape:
			if !isRel || rel.ToMany() {
				return nil, crudox.NewConfigError("querylanguage: entity %s: %q is not a to-one relation", ent.Name, name)
			}
			s.relations[name] = v
		default:
			return nil, crudox.NewConfigError("querylanguage: entity %s: field %q: include value must be bool or a shape", ent.Name, name)
		}
	}
	return s, nil
}

// Field returns the named sortable field.
func (s *OrderShape) Field(name string) (*metadata.Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Relation returns the nested shape of the named to-one relation.
func (s *OrderShape) Relation(name string) (*OrderShape, bool) {
	r, ok := s.relations[name]
	return r, ok
}

// Fields returns the sortable field names in sorted order.
func (s *OrderShape) Fields() []string { return sortedKeys(s.fields) }

// Relations returns the sortable relation names in sorted order.
func (s *OrderShape) Relations() []string { return sortedKeys(s.relations) }

// GroupShape is the generated grouping shape of an entity: the fields that
// may serve as group keys. Only to-one relations nest.
type GroupShape struct {
	Entity    *metadata.Entity
	fields    map[string]*metadata.Field
	relations map[string]*GroupShape
}

// NewGroupShape builds the grouping shape of the entity.
func NewGroupShape(ent *metadata.Entity, include Include) (*GroupShape, error) {
	s := &GroupShape{
		Entity:    ent,
		fields:    make(map[string]*metadata.Field),
		relations: make(map[string]*GroupShape),
	}
	for _, f := range defaultFields(ent) {
		s.fields[f.Name] = f
	}
	for _, name := range sortedKeys(include) {
		f, isField := ent.Field(name)
		rel, isRel := ent.Relation(name)
		if !isField && !isRel {
			return nil, crudox.NewConfigError("querylanguage: entity %s has no field or relation %q", ent.Name, name)
		}
		switch v := include[name].(type) {
		case bool:
			if !v {
				delete(s.fields, name)
				continue
			}
			if isField {
				s.fields[name] = f
				continue
			}
			if rel.ToMany() {
				return nil, crudox.NewConfigError("querylanguage: entity %s: cannot group by %s relation %q", ent.Name, rel.Kind, name)
			}
			nested, err := NewGroupShape(rel.Target, nil)
			if err != nil {
				return nil, err
			}
			s.relations[name] = nested
		case *GroupShape:
			if !isRel || rel.ToMany() {
				return nil, crudox.NewConfigError("querylanguage: entity %s: %q is not a to-one relation", ent.Name, name)
			}
			s.relations[name] = v
		default:
			return nil, crudox.NewConfigError("querylanguage: entity %s: field %q: include value must be bool or a shape", ent.Name, name)
		}
	}
	return s, nil
}

// Field returns the named groupable field.
func (s *GroupShape) Field(name string) (*metadata.Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Relation returns the nested shape of the named to-one relation.
func (s *GroupShape) Relation(name string) (*GroupShape, bool) {
	r, ok := s.relations[name]
	return r, ok
}

// Fields returns the groupable field names in sorted order.
func (s *GroupShape) Fields() []string { return sortedKeys(s.fields) }

// Relations returns the groupable relation names in sorted order.
func (s *GroupShape) Relations() []string { return sortedKeys(s.relations) }

// defaultFields returns the fields included when no explicit map entry
// says otherwise: scalar, non-system, non-sensitive.
func defaultFields(ent *metadata.Entity) []*metadata.Field {
	var out []*metadata.Field
	for _, f := range ent.Fields() {
		if f.System() || f.Sensitive || !f.Type.Scalar() {
			continue
		}
		out = append(out, f)
	}
	return out
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
