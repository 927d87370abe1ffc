package querylanguage

import (
	"strings"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/metadata"
)

// A Direction is a sort direction.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool { return d == Asc || d == Desc }

// An OrderTerm sorts by a field path. Path holds relation names followed by
// a final field name; a bare field has a single-element path.
type OrderTerm struct {
	Path      []string
	Direction Direction
}

// Field returns the final field name of the path.
func (t OrderTerm) Field() string { return t.Path[len(t.Path)-1] }

// String returns the dotted form of the path.
func (t OrderTerm) String() string {
	return strings.Join(t.Path, ".") + " " + string(t.Direction)
}

/// OrderInput is the serialized form of one order term: a dotted field
// path and an optional direction, defaulting to ascending.
type OrderInput struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// DecodeOrder validates a list of raw order terms against the shape and
// returns the typed terms. Paths traverse to-one relations only; a path
// through a multiplicative relation is rejected.
func (s *OrderShape) DecodeOrder(raw []OrderInput) ([]OrderTerm, error) {
	terms := make([]OrderTerm, 0, len(raw))
	for _, r := range raw {
		dir := r.Direction
		if dir == "" {
			dir = Asc
		}
		if !dir.Valid() {
			return nil, crudox.NewValidationErrorf(r.Field, "unknown sort direction %q", r.Direction)
		}
		path := strings.Split(r.Field, ".")
		if err := s.validatePath(path); err != nil {
			return nil, err
		}
		terms = append(terms, OrderTerm{Path: path, Direction: dir})
	}
	return terms, nil
}

func (s *OrderShape) validatePath(path []string) error {
	shape := s
	for i, seg := range path {
		if i == len(path)-1 {
			if _, ok := shape.Field(seg); !ok {
				return orderPathError(shape.Entity, path, seg)
			}
			return nil
		}
		next, ok := shape.Relation(seg)
		if !ok {
			return orderPathError(shape.Entity, path, seg)
		}
		shape = next
	}
	return crudox.NewValidationErrorf(strings.Join(path, "."), "empty order path")
}

func orderPathError(ent *metadata.Entity, path []string, seg string) error {
	name := strings.Join(path, ".")
	if rel, ok := ent.Relation(seg); ok && rel.ToMany() {
		return crudox.NewValidationErrorf(name, "cannot order through %s relation %q", rel.Kind, seg)
	}
	return crudox.NewValidationErrorf(name, "unknown sortable field %q on entity %s", seg, ent.Name)
}
