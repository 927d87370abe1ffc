package querylanguage

import (
	"strings"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/metadata"
)

// An AggregateFunc is one of the supported aggregate functions.
type AggregateFunc string

// Aggregate functions.
const (
	AggCount AggregateFunc = "count"
	AggSum   AggregateFunc = "sum"
	AggAvg   AggregateFunc = "avg"
	AggMin   AggregateFunc = "min"
	AggMax   AggregateFunc = "max"
)

// Valid reports whether the function is known.
func (f AggregateFunc) Valid() bool {
	switch f {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

// A GroupKey is one grouping field, reached through zero or more to-one
// relations.
type GroupKey struct {
	Path  []string
	Field *metadata.Field
}

// Name returns the dotted form of the key path.
func (k GroupKey) Name() string { return strings.Join(k.Path, ".") }

// An Aggregate is one requested aggregate expression.
type Aggregate struct {
	Path  []string
	Field *metadata.Field
	Func  AggregateFunc
	Alias string
}

// A GroupSpec is a validated grouping request: the key fields and the
// aggregates to compute per group.
type GroupSpec struct {
	Keys       []GroupKey
	Aggregates []Aggregate
}

// GroupInput is the serialized form of a grouping request.
type GroupInput struct {
	// Fields mirrors the entity shape: true flags a grouping key, a nested
	// map descends into a to-one relation.
	Fields map[string]any `json:"fields"`
	// Aggregates lists the aggregate expressions to compute per group.
	Aggregates []AggregateInput `json:"aggregates"`
}

// AggregateInput is the serialized form of one aggregate request.
type AggregateInput struct {
	Field string        `json:"field"`
	Func  AggregateFunc `json:"fn"`
	Alias string        `json:"alias"`
}

// DecodeGroup validates a grouping request against the shape.
func (s *GroupShape) DecodeGroup(in GroupInput) (*GroupSpec, error) {
	spec := &GroupSpec{}
	if err := s.decodeKeys(in.Fields, nil, spec); err != nil {
		return nil, err
	}
	if len(spec.Keys) == 0 {
		return nil, crudox.NewValidationErrorf("groupBy", "no grouping fields selected")
	}
	seen := make(map[string]bool)
	for _, a := range in.Aggregates {
		agg, err := s.decodeAggregate(a)
		if err != nil {
			return nil, err
		}
		if seen[agg.Alias] {
			return nil, crudox.NewValidationErrorf(agg.Alias, "duplicate aggregate alias")
		}
		seen[agg.Alias] = true
		spec.Aggregates = append(spec.Aggregates, agg)
	}
	return spec, nil
}

func (s *GroupShape) decodeKeys(fields map[string]any, prefix []string, spec *GroupSpec) error {
	for _, name := range sortedKeys(fields) {
		path := append(append([]string{}, prefix...), name)
		dotted := strings.Join(path, ".")
		switch v := fields[name].(type) {
		case bool:
			if !v {
				continue
			}
			f, ok := s.Field(name)
			if !ok {
				return groupPathError(s.Entity, dotted, name)
			}
			spec.Keys = append(spec.Keys, GroupKey{Path: path, Field: f})
		case map[string]any:
			nested, ok := s.Relation(name)
			if !ok {
				return groupPathError(s.Entity, dotted, name)
			}
			if err := nested.decodeKeys(v, path, spec); err != nil {
				return err
			}
		default:
			return crudox.NewValidationErrorf(dotted, "grouping flag must be true or a nested map")
		}
	}
	return nil
}

func (s *GroupShape) decodeAggregate(in AggregateInput) (Aggregate, error) {
	if !in.Func.Valid() {
		return Aggregate{}, crudox.NewValidationErrorf(in.Field, "unknown aggregate function %q", in.Func)
	}
	path := strings.Split(in.Field, ".")
	ent := s.Entity
	for _, seg := range path[:len(path)-1] {
		rel, ok := ent.Relation(seg)
		if !ok || rel.ToMany() {
			return Aggregate{}, crudox.NewValidationErrorf(in.Field, "aggregate path must traverse to-one relations")
		}
		ent = rel.Target
	}
	f, ok := ent.Field(path[len(path)-1])
	if !ok {
		return Aggregate{}, crudox.NewValidationErrorf(in.Field, "unknown field %q on entity %s", path[len(path)-1], ent.Name)
	}
	switch in.Func {
	case AggSum, AggAvg:
		if !f.Type.Numeric() {
			return Aggregate{}, crudox.NewValidationErrorf(in.Field, "%s requires a numeric field, %s is %s", in.Func, f.Name, f.Type)
		}
	case AggMin, AggMax:
		if !f.Type.Comparable() {
			return Aggregate{}, crudox.NewValidationErrorf(in.Field, "%s requires an orderable field, %s is %s", in.Func, f.Name, f.Type)
		}
	}
	alias := in.Alias
	if alias == "" {
		alias = string(in.Func) + "_" + strings.Join(path, "_")
	}
	return Aggregate{Path: path, Field: f, Func: in.Func, Alias: alias}, nil
}

func groupPathError(ent *metadata.Entity, dotted, seg string) error {
	if rel, ok := ent.Relation(seg); ok && rel.ToMany() {
		return crudox.NewValidationErrorf(dotted, "cannot group by %s relation %q", rel.Kind, seg)
	}
	return crudox.NewValidationErrorf(dotted, "unknown groupable field %q on entity %s", seg, ent.Name)
}
