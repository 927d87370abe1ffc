package querylanguage

import (
	"bytes"
	"encoding/json"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/metadata"
)

// Reserved keys of a filter object. Everything else must name a field or
// relation of the entity shape.
const (
	keyAnd = "_and"
	keyOr  = "_or"
)

// Decode validates a raw filter object against the shape and returns the
// typed filter tree. A field key maps either to an operator bag or, as a
// shorthand, to a bare value meaning equality. A relation key maps to a
// nested filter object. Keys are processed in sorted order so the produced
// tree, and the SQL compiled from it, is deterministic.
func (s *WhereShape) Decode(raw map[string]any) (*Filter, error) {
	if len(raw) == 0 {
		return &Filter{}, nil
	}
	f := &Filter{}
	for _, key := range sortedKeys(raw) {
		val := raw[key]
		switch key {
		case keyAnd, keyOr:
			children, err := s.decodeList(key, val)
			if err != nil {
				return nil, err
			}
			if key == keyAnd {
				f.And = append(f.And, children...)
			} else {
				f.Or = append(f.Or, children...)
			}
		default:
			if fs, ok := s.Field(key); ok {
				preds, err := decodeOperatorBag(fs, val)
				if err != nil {
					return nil, err
				}
				f.Predicates = append(f.Predicates, preds...)
				continue
			}
			if nested, ok := s.Relation(key); ok {
				obj, ok := val.(map[string]any)
				if !ok {
					return nil, crudox.NewValidationErrorf(key, "relation filter must be an object")
				}
				child, err := nested.Decode(obj)
				if err != nil {
					return nil, err
				}
				f.Relations = append(f.Relations, &RelationFilter{Relation: key, Filter: child})
				continue
			}
			return nil, crudox.NewValidationErrorf(key, "unknown filterable field on entity %s", s.Entity.Name)
		}
	}
	return f, nil
}

// DecodeJSON decodes a JSON filter document.
func (s *WhereShape) DecodeJSON(data []byte) (*Filter, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, crudox.NewValidationError("where", err)
	}
	return s.Decode(raw)
}

func (s *WhereShape) decodeList(key string, val any) ([]*Filter, error) {
	list, ok := val.([]any)
	if !ok {
		return nil, crudox.NewValidationErrorf(key, "expected an array of filter objects")
	}
	children := make([]*Filter, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, crudox.NewValidationErrorf(key, "expected an array of filter objects")
		}
		child, err := s.Decode(obj)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

func decodeOperatorBag(fs *FieldShape, val any) ([]*FieldPredicate, error) {
	name := fs.Field.Name
	bag, ok := val.(map[string]any)
	if !ok {
		// Bare value shorthand for equality.
		return []*FieldPredicate{{Field: name, Op: OpEQ, Value: val}}, nil
	}
	preds := make([]*FieldPredicate, 0, len(bag))
	for _, k := range sortedKeys(bag) {
		op := Op(k)
		if !fs.Allows(op) {
			return nil, crudox.NewValidationErrorf(name, "operator %q is not allowed on a %s field", k, fs.Field.Type)
		}
		v := bag[k]
		switch op {
		case OpIsNull:
			if _, ok := v.(bool); !ok {
				return nil, crudox.NewValidationErrorf(name, "isNull expects a boolean")
			}
		case OpIn, OpNotIn:
			if _, ok := v.([]any); !ok {
				return nil, crudox.NewValidationErrorf(name, "%s expects an array", op)
			}
		case OpBetween:
			bounds, ok := v.([]any)
			if !ok || len(bounds) != 2 {
				return nil, crudox.NewValidationErrorf(name, "between expects an array of two bounds")
			}
		}
		preds = append(preds, &FieldPredicate{Field: name, Op: op, Value: v})
	}
	return preds, nil
}

// Schema bundles the three generated shapes of one entity. It is the unit
// the composition layer builds per resource and the HTTP/GraphQL surfaces
// decode against.
type Schema struct {
	Entity *metadata.Entity
	Where  *WhereShape
	Order  *OrderShape
	Group  *GroupShape
}

// NewSchema builds the default shapes of the entity. Use the shape
// constructors directly for custom inclusion maps.
func NewSchema(ent *metadata.Entity) (*Schema, error) {
	return NewSchemaWith(ent, nil, nil, nil)
}

// NewSchemaWith builds the shapes of the entity with per-shape inclusion
// maps.
func NewSchemaWith(ent *metadata.Entity, where, order, group Include) (*Schema, error) {
	w, err := NewWhereShape(ent, where)
	if err != nil {
		return nil, err
	}
	o, err := NewOrderShape(ent, order)
	if err != nil {
		return nil, err
	}
	g, err := NewGroupShape(ent, group)
	if err != nil {
		return nil, err
	}
	return &Schema{Entity: ent, Where: w, Order: o, Group: g}, nil
}

// QueryInput is the serialized query envelope.
type QueryInput struct {
	Where      map[string]any `json:"where,omitempty"`
	OrderBy    []OrderInput   `json:"orderBy,omitempty"`
	GroupBy    *GroupInput    `json:"groupBy,omitempty"`
	Pagination Pagination     `json:"pagination,omitempty"`
}

// Query is a fully validated query.
type Query struct {
	Where *Filter
	Order []OrderTerm
	Group *GroupSpec
	Page  Pagination
}

// DecodeQuery validates a query envelope against the schema.
func (s *Schema) DecodeQuery(in QueryInput) (*Query, error) {
	q := &Query{Page: in.Pagination.Normalize()}
	var err error
	if q.Where, err = s.Where.Decode(in.Where); err != nil {
		return nil, err
	}
	if q.Order, err = s.Order.DecodeOrder(in.OrderBy); err != nil {
		return nil, err
	}
	if in.GroupBy != nil {
		if q.Group, err = s.Group.DecodeGroup(*in.GroupBy); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// DecodeQueryJSON decodes and validates a JSON query envelope. Unknown
// top-level keys are rejected; only where, orderBy, groupBy, and
// pagination are reserved.
func (s *Schema) DecodeQueryJSON(data []byte) (*Query, error) {
	var in QueryInput
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return nil, crudox.NewValidationError("query", err)
	}
	return s.DecodeQuery(in)
}
