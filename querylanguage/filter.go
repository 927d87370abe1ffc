package querylanguage

import (
	"fmt"
	"strings"
)

// A Filter is one node of a filter expression. Exactly one of the four
// branches is normally populated; when several are, they combine with AND.
// Sibling entries inside Predicates and Relations also combine with AND.
type Filter struct {
	And        []*Filter
	Or         []*Filter
	Predicates []*FieldPredicate
	Relations  []*RelationFilter
}

// A FieldPredicate applies one operator to one scalar field.
type FieldPredicate struct {
	Field string
	Op    Op
	Value any
}

// A RelationFilter scopes a nested filter to a related entity. For to-many
// relations the translator renders it as a correlated existence sub-query,
// so each RelationFilter node stands alone even when several target the
// same relation.
type RelationFilter struct {
	Relation string
	Filter   *Filter
}

// And returns a filter matching rows that satisfy all children.
func And(children ...*Filter) *Filter {
	return &Filter{And: children}
}

// Or returns a filter matching rows that satisfy any child.
func Or(children ...*Filter) *Filter {
	return &Filter{Or: children}
}

// Pred returns a single-predicate filter.
func Pred(field string, op Op, value any) *Filter {
	return &Filter{Predicates: []*FieldPredicate{{Field: field, Op: op, Value: value}}}
}

// Rel returns a filter scoping child to the named relation.
func Rel(relation string, child *Filter) *Filter {
	return &Filter{Relations: []*RelationFilter{{Relation: relation, Filter: child}}}
}

// Empty reports whether the filter constrains nothing.
func (f *Filter) Empty() bool {
	return f == nil ||
		len(f.And) == 0 && len(f.Or) == 0 && len(f.Predicates) == 0 && len(f.Relations) == 0
}

// String returns a readable form of the filter, for logs and error messages.
func (f *Filter) String() string {
	if f.Empty() {
		return "true"
	}
	var parts []string
	for _, p := range f.Predicates {
		parts = append(parts, fmt.Sprintf("%s %s %v", p.Field, p.Op, p.Value))
	}
	for _, r := range f.Relations {
		parts = append(parts, fmt.Sprintf("%s(%s)", r.Relation, r.Filter))
	}
	for _, c := range f.And {
		parts = append(parts, c.String())
	}
	if len(f.Or) > 0 {
		ors := make([]string, len(f.Or))
		for i, c := range f.Or {
			ors[i] = c.String()
		}
		parts = append(parts, "("+strings.Join(ors, " || ")+")")
	}
	return strings.Join(parts, " && ")
}
