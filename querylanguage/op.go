// Package querylanguage defines the declarative query surface: filter
// expressions, order and group specifications, and the per-entity shapes
// that say which fields and operators a caller may use. Shapes are built
// once from resolved metadata; decoding validates caller input against them
// and produces typed trees for the translator in dialect/sql/sqlgraph.
package querylanguage

import (
	"github.com/crudox/crudox/schema/field"
)

// An Op is a filter operator usable inside an operator bag.
type Op string

// Filter operators. The serialized form is the JSON key callers write.
const (
	OpEQ           Op = "eq"
	OpNEQ          Op = "neq"
	OpGT           Op = "gt"
	OpGTE          Op = "gte"
	OpLT           Op = "lt"
	OpLTE          Op = "lte"
	OpIn           Op = "in"
	OpNotIn        Op = "notIn"
	OpContains     Op = "contains"
	OpContainsFold Op = "containsFold"
	OpStartsWith   Op = "startsWith"
	OpEndsWith     Op = "endsWith"
	OpIsNull       Op = "isNull"
	OpBetween      Op = "between"
)

// baseOps apply to every scalar type.
var baseOps = []Op{OpEQ, OpNEQ, OpIn, OpNotIn, OpIsNull}

// rangeOps apply to types with an ordering.
var rangeOps = []Op{OpGT, OpGTE, OpLT, OpLTE, OpBetween}

// textOps apply to textual types.
var textOps = []Op{OpContains, OpContainsFold, OpStartsWith, OpEndsWith}

// OpsFor returns the operators permitted on a field of the given type, in a
// stable order.
func OpsFor(t field.Type) []Op {
	ops := make([]Op, 0, len(baseOps)+len(rangeOps)+len(textOps))
	ops = append(ops, baseOps...)
	if t.Comparable() {
		ops = append(ops, rangeOps...)
	}
	if t.Textual() {
		ops = append(ops, textOps...)
	}
	return ops
}
