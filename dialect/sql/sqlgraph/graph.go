// Package sqlgraph compiles validated query trees into SQL. A Translator
// binds one entity to one selector and appends WHERE, ORDER BY and GROUP BY
// clauses from querylanguage values, walking relations through the resolved
// metadata.
//
// Filters on multiplicative relations never join into the main query: a
// one-to-many filter becomes a correlated EXISTS sub-query and a
// many-to-many filter an IN over the join table, so each root row appears
// at most once no matter how many related rows match. To-one relations are
// reached through LEFT JOINs whose aliases are reused across the where,
// order and group clauses of one query.
package sqlgraph

import (
	"strconv"
	"strings"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/querylanguage"
	"github.com/crudox/crudox/schema/relation"
)

// Translator compiles query trees onto a single selector. It is not safe
// for concurrent use; build one per query.
type Translator struct {
	ent     *metadata.Entity
	s       *sql.Selector
	root    *scope
	aliases int
}

// A scope is one entity context during translation: the qualifier its
// columns take, the selector its to-one joins land on, and the join aliases
// already allocated there.
type scope struct {
	ent   *metadata.Entity
	table string
	path  string
	sel   *sql.Selector
	joins map[string]string
}

func (sc *scope) col(column string) string {
	return sc.table + "." + column
}

// NewTranslator returns a translator for the entity bound to the selector.
// The selector is expected to select from the entity's table.
func NewTranslator(ent *metadata.Entity, s *sql.Selector) *Translator {
	t := &Translator{ent: ent, s: s}
	t.root = &scope{ent: ent, table: ent.Table, sel: s, joins: make(map[string]string)}
	return t
}

// WhereP compiles the filter and appends it to the selector's WHERE clause.
func (t *Translator) WhereP(f *querylanguage.Filter) error {
	p, err := t.pred(t.root, f)
	if err != nil {
		return err
	}
	if p != nil {
		t.s.Where(p)
	}
	return nil
}

// OrderP appends the order terms to the selector. Paths traverse to-one
// relations through shared join aliases; a path through a multiplicative
// relation is rejected.
func (t *Translator) OrderP(terms []querylanguage.OrderTerm) error {
	for _, term := range terms {
		sc, err := t.descend(t.root, term.Path[:len(term.Path)-1])
		if err != nil {
			return err
		}
		f, ok := sc.ent.Field(term.Field())
		if !ok {
			return crudox.NewValidationErrorf(term.String(), "unknown field %q on entity %s", term.Field(), sc.ent.Name)
		}
		col := sc.col(f.Column)
		if term.Direction == querylanguage.Desc {
			t.s.OrderBy(sql.Desc(col))
		} else {
			t.s.OrderBy(sql.Asc(col))
		}
	}
	return nil
}

// A GroupQuery is a compiled grouping request. Rows yields one row per
// group holding the key columns and aggregate columns under their aliases;
// Count yields the number of distinct groups, which is what pagination of
// a grouped result reports as total.
type GroupQuery struct {
	Rows       *sql.Selector
	Count      *sql.Selector
	Keys       []string
	Aggregates []string
}

// GroupP turns the selector into a grouped query. Call it after WhereP so
// both the grouped rows and the group count see the same filtered row set.
func (t *Translator) GroupP(spec *querylanguage.GroupSpec) (*GroupQuery, error) {
	gq := &GroupQuery{}
	var selects, groupCols []string
	for _, k := range spec.Keys {
		sc, err := t.descend(t.root, k.Path[:len(k.Path)-1])
		if err != nil {
			return nil, err
		}
		col := sc.col(k.Field.Column)
		alias := strings.Join(k.Path, "_")
		selects = append(selects, sql.As(t.quote(col), t.quote(alias)))
		groupCols = append(groupCols, col)
		gq.Keys = append(gq.Keys, alias)
	}
	// The group count runs over the keys alone; aggregate expressions
	// cannot change the number of distinct keys.
	keysOnly := t.s.Clone().Select(groupCols...).GroupBy(groupCols...)
	gq.Count = sql.Dialect(t.s.Dialect()).
		Select(sql.Count("*")).
		FromSelect(keysOnly, "grp")
	for _, a := range spec.Aggregates {
		sc, err := t.descend(t.root, a.Path[:len(a.Path)-1])
		if err != nil {
			return nil, err
		}
		col := t.quote(sc.col(a.Field.Column))
		var expr string
		switch a.Func {
		case querylanguage.AggCount:
			expr = sql.Count(col)
		case querylanguage.AggSum:
			expr = sql.Sum(col)
		case querylanguage.AggAvg:
			expr = sql.Avg(col)
		case querylanguage.AggMin:
			expr = sql.Min(col)
		case querylanguage.AggMax:
			expr = sql.Max(col)
		default:
			return nil, crudox.NewValidationErrorf(a.Alias, "unknown aggregate function %q", a.Func)
		}
		selects = append(selects, sql.As(expr, t.quote(a.Alias)))
		gq.Aggregates = append(gq.Aggregates, a.Alias)
	}
	gq.Rows = t.s.Select(selects...).GroupBy(groupCols...)
	return gq, nil
}

// pred compiles one filter node. Sibling predicates, relation filters and
// _and children combine with AND; _or children with OR. An empty node
// yields nil.
func (t *Translator) pred(sc *scope, f *querylanguage.Filter) (*sql.Predicate, error) {
	if f.Empty() {
		return nil, nil
	}
	var parts []*sql.Predicate
	for _, fp := range f.Predicates {
		p, err := t.fieldPred(sc, fp)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	for _, rf := range f.Relations {
		p, err := t.relationPred(sc, rf)
		if err != nil {
			return nil, err
		}
		if p != nil {
			parts = append(parts, p)
		}
	}
	for _, child := range f.And {
		p, err := t.pred(sc, child)
		if err != nil {
			return nil, err
		}
		if p != nil {
			parts = append(parts, p)
		}
	}
	if len(f.Or) > 0 {
		var ors []*sql.Predicate
		for _, child := range f.Or {
			p, err := t.pred(sc, child)
			if err != nil {
				return nil, err
			}
			if p != nil {
				ors = append(ors, p)
			}
		}
		switch len(ors) {
		case 0:
		case 1:
			parts = append(parts, ors[0])
		default:
			parts = append(parts, sql.Or(ors...))
		}
	}
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return parts[0], nil
	default:
		return sql.And(parts...), nil
	}
}

func (t *Translator) fieldPred(sc *scope, fp *querylanguage.FieldPredicate) (*sql.Predicate, error) {
	f, ok := sc.ent.Field(fp.Field)
	if !ok {
		return nil, crudox.NewValidationErrorf(fp.Field, "unknown field on entity %s", sc.ent.Name)
	}
	col := sc.col(f.Column)
	switch fp.Op {
	case querylanguage.OpEQ:
		return sql.EQ(col, fp.Value), nil
	case querylanguage.OpNEQ:
		return sql.NEQ(col, fp.Value), nil
	case querylanguage.OpGT:
		return sql.GT(col, fp.Value), nil
	case querylanguage.OpGTE:
		return sql.GTE(col, fp.Value), nil
	case querylanguage.OpLT:
		return sql.LT(col, fp.Value), nil
	case querylanguage.OpLTE:
		return sql.LTE(col, fp.Value), nil
	case querylanguage.OpIn, querylanguage.OpNotIn:
		vs, ok := fp.Value.([]any)
		if !ok {
			return nil, crudox.NewValidationErrorf(fp.Field, "%s expects an array", fp.Op)
		}
		if fp.Op == querylanguage.OpIn {
			return sql.In(col, vs...), nil
		}
		return sql.NotIn(col, vs...), nil
	case querylanguage.OpContains, querylanguage.OpContainsFold,
		querylanguage.OpStartsWith, querylanguage.OpEndsWith:
		v, ok := fp.Value.(string)
		if !ok {
			return nil, crudox.NewValidationErrorf(fp.Field, "%s expects a string", fp.Op)
		}
		switch fp.Op {
		case querylanguage.OpContains:
			return sql.Contains(col, v), nil
		case querylanguage.OpContainsFold:
			return sql.ContainsFold(col, v), nil
		case querylanguage.OpStartsWith:
			return sql.HasPrefix(col, v), nil
		default:
			return sql.HasSuffix(col, v), nil
		}
	case querylanguage.OpIsNull:
		if isNull, _ := fp.Value.(bool); isNull {
			return sql.IsNull(col), nil
		}
		return sql.NotNull(col), nil
	case querylanguage.OpBetween:
		bounds, ok := fp.Value.([]any)
		if !ok || len(bounds) != 2 {
			return nil, crudox.NewValidationErrorf(fp.Field, "between expects an array of two bounds")
		}
		return sql.And(sql.GTE(col, bounds[0]), sql.LTE(col, bounds[1])), nil
	default:
		return nil, crudox.NewValidationErrorf(fp.Field, "unknown operator %q", fp.Op)
	}
}

// relationPred compiles one relation filter. Every relation filter node
// compiles independently: two filters on the same one-to-many relation
// yield two EXISTS sub-queries, each free to match a different related row.
func (t *Translator) relationPred(sc *scope, rf *querylanguage.RelationFilter) (*sql.Predicate, error) {
	rel, ok := sc.ent.Relation(rf.Relation)
	if !ok {
		return nil, crudox.NewValidationErrorf(rf.Relation, "unknown relation on entity %s", sc.ent.Name)
	}
	switch rel.Kind {
	case relation.O2O, relation.M2O:
		return t.toOnePred(sc, rel, rf.Filter)
	case relation.O2M:
		return t.existsPred(sc, rel, rf.Filter)
	default:
		return t.inJoinPred(sc, rel, rf.Filter)
	}
}

// toOnePred joins the target table and compiles the nested filter against
// the join alias. An empty nested filter degenerates to a foreign key
// presence check.
func (t *Translator) toOnePred(sc *scope, rel *metadata.Relation, f *querylanguage.Filter) (*sql.Predicate, error) {
	if f.Empty() {
		return sql.NotNull(sc.col(rel.FKColumn)), nil
	}
	nested, err := t.join(sc, rel)
	if err != nil {
		return nil, err
	}
	return t.pred(nested, f)
}

// existsPred compiles a one-to-many filter into a correlated existence
// sub-query, so a parent with several matching children still yields a
// single row.
func (t *Translator) existsPred(sc *scope, rel *metadata.Relation, f *querylanguage.Filter) (*sql.Predicate, error) {
	child := rel.Target
	tbl := sql.Table(child.Table)
	sub := sql.Select(tbl.C(rel.FKColumn)).From(tbl)
	sub.Where(sql.ColumnsEQ(sc.col(sc.ent.PrimaryKey().Column), tbl.C(rel.FKColumn)))
	nested, err := t.pred(t.subScope(child, sub), f)
	if err != nil {
		return nil, err
	}
	sub.Where(nested)
	return sql.Exists(sub), nil
}

// inJoinPred compiles a many-to-many filter into an IN over the join
// table, joining the target table only when the nested filter needs its
// columns.
func (t *Translator) inJoinPred(sc *scope, rel *metadata.Relation, f *querylanguage.Filter) (*sql.Predicate, error) {
	jt := sql.Table(rel.JoinTable)
	sub := sql.Select(jt.C(rel.OwnColumn)).From(jt)
	if !f.Empty() {
		t.aliases++
		alias := "t" + strconv.Itoa(t.aliases)
		target := sql.Table(rel.Target.Table).As(alias)
		sub.Join(target).On(jt.C(rel.RefColumn), alias+"."+rel.Target.PrimaryKey().Column)
		nested, err := t.pred(&scope{
			ent:   rel.Target,
			table: alias,
			sel:   sub,
			joins: make(map[string]string),
		}, f)
		if err != nil {
			return nil, err
		}
		sub.Where(nested)
	}
	return sql.InQuery(sc.col(sc.ent.PrimaryKey().Column), sub), nil
}

// join returns the scope of a to-one relation target, adding a LEFT JOIN
// the first time the relation path is traversed and reusing its alias
// afterwards.
func (t *Translator) join(sc *scope, rel *metadata.Relation) (*scope, error) {
	key := sc.path + "." + rel.Name
	if alias, ok := sc.joins[key]; ok {
		return &scope{ent: rel.Target, table: alias, path: key, sel: sc.sel, joins: sc.joins}, nil
	}
	t.aliases++
	alias := "t" + strconv.Itoa(t.aliases)
	tbl := sql.Table(rel.Target.Table).As(alias)
	sc.sel.LeftJoin(tbl).On(sc.col(rel.FKColumn), alias+"."+rel.Target.PrimaryKey().Column)
	sc.joins[key] = alias
	return &scope{ent: rel.Target, table: alias, path: key, sel: sc.sel, joins: sc.joins}, nil
}

// descend resolves a path of to-one relation names from the given scope.
func (t *Translator) descend(sc *scope, path []string) (*scope, error) {
	for _, seg := range path {
		rel, ok := sc.ent.Relation(seg)
		if !ok {
			return nil, crudox.NewValidationErrorf(seg, "unknown relation on entity %s", sc.ent.Name)
		}
		if rel.ToMany() {
			return nil, crudox.NewValidationErrorf(seg, "cannot traverse %s relation %q here", rel.Kind, seg)
		}
		next, err := t.join(sc, rel)
		if err != nil {
			return nil, err
		}
		sc = next
	}
	return sc, nil
}

// subScope starts a fresh scope for a sub-query selector.
func (t *Translator) subScope(ent *metadata.Entity, sel *sql.Selector) *scope {
	return &scope{ent: ent, table: ent.Table, sel: sel, joins: make(map[string]string)}
}

// quote pre-quotes a possibly qualified identifier for use inside raw
// select expressions, which pass through the builder untouched.
func (t *Translator) quote(ident string) string {
	b := sql.NewBuilder(t.s.Dialect())
	b.Ident(ident)
	return b.String()
}
