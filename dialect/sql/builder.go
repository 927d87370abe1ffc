// Package sql provides the SQL statement builders and the driver
// implementation used by the query translator and the CRUD service.
// Statements are assembled as trees of writers and rendered in one pass
// with dialect-aware identifier quoting and parameter placeholders.
// User input is never interpolated into the statement text.
package sql

import (
	"strconv"
	"strings"

	"github.com/crudox/crudox/dialect"
)

// Querier wraps the Query method, implemented by all statement builders.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// Builder is the base writer shared by all statement builders. It holds the
// statement text, the collected arguments and the placeholder counter, so a
// nested builder (a sub-query) continues the numbering of its parent.
type Builder struct {
	sb      strings.Builder
	dialect string
	args    []any
	total   int
}

// NewBuilder returns a fresh builder for the given dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: dialect}
}

// WriteString appends the string to the statement.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte appends the byte to the statement.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Pad appends a single space.
func (b *Builder) Pad() *Builder {
	return b.WriteByte(' ')
}

// Comma appends ", ".
func (b *Builder) Comma() *Builder {
	return b.WriteString(", ")
}

// Quote quotes the given identifier for the configured dialect.
func (b *Builder) Quote(ident string) string {
	quote := "`"
	if b.dialect == dialect.Postgres {
		quote = `"`
	}
	return quote + ident + quote
}

// Ident writes the given string as an identifier. Strings that were already
// quoted, qualified selections and function expressions pass through as-is.
func (b *Builder) Ident(s string) *Builder {
	switch {
	case s == "":
	case s == "*" || !b.isIdent(s):
		b.WriteString(s)
	case strings.ContainsRune(s, '.'):
		parts := strings.Split(s, ".")
		for i, p := range parts {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(b.Quote(p))
		}
	default:
		b.WriteString(b.Quote(s))
	}
	return b
}

// IdentComma writes the given identifiers separated by commas.
func (b *Builder) IdentComma(idents ...string) *Builder {
	for i, s := range idents {
		if i > 0 {
			b.Comma()
		}
		b.Ident(s)
	}
	return b
}

// isIdent reports if the string is a plain identifier that requires quoting.
// Pre-quoted references, expressions and function calls pass through as-is.
func (b *Builder) isIdent(s string) bool {
	return !strings.ContainsAny(s, "`\" (")
}

// Arg appends an argument to the statement and writes its placeholder.
func (b *Builder) Arg(v any) *Builder {
	b.total++
	b.args = append(b.args, v)
	if b.dialect == dialect.Postgres {
		b.WriteString("$" + strconv.Itoa(b.total))
	} else {
		b.WriteByte('?')
	}
	return b
}

// Args appends the given arguments separated by commas.
func (b *Builder) Args(vs ...any) *Builder {
	for i, v := range vs {
		if i > 0 {
			b.Comma()
		}
		b.Arg(v)
	}
	return b
}

// Nested writes the given function output wrapped in parentheses.
func (b *Builder) Nested(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	b.WriteByte(')')
	return b
}

// Join writes the given querier into the builder, merging its arguments and
// continuing the placeholder numbering.
func (b *Builder) Join(q Querier) *Builder {
	switch q := q.(type) {
	case writerTo:
		q.writeTo(b)
	default:
		query, args := q.Query()
		b.WriteString(query)
		b.args = append(b.args, args...)
		b.total += len(args)
	}
	return b
}

// Dialect returns the configured dialect.
func (b *Builder) Dialect() string {
	return b.dialect
}

// String returns the accumulated statement text.
func (b *Builder) String() string {
	return b.sb.String()
}

// writerTo is implemented by builders that can render themselves into a
// parent builder, sharing its argument list and placeholder counter.
type writerTo interface {
	writeTo(*Builder)
}

// DialectBuilder prefixes all root builders with the given dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a builder factory for the given dialect.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Select creates a Selector for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	s := Select(columns...)
	s.dialect = d.dialect
	return s
}

// Insert creates an InsertBuilder for the configured dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	i := Insert(table)
	i.dialect = d.dialect
	return i
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	u := Update(table)
	u.dialect = d.dialect
	return u
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	del := Delete(table)
	del.dialect = d.dialect
	return del
}

// SelectTable is a table selection with an optional alias.
type SelectTable struct {
	name string
	as   string
}

// Table returns a new table selection.
func Table(name string) *SelectTable {
	return &SelectTable{name: name}
}

// As adds an alias to the table selection.
func (t *SelectTable) As(alias string) *SelectTable {
	t.as = alias
	return t
}

// Name returns the table name.
func (t *SelectTable) Name() string {
	return t.name
}

// Alias returns the table alias, or the table name when no alias was set.
func (t *SelectTable) Alias() string {
	if t.as != "" {
		return t.as
	}
	return t.name
}

// C returns a qualified, unquoted column reference ("table.column"). The
// builder quotes each segment when the reference is written.
func (t *SelectTable) C(column string) string {
	return t.Alias() + "." + column
}

// join is a single JOIN clause attached to a Selector.
type join struct {
	kind  string
	table *SelectTable
	sub   *Selector
	subAs string
	on    *Predicate
}

// Selector is the builder for SELECT statements.
type Selector struct {
	dialect  string
	columns  []string
	from     *SelectTable
	fromSub  *Selector
	fromAs   string
	joins    []*join
	where    *Predicate
	groupBy  []string
	having   *Predicate
	order    []string
	limit    *int
	offset   *int
	distinct bool
}

// Select returns a new selector with the given selection.
func Select(columns ...string) *Selector {
	return &Selector{columns: columns}
}

// From sets the source table of the selection.
func (s *Selector) From(t *SelectTable) *Selector {
	s.from = t
	s.fromSub = nil
	return s
}

// FromSelect sets a sub-query as the source of the selection.
func (s *Selector) FromSelect(sub *Selector, alias string) *Selector {
	s.from = nil
	s.fromSub = sub
	s.fromAs = alias
	return s
}

// Table returns the source table of the selection.
func (s *Selector) Table() *SelectTable {
	return s.from
}

// C returns a column reference qualified by the source table.
func (s *Selector) C(column string) string {
	if s.from == nil {
		return column
	}
	return s.from.C(column)
}

// Select changes the column selection of the statement.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = columns
	return s
}

// AppendSelect appends additional columns to the selection.
func (s *Selector) AppendSelect(columns ...string) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// SelectedColumns returns the current column selection.
func (s *Selector) SelectedColumns() []string {
	return append([]string(nil), s.columns...)
}

// Distinct marks the selection as DISTINCT.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// Where appends a predicate to the statement. Multiple calls are combined
// with AND.
func (s *Selector) Where(p *Predicate) *Selector {
	if p == nil {
		return s
	}
	if s.where == nil {
		s.where = p
	} else {
		s.where = And(s.where, p)
	}
	return s
}

// P returns the current predicate of the statement.
func (s *Selector) P() *Predicate {
	return s.where
}

// Join appends an INNER JOIN to the statement.
func (s *Selector) Join(t *SelectTable) *Selector {
	return s.join("JOIN", t)
}

// LeftJoin appends a LEFT JOIN to the statement.
func (s *Selector) LeftJoin(t *SelectTable) *Selector {
	return s.join("LEFT JOIN", t)
}

func (s *Selector) join(kind string, t *SelectTable) *Selector {
	s.joins = append(s.joins, &join{kind: kind, table: t})
	return s
}

// On sets the join condition of the last join to c1 = c2.
func (s *Selector) On(c1, c2 string) *Selector {
	return s.OnP(ColumnsEQ(c1, c2))
}

// OnP sets the join condition of the last join to the given predicate.
func (s *Selector) OnP(p *Predicate) *Selector {
	if len(s.joins) > 0 {
		j := s.joins[len(s.joins)-1]
		if j.on == nil {
			j.on = p
		} else {
			j.on = And(j.on, p)
		}
	}
	return s
}

// JoinedTable returns the aliased table of an existing join on the given
// table name, if any. It allows join reuse across predicate branches.
func (s *Selector) JoinedTable(name string) (*SelectTable, bool) {
	for _, j := range s.joins {
		if j.table != nil && j.table.name == name {
			return j.table, true
		}
	}
	return nil, false
}

// JoinCount returns the number of joins in the statement. Used to derive
// unique join aliases.
func (s *Selector) JoinCount() int {
	return len(s.joins)
}

// GroupBy appends the given columns to the GROUP BY clause.
func (s *Selector) GroupBy(columns ...string) *Selector {
	s.groupBy = append(s.groupBy, columns...)
	return s
}

// Having sets the HAVING clause of the statement.
func (s *Selector) Having(p *Predicate) *Selector {
	s.having = p
	return s
}

// OrderBy appends the given order terms to the statement.
func (s *Selector) OrderBy(terms ...string) *Selector {
	s.order = append(s.order, terms...)
	return s
}

// ClearOrder drops the ORDER BY clause. Used when a selector is reused as a
// COUNT source.
func (s *Selector) ClearOrder() *Selector {
	s.order = nil
	return s
}

// Limit sets the LIMIT clause of the statement.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset sets the OFFSET clause of the statement.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// Clone returns a shallow-ish copy of the selector. Predicates are shared,
// clause slices are copied.
func (s *Selector) Clone() *Selector {
	if s == nil {
		return nil
	}
	c := *s
	c.columns = append([]string(nil), s.columns...)
	c.joins = append([]*join(nil), s.joins...)
	c.groupBy = append([]string(nil), s.groupBy...)
	c.order = append([]string(nil), s.order...)
	return &c
}

// Dialect returns the dialect of the selector.
func (s *Selector) Dialect() string {
	return s.dialect
}

// SetDialect sets the dialect of the selector.
func (s *Selector) SetDialect(name string) *Selector {
	s.dialect = name
	return s
}

// Query returns the statement text and its arguments.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.writeTo(b)
	return b.String(), b.args
}

func (s *Selector) writeTo(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteByte('*')
	} else {
		b.IdentComma(s.columns...)
	}
	b.WriteString(" FROM ")
	switch {
	case s.from != nil:
		b.Ident(s.from.name)
		if s.from.as != "" {
			b.WriteString(" AS ")
			b.Ident(s.from.as)
		}
	case s.fromSub != nil:
		sub := s.fromSub.Clone()
		sub.dialect = b.dialect
		b.Nested(func(b *Builder) {
			sub.writeTo(b)
		})
		if s.fromAs != "" {
			b.WriteString(" AS ")
			b.Ident(s.fromAs)
		}
	}
	for _, j := range s.joins {
		b.Pad().WriteString(j.kind).Pad()
		b.Ident(j.table.name)
		if j.table.as != "" {
			b.WriteString(" AS ")
			b.Ident(j.table.as)
		}
		if j.on != nil {
			b.WriteString(" ON ")
			j.on.writeTo(b)
		}
	}
	if s.where != nil {
		b.WriteString(" WHERE ")
		s.where.writeTo(b)
	}
	if len(s.groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.IdentComma(s.groupBy...)
	}
	if s.having != nil {
		b.WriteString(" HAVING ")
		s.having.writeTo(b)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.order {
			if i > 0 {
				b.Comma()
			}
			switch {
			case strings.HasSuffix(o, " ASC"):
				b.Ident(strings.TrimSuffix(o, " ASC")).WriteString(" ASC")
			case strings.HasSuffix(o, " DESC"):
				b.Ident(strings.TrimSuffix(o, " DESC")).WriteString(" DESC")
			default:
				b.Ident(o)
			}
		}
	}
	if s.limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*s.limit))
	}
	if s.offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(*s.offset))
	}
}

// Asc returns an ascending order term for the given column.
func Asc(column string) string {
	return column + " ASC"
}

// Desc returns a descending order term for the given column.
func Desc(column string) string {
	return column + " DESC"
}

// Count wraps the column with a COUNT aggregation function.
func Count(column string) string {
	return "COUNT(" + column + ")"
}

// Sum wraps the column with a SUM aggregation function.
func Sum(column string) string {
	return "SUM(" + column + ")"
}

// Avg wraps the column with an AVG aggregation function.
func Avg(column string) string {
	return "AVG(" + column + ")"
}

// Min wraps the column with a MIN aggregation function.
func Min(column string) string {
	return "MIN(" + column + ")"
}

// Max wraps the column with a MAX aggregation function.
func Max(column string) string {
	return "MAX(" + column + ")"
}

// As returns an aliased selection expression.
func As(expr, alias string) string {
	return expr + " AS " + alias
}

// InsertBuilder is the builder for INSERT statements.
type InsertBuilder struct {
	dialect   string
	table     string
	columns   []string
	values    [][]any
	returning []string
}

// Insert returns a new insert builder for the given table.
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// Columns sets the column list of the statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = columns
	return i
}

// Values appends one row of values to the statement.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Returning adds a RETURNING clause (PostgreSQL).
func (i *InsertBuilder) Returning(columns ...string) *InsertBuilder {
	i.returning = columns
	return i
}

// Query returns the statement text and its arguments.
func (i *InsertBuilder) Query() (string, []any) {
	b := NewBuilder(i.dialect)
	b.WriteString("INSERT INTO ")
	b.Ident(i.table)
	b.WriteString(" (")
	b.IdentComma(i.columns...)
	b.WriteString(") VALUES ")
	for j, row := range i.values {
		if j > 0 {
			b.Comma()
		}
		b.Nested(func(b *Builder) {
			b.Args(row...)
		})
	}
	if len(i.returning) > 0 && i.dialect == dialect.Postgres {
		b.WriteString(" RETURNING ")
		b.IdentComma(i.returning...)
	}
	return b.String(), b.args
}

// UpdateBuilder is the builder for UPDATE statements.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   *Predicate
}

// Update returns a new update builder for the given table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set assigns a value to the given column.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// SetNull assigns NULL to the given column.
func (u *UpdateBuilder) SetNull(column string) *UpdateBuilder {
	return u.Set(column, nil)
}

// Where appends a predicate to the statement.
func (u *UpdateBuilder) Where(p *Predicate) *UpdateBuilder {
	if u.where == nil {
		u.where = p
	} else {
		u.where = And(u.where, p)
	}
	return u
}

// Empty reports whether the statement has no assignments.
func (u *UpdateBuilder) Empty() bool {
	return len(u.columns) == 0
}

// Query returns the statement text and its arguments.
func (u *UpdateBuilder) Query() (string, []any) {
	b := NewBuilder(u.dialect)
	b.WriteString("UPDATE ")
	b.Ident(u.table)
	b.WriteString(" SET ")
	for j, c := range u.columns {
		if j > 0 {
			b.Comma()
		}
		b.Ident(c)
		b.WriteString(" = ")
		if u.values[j] == nil {
			b.WriteString("NULL")
		} else {
			b.Arg(u.values[j])
		}
	}
	if u.where != nil {
		b.WriteString(" WHERE ")
		u.where.writeTo(b)
	}
	return b.String(), b.args
}

// DeleteBuilder is the builder for DELETE statements.
type DeleteBuilder struct {
	dialect string
	table   string
	where   *Predicate
}

// Delete returns a new delete builder for the given table.
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// Where appends a predicate to the statement.
func (d *DeleteBuilder) Where(p *Predicate) *DeleteBuilder {
	if d.where == nil {
		d.where = p
	} else {
		d.where = And(d.where, p)
	}
	return d
}

// Query returns the statement text and its arguments.
func (d *DeleteBuilder) Query() (string, []any) {
	b := NewBuilder(d.dialect)
	b.WriteString("DELETE FROM ")
	b.Ident(d.table)
	if d.where != nil {
		b.WriteString(" WHERE ")
		d.where.writeTo(b)
	}
	return b.String(), b.args
}

// Raw returns a raw SQL query wrapper that implements Querier.
func Raw(query string, args ...any) Querier {
	return rawQuery{query: query, args: args}
}

type rawQuery struct {
	query string
	args  []any
}

func (r rawQuery) Query() (string, []any) {
	return r.query, r.args
}
