package sql

import "strings"

// Predicate is a where-clause predicate. Predicates compose with And, Or and
// Not; grouping is made explicit with parentheses whenever a composite
// predicate is nested, never relying on the precedence rules of the target
// SQL dialect.
type Predicate struct {
	depth int
	fns   []func(*Builder)
}

// P returns a new predicate from the given writer functions.
func P(fns ...func(*Builder)) *Predicate {
	return &Predicate{fns: fns}
}

// Append appends a writer function to the predicate.
func (p *Predicate) Append(f func(*Builder)) *Predicate {
	p.fns = append(p.fns, f)
	return p
}

// Query returns the predicate text and its arguments, rendered without a
// dialect (backtick quoting, ? placeholders).
func (p *Predicate) Query() (string, []any) {
	b := NewBuilder("")
	p.writeTo(b)
	return b.String(), b.args
}

func (p *Predicate) writeTo(b *Builder) {
	for i, f := range p.fns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		f(b)
	}
}

// mayWrap writes the given predicates joined by op, wrapping the sequence in
// parentheses when it appears nested inside another composite predicate.
func (p *Predicate) mayWrap(preds []*Predicate, b *Builder, op string) {
	switch n := len(preds); {
	case n == 1:
		preds[0].writeTo(b)
		return
	case n > 1 && p.depth != 0:
		b.WriteByte('(')
		defer b.WriteByte(')')
	}
	for i := range preds {
		preds[i].depth = p.depth + 1
		if i > 0 {
			b.Pad().WriteString(op).Pad()
		}
		if len(preds[i].fns) > 1 {
			b.Nested(func(b *Builder) {
				preds[i].writeTo(b)
			})
		} else {
			preds[i].writeTo(b)
		}
	}
}

// And combines the given predicates with the AND connective.
func And(preds ...*Predicate) *Predicate {
	p := P()
	return p.Append(func(b *Builder) {
		p.mayWrap(preds, b, "AND")
	})
}

// Or combines the given predicates with the OR connective.
func Or(preds ...*Predicate) *Predicate {
	p := P()
	return p.Append(func(b *Builder) {
		p.mayWrap(preds, b, "OR")
	})
}

// Not negates the given predicate.
func Not(pred *Predicate) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT ")
		b.Nested(func(b *Builder) {
			pred.writeTo(b)
		})
	})
}

// False returns a predicate that is always false.
func False() *Predicate {
	return P(func(b *Builder) {
		b.WriteString("FALSE")
	})
}

// EQ returns a column = value predicate. A boolean constant collapses to the
// bare column reference.
func EQ(col string, v any) *Predicate {
	return P(func(b *Builder) {
		switch v {
		case true:
			b.Ident(col)
		case false:
			b.WriteString("NOT ").Ident(col)
		default:
			b.Ident(col).WriteString(" = ").Arg(v)
		}
	})
}

// NEQ returns a column <> value predicate.
func NEQ(col string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" <> ").Arg(v)
	})
}

// GT returns a column > value predicate.
func GT(col string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" > ").Arg(v)
	})
}

// GTE returns a column >= value predicate.
func GTE(col string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" >= ").Arg(v)
	})
}

// LT returns a column < value predicate.
func LT(col string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" < ").Arg(v)
	})
}

// LTE returns a column <= value predicate.
func LTE(col string, v any) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" <= ").Arg(v)
	})
}

// In returns a column IN (...) predicate. An empty value list renders FALSE,
// matching no rows.
func In(col string, vs ...any) *Predicate {
	if len(vs) == 0 {
		return False()
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IN ")
		b.Nested(func(b *Builder) {
			b.Args(vs...)
		})
	})
}

// NotIn returns a column NOT IN (...) predicate. An empty value list matches
// every row.
func NotIn(col string, vs ...any) *Predicate {
	if len(vs) == 0 {
		return P(func(b *Builder) {
			b.WriteString("TRUE")
		})
	}
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" NOT IN ")
		b.Nested(func(b *Builder) {
			b.Args(vs...)
		})
	})
}

// IsNull returns a column IS NULL predicate.
func IsNull(col string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IS NULL")
	})
}

// NotNull returns a column IS NOT NULL predicate.
func NotNull(col string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IS NOT NULL")
	})
}

// Like returns a column LIKE pattern predicate. The pattern is passed as a
// bound argument.
func Like(col, pattern string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" LIKE ").Arg(pattern)
	})
}

// Contains returns a substring-match predicate.
func Contains(col, sub string) *Predicate {
	return Like(col, "%"+sub+"%")
}

// HasPrefix returns a prefix-match predicate.
func HasPrefix(col, prefix string) *Predicate {
	return Like(col, prefix+"%")
}

// HasSuffix returns a suffix-match predicate.
func HasSuffix(col, suffix string) *Predicate {
	return Like(col, "%"+suffix)
}

// ContainsFold returns a case-insensitive substring-match predicate.
func ContainsFold(col, sub string) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("LOWER(").Ident(col).WriteString(") LIKE ")
		b.Arg("%" + strings.ToLower(sub) + "%")
	})
}

// EqualFold returns a case-insensitive equality predicate.
func EqualFold(col, v string) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("LOWER(").Ident(col).WriteString(") = ").Arg(strings.ToLower(v))
	})
}

// ColumnsEQ returns a column = column predicate, typically a join condition
// or a correlated sub-query link.
func ColumnsEQ(c1, c2 string) *Predicate {
	return P(func(b *Builder) {
		b.Ident(c1).WriteString(" = ").Ident(c2)
	})
}

// InQuery returns a column IN (sub-query) predicate. The sub-query shares
// the outer builder, so its placeholders continue the outer numbering.
func InQuery(col string, query *Selector) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" IN ")
		sub := query.Clone()
		sub.dialect = b.dialect
		b.Nested(func(b *Builder) {
			sub.writeTo(b)
		})
	})
}

// NotInQuery returns a column NOT IN (sub-query) predicate.
func NotInQuery(col string, query *Selector) *Predicate {
	return P(func(b *Builder) {
		b.Ident(col).WriteString(" NOT IN ")
		sub := query.Clone()
		sub.dialect = b.dialect
		b.Nested(func(b *Builder) {
			sub.writeTo(b)
		})
	})
}

// Exists returns an EXISTS (sub-query) predicate. The sub-query shares the
// outer builder, so its placeholders continue the outer numbering.
func Exists(query *Selector) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("EXISTS ")
		sub := query.Clone()
		sub.dialect = b.dialect
		b.Nested(func(b *Builder) {
			sub.writeTo(b)
		})
	})
}

// NotExists returns a NOT EXISTS (sub-query) predicate.
func NotExists(query *Selector) *Predicate {
	return P(func(b *Builder) {
		b.WriteString("NOT EXISTS ")
		sub := query.Clone()
		sub.dialect = b.dialect
		b.Nested(func(b *Builder) {
			sub.writeTo(b)
		})
	})
}
