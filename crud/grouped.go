package crud

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/dialect/sql/sqlgraph"
	"github.com/crudox/crudox/querylanguage"
	"github.com/crudox/crudox/schema/field"
)

// GroupedList executes a grouping query. Each returned record holds the
// group-key values under their aliases plus one value per aggregate alias.
// Pagination applies to the set of groups, and the reported total is the
// number of distinct group keys, not the underlying row count.
func (s *Service) GroupedList(ctx context.Context, q *querylanguage.Query) ([]Record, querylanguage.PageInfo, error) {
	if q == nil || q.Group == nil || len(q.Group.Keys) == 0 {
		return nil, querylanguage.PageInfo{}, crudox.NewValidationErrorf("groupBy", "no grouping fields selected")
	}
	sel := s.selector(ctx)
	tr := sqlgraph.NewTranslator(s.ent, sel)
	if q.Where != nil {
		if err := tr.WhereP(q.Where); err != nil {
			return nil, querylanguage.PageInfo{}, err
		}
	}
	gq, err := tr.GroupP(q.Group)
	if err != nil {
		return nil, querylanguage.PageInfo{}, err
	}
	if len(q.Order) > 0 {
		// A grouped query can only order by its own keys. Anything else
		// would reference a column outside the GROUP BY clause.
		keys := make(map[string]bool, len(gq.Keys))
		for _, k := range gq.Keys {
			keys[k] = true
		}
		for _, term := range q.Order {
			if !keys[strings.Join(term.Path, "_")] {
				return nil, querylanguage.PageInfo{}, crudox.NewValidationErrorf(term.String(), "order by %q is not a grouping key", strings.Join(term.Path, "."))
			}
		}
		if err := tr.OrderP(q.Order); err != nil {
			return nil, querylanguage.PageInfo{}, err
		}
	}
	page := q.Page.Normalize()
	gq.Rows.Limit(page.Limit).Offset(page.Offset())

	var (
		recs  []Record
		total int
	)
	if TxFromContext(ctx) != nil {
		if total, err = s.count(ctx, gq.Count); err != nil {
			return nil, querylanguage.PageInfo{}, err
		}
		if recs, err = s.groupRows(ctx, gq.Rows, q.Group); err != nil {
			return nil, querylanguage.PageInfo{}, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.count(gctx, gq.Count)
			total = n
			return err
		})
		g.Go(func() error {
			rs, err := s.groupRows(gctx, gq.Rows, q.Group)
			recs = rs
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, querylanguage.PageInfo{}, err
		}
	}
	return recs, querylanguage.NewPageInfo(page, len(recs), total), nil
}

// groupRows executes the grouped selector and scans one record per group.
func (s *Service) groupRows(ctx context.Context, sel *sql.Selector, spec *querylanguage.GroupSpec) ([]Record, error) {
	keys := make(map[string]querylanguage.GroupKey, len(spec.Keys))
	for _, k := range spec.Keys {
		keys[groupAlias(k)] = k
	}
	aggs := make(map[string]querylanguage.Aggregate, len(spec.Aggregates))
	for _, a := range spec.Aggregates {
		aggs[a.Alias] = a
	}

	query, args := sel.Query()
	var rows sql.Rows
	if err := s.conn(ctx).Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var recs []Record
	for rows.Next() {
		values := make([]any, len(columns))
		for i := range values {
			values[i] = new(any)
		}
		if err := rows.Scan(values...); err != nil {
			return nil, err
		}
		rec := make(Record, len(columns))
		for i, col := range columns {
			raw := *values[i].(*any)
			switch {
			case raw == nil:
				rec[col] = nil
			default:
				if k, ok := keys[col]; ok {
					v, err := decodeValue(k.Field, raw)
					if err != nil {
						return nil, err
					}
					rec[col] = v
					continue
				}
				if a, ok := aggs[col]; ok {
					v, err := decodeAggregate(a, raw)
					if err != nil {
						return nil, err
					}
					rec[col] = v
					continue
				}
				rec[col] = raw
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// decodeAggregate converts an aggregate column value. COUNT yields an
// integer; SUM and AVG over a decimal field round to the field's declared
// precision; MIN and MAX keep the field's own type.
func decodeAggregate(a querylanguage.Aggregate, v any) (any, error) {
	switch a.Func {
	case querylanguage.AggCount:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case []byte, string:
			return strconv.ParseInt(asString(v), 10, 64)
		}
	case querylanguage.AggMin, querylanguage.AggMax:
		return decodeValue(a.Field, v)
	case querylanguage.AggSum, querylanguage.AggAvg:
		switch a.Field.Type {
		case field.TypeDecimal:
			d, err := toDecimal(v)
			if err != nil {
				return nil, err
			}
			return d.Round(a.Field.Precision), nil
		case field.TypeFloat64:
			switch n := v.(type) {
			case float64:
				return n, nil
			case int64:
				return float64(n), nil
			case []byte, string:
				return strconv.ParseFloat(asString(v), 64)
			}
		default:
			// Integer fields: SUM stays integral, AVG is fractional.
			switch n := v.(type) {
			case int64:
				return n, nil
			case float64:
				return n, nil
			case []byte, string:
				d, err := toDecimal(v)
				if err != nil {
					return nil, err
				}
				if a.Func == querylanguage.AggSum {
					return d.IntPart(), nil
				}
				return d.InexactFloat64(), nil
			}
		}
	}
	return nil, crudox.NewValidationErrorf(a.Alias, "unexpected aggregate value %T", v)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case []byte, string:
		return decimal.NewFromString(asString(v))
	}
	return decimal.Decimal{}, crudox.NewValidationErrorf("", "unexpected numeric value %T", v)
}

func groupAlias(k querylanguage.GroupKey) string {
	return strings.Join(k.Path, "_")
}
