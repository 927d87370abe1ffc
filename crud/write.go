package crud

import (
	"context"
	"sort"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/dialect/sql/sqlgraph"
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/querylanguage"
)

// Create inserts a record and returns it as stored. Input keys are field
// names; a to-one relation name is accepted as shorthand for its foreign key
// and carries the related primary key value. Declared defaults fill absent
// fields, createdAt and updatedAt included.
func (s *Service) Create(ctx context.Context, input Record) (Record, error) {
	cols, vals, id, err := s.insertValues(input)
	if err != nil {
		return nil, err
	}
	ins := sql.Dialect(s.drv.Dialect()).Insert(s.ent.Table).Columns(cols...).Values(vals...)
	pk := s.ent.PrimaryKey()
	switch {
	case id != nil:
		query, args := ins.Query()
		var res sql.Result
		if err := s.conn(ctx).Exec(ctx, query, args, &res); err != nil {
			return nil, sqlgraph.Classify(err)
		}
	case s.drv.Dialect() == dialect.Postgres:
		query, args := ins.Returning(pk.Column).Query()
		var rows sql.Rows
		if err := s.conn(ctx).Query(ctx, query, args, &rows); err != nil {
			return nil, sqlgraph.Classify(err)
		}
		if rows.Next() {
			err = rows.Scan(&id)
		}
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, err
		}
	default:
		query, args := ins.Query()
		var res sql.Result
		if err := s.conn(ctx).Exec(ctx, query, args, &res); err != nil {
			return nil, sqlgraph.Classify(err)
		}
		n, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		id = n
	}
	created, err := s.FindOne(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.Audit(ctx, ActionCreate, id, nil, created)
	return created, nil
}

// insertValues resolves the column and value lists for an insert and the
// primary key value when it is known up front.
func (s *Service) insertValues(input Record) (cols []string, vals []any, id any, err error) {
	taken := make(map[string]bool, len(input))
	for _, f := range s.ent.Fields() {
		v, ok := input[f.Name]
		if !ok {
			if v, ok = defaultValue(f); !ok {
				if f.PrimaryKey || f.Optional || f.Nillable || f.System() {
					continue
				}
				return nil, nil, nil, crudox.NewValidationErrorf(f.Name, "missing required field")
			}
		} else {
			taken[f.Name] = true
		}
		ev, err := encodeValue(f, v)
		if err != nil {
			return nil, nil, nil, err
		}
		if f.PrimaryKey {
			id = ev
		}
		cols = append(cols, f.Column)
		vals = append(vals, ev)
	}
	for _, rel := range s.ent.Relations() {
		if rel.ToMany() {
			continue
		}
		v, ok := input[rel.Name]
		if !ok {
			if rel.Required {
				return nil, nil, nil, crudox.NewValidationErrorf(rel.Name, "missing required relation")
			}
			continue
		}
		taken[rel.Name] = true
		ev, err := encodeValue(rel.Target.PrimaryKey(), v)
		if err != nil {
			return nil, nil, nil, crudox.NewValidationError(rel.Name, err)
		}
		cols = append(cols, rel.FKColumn)
		vals = append(vals, ev)
	}
	for key := range input {
		if !taken[key] {
			return nil, nil, nil, crudox.NewValidationErrorf(key, "unknown field on entity %s", s.ent.Name)
		}
	}
	return cols, vals, id, nil
}

// Update applies the input to the record with the given primary key and
// returns the updated record.
func (s *Service) Update(ctx context.Context, id any, input Record) (Record, error) {
	before, err := s.FindOne(ctx, id, true)
	if err != nil {
		return nil, err
	}
	u := sql.Dialect(s.drv.Dialect()).Update(s.ent.Table)
	if err := s.updateSets(u, input); err != nil {
		return nil, err
	}
	if u.Empty() {
		return before, nil
	}
	u.Where(sql.EQ(s.ent.PrimaryKey().Column, id))
	query, args := u.Query()
	var res sql.Result
	if err := s.conn(ctx).Exec(ctx, query, args, &res); err != nil {
		return nil, sqlgraph.Classify(err)
	}
	after, err := s.FindOne(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.Audit(ctx, ActionUpdate, id, before, after)
	return after, nil
}

// updateSets applies the input record to the update builder. Primary key,
// immutable and system fields are rejected; updatedAt is maintained here.
// Keys apply in sorted order so the statement text is stable.
func (s *Service) updateSets(u *sql.UpdateBuilder, input Record) error {
	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		v := input[key]
		if f, ok := s.ent.Field(key); ok {
			switch {
			case f.PrimaryKey:
				return crudox.NewValidationErrorf(key, "primary key is immutable")
			case f.Immutable || f.System():
				return crudox.NewValidationErrorf(key, "field is immutable")
			}
			ev, err := encodeValue(f, v)
			if err != nil {
				return err
			}
			if ev == nil {
				u.SetNull(f.Column)
			} else {
				u.Set(f.Column, ev)
			}
			continue
		}
		if rel, ok := s.ent.Relation(key); ok && !rel.ToMany() {
			if v == nil {
				if rel.Required {
					return crudox.NewValidationErrorf(key, "relation is required")
				}
				u.SetNull(rel.FKColumn)
				continue
			}
			ev, err := encodeValue(rel.Target.PrimaryKey(), v)
			if err != nil {
				return crudox.NewValidationError(key, err)
			}
			u.Set(rel.FKColumn, ev)
			continue
		}
		return crudox.NewValidationErrorf(key, "unknown field on entity %s", s.ent.Name)
	}
	if f, ok := s.ent.Field(metadata.FieldUpdatedAt); ok {
		if v, ok := defaultValue(f); ok {
			ev, err := encodeValue(f, v)
			if err != nil {
				return err
			}
			u.Set(f.Column, ev)
		}
	}
	return nil
}

// Remove deletes the record with the given primary key and returns it.
func (s *Service) Remove(ctx context.Context, id any) (Record, error) {
	before, err := s.FindOne(ctx, id, true)
	if err != nil {
		return nil, err
	}
	d := sql.Dialect(s.drv.Dialect()).Delete(s.ent.Table).
		Where(sql.EQ(s.ent.PrimaryKey().Column, id))
	query, args := d.Query()
	var res sql.Result
	if err := s.conn(ctx).Exec(ctx, query, args, &res); err != nil {
		return nil, sqlgraph.Classify(err)
	}
	s.invalidate(ctx)
	s.Audit(ctx, ActionRemove, id, before, nil)
	return before, nil
}

// BulkInsert inserts the inputs one by one inside a single transaction, so
// a failing row rolls the whole batch back.
func (s *Service) BulkInsert(ctx context.Context, inputs []Record) ([]Record, error) {
	created := make([]Record, 0, len(inputs))
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, input := range inputs {
			rec, err := s.Create(ctx, input)
			if err != nil {
				return err
			}
			created = append(created, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// BulkUpdate applies the input to every record matching the filter.
func (s *Service) BulkUpdate(ctx context.Context, where *querylanguage.Filter, input Record) (int, error) {
	u := sql.Dialect(s.drv.Dialect()).Update(s.ent.Table)
	if err := s.updateSets(u, input); err != nil {
		return 0, err
	}
	if u.Empty() {
		return 0, nil
	}
	keys, err := s.keysSelector(ctx, where)
	if err != nil {
		return 0, err
	}
	u.Where(sql.InQuery(s.ent.PrimaryKey().Column, keys))
	query, args := u.Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

// BulkRemove deletes every record matching the filter.
func (s *Service) BulkRemove(ctx context.Context, where *querylanguage.Filter) (int, error) {
	keys, err := s.keysSelector(ctx, where)
	if err != nil {
		return 0, err
	}
	d := sql.Dialect(s.drv.Dialect()).Delete(s.ent.Table).
		Where(sql.InQuery(s.ent.PrimaryKey().Column, keys))
	query, args := d.Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

// keysSelector builds the primary key sub-select a bulk write scopes itself
// with. MySQL cannot update a table it selects from in a sub-query, which is
// why callers targeting it should run bulk writes in two statements; the
// supported path here matches postgres and sqlite semantics.
func (s *Service) keysSelector(ctx context.Context, where *querylanguage.Filter) (*sql.Selector, error) {
	sel := sql.Dialect(s.drv.Dialect()).
		Select(s.ent.Table + "." + s.ent.PrimaryKey().Column).
		From(sql.Table(s.ent.Table))
	for _, scope := range s.scopes {
		scope(ctx, sel)
	}
	if where != nil {
		tr := sqlgraph.NewTranslator(s.ent, sel)
		if err := tr.WhereP(where); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// exec runs a write statement and returns the number of affected rows.
func (s *Service) exec(ctx context.Context, query string, args []any) (int, error) {
	var res sql.Result
	if err := s.conn(ctx).Exec(ctx, query, args, &res); err != nil {
		return 0, sqlgraph.Classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
