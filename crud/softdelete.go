package crud

import (
	"context"
	"time"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/querylanguage"
)

type skipSoftDeleteKey struct{}

// SkipSoftDelete returns a context under which reads include soft-deleted
// records.
func SkipSoftDelete(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipSoftDeleteKey{}, true)
}

// SoftDeleteSkipped reports whether the context includes soft-deleted
// records in reads.
func SoftDeleteSkipped(ctx context.Context) bool {
	skip, _ := ctx.Value(skipSoftDeleteKey{}).(bool)
	return skip
}

// SoftDeleteService is a Service over an entity carrying a deletedAt field.
// Reads exclude soft-deleted records unless the context says otherwise, and
// Remove marks records deleted instead of deleting rows.
type SoftDeleteService struct {
	*Service
	deletedAt *metadata.Field
}

// NewSoftDeleteService returns a soft-deleting service for the entity. The
// entity must declare a deletedAt field; a plain entity is a configuration
// error, reported here rather than on first use.
func NewSoftDeleteService(ent *metadata.Entity, drv dialect.Driver, opts ...Option) (*SoftDeleteService, error) {
	deletedAt, ok := ent.Field(metadata.FieldDeletedAt)
	if !ok {
		return nil, crudox.NewConfigError("entity %s has no %s field and cannot soft-delete", ent.Name, metadata.FieldDeletedAt)
	}
	s := NewService(ent, drv, opts...)
	col := ent.Table + "." + deletedAt.Column
	s.scopes = append(s.scopes, func(ctx context.Context, sel *sql.Selector) {
		if !SoftDeleteSkipped(ctx) {
			sel.Where(sql.IsNull(col))
		}
	})
	return &SoftDeleteService{Service: s, deletedAt: deletedAt}, nil
}

// SoftRemove marks the record deleted by setting its deletedAt field.
func (s *SoftDeleteService) SoftRemove(ctx context.Context, id any) (Record, error) {
	before, err := s.FindOne(ctx, id, true)
	if err != nil {
		return nil, err
	}
	u := sql.Dialect(s.drv.Dialect()).Update(s.ent.Table).
		Set(s.deletedAt.Column, timeArg(time.Now())).
		Where(sql.EQ(s.ent.PrimaryKey().Column, id))
	query, args := u.Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return nil, err
	}
	after, err := s.FindOne(SkipSoftDelete(ctx), id, true)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.Audit(ctx, ActionSoftRemove, id, before, after)
	return after, nil
}

// Recover clears the deletedAt field of a soft-deleted record.
func (s *SoftDeleteService) Recover(ctx context.Context, id any) (Record, error) {
	before, err := s.FindOne(SkipSoftDelete(ctx), id, true)
	if err != nil {
		return nil, err
	}
	u := sql.Dialect(s.drv.Dialect()).Update(s.ent.Table).
		SetNull(s.deletedAt.Column).
		Where(sql.EQ(s.ent.PrimaryKey().Column, id))
	query, args := u.Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return nil, err
	}
	after, err := s.FindOne(ctx, id, true)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.Audit(ctx, ActionRecover, id, before, after)
	return after, nil
}

// HardRemove deletes the row from storage, soft-deleted or not.
func (s *SoftDeleteService) HardRemove(ctx context.Context, id any) (Record, error) {
	before, err := s.FindOne(SkipSoftDelete(ctx), id, true)
	if err != nil {
		return nil, err
	}
	d := sql.Dialect(s.drv.Dialect()).Delete(s.ent.Table).
		Where(sql.EQ(s.ent.PrimaryKey().Column, id))
	query, args := d.Query()
	if _, err := s.exec(ctx, query, args); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.Audit(ctx, ActionHardRemove, id, before, nil)
	return before, nil
}

// Remove soft-removes; the plain hard delete stays reachable as HardRemove.
func (s *SoftDeleteService) Remove(ctx context.Context, id any) (Record, error) {
	return s.SoftRemove(ctx, id)
}

// BulkRemove marks every record matching the filter deleted.
func (s *SoftDeleteService) BulkRemove(ctx context.Context, where *querylanguage.Filter) (int, error) {
	keys, err := s.keysSelector(ctx, where)
	if err != nil {
		return 0, err
	}
	u := sql.Dialect(s.drv.Dialect()).Update(s.ent.Table).
		Set(s.deletedAt.Column, timeArg(time.Now())).
		Where(sql.InQuery(s.ent.PrimaryKey().Column, keys))
	query, args := u.Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

// BulkRecover clears deletedAt on every soft-deleted record matching the
// filter.
func (s *SoftDeleteService) BulkRecover(ctx context.Context, where *querylanguage.Filter) (int, error) {
	keys, err := s.keysSelector(SkipSoftDelete(ctx), where)
	if err != nil {
		return 0, err
	}
	keys.Where(sql.NotNull(s.ent.Table + "." + s.deletedAt.Column))
	u := sql.Dialect(s.drv.Dialect()).Update(s.ent.Table).
		SetNull(s.deletedAt.Column).
		Where(sql.InQuery(s.ent.PrimaryKey().Column, keys))
	query, args := u.Query()
	n, err := s.exec(ctx, query, args)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

// BulkDelete deletes from storage every record matching the filter, the
// soft-deleted included.
func (s *SoftDeleteService) BulkDelete(ctx context.Context, where *querylanguage.Filter) (int, error) {
	keys, err := s.keysSelector(SkipSoftDelete(ctx), where)
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

var _ SoftDeletable = (*SoftDeleteService)(nil)
