package crud

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect"
	"github.com/crudox/crudox/dialect/sql"
	"github.com/crudox/crudox/dialect/sql/sqlgraph"
	"github.com/crudox/crudox/metadata"
	"github.com/crudox/crudox/querylanguage"
)

// Service implements Servicer over a dialect.Driver. It is stateless apart
// from its configuration and safe for concurrent use.
type Service struct {
	ent     *metadata.Entity
	drv     dialect.Driver
	log     *slog.Logger
	auditor Auditor
	cache   crudox.Cache
	ttl     time.Duration

	// scopes are applied to every read selector before translation. The
	// soft-delete constructor installs the deletedAt scope here.
	scopes []func(ctx context.Context, sel *sql.Selector)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used by the service and its default auditor.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithAuditor sets the auditor receiving mutation entries.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithCache enables read-through caching of list queries. Entries are
// invalidated by table prefix on every write through the service.
func WithCache(c crudox.Cache, ttl time.Duration) Option {
	return func(s *Service) { s.cache, s.ttl = c, ttl }
}

// NewService returns a service for the entity backed by the driver.
func NewService(ent *metadata.Entity, drv dialect.Driver, opts ...Option) *Service {
	s := &Service{ent: ent, drv: drv, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditor == nil {
		s.auditor = NewLogAuditor(s.log)
	}
	return s
}

// Entity returns the resolved entity the service operates on.
func (s *Service) Entity() *metadata.Entity { return s.ent }

// Driver returns the underlying driver.
func (s *Service) Driver() dialect.Driver { return s.drv }

// conn returns the transaction carried in the context, or the driver.
func (s *Service) conn(ctx context.Context) dialect.ExecQuerier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.drv
}

// selector returns a SELECT over the entity table with all columns
// qualified, so joins added by the translator cannot make them ambiguous.
func (s *Service) selector(ctx context.Context) *sql.Selector {
	cols := s.ent.Columns()
	qualified := make([]string, len(cols))
	for i, c := range cols {
		qualified[i] = s.ent.Table + "." + c
	}
	sel := sql.Dialect(s.drv.Dialect()).
		Select(qualified...).
		From(sql.Table(s.ent.Table))
	for _, scope := range s.scopes {
		scope(ctx, sel)
	}
	return sel
}

// translate compiles the query's filter and order onto the selector.
func (s *Service) translate(sel *sql.Selector, q *querylanguage.Query) (*sqlgraph.Translator, error) {
	tr := sqlgraph.NewTranslator(s.ent, sel)
	if q == nil {
		return tr, nil
	}
	if q.Where != nil {
		if err := tr.WhereP(q.Where); err != nil {
			return nil, err
		}
	}
	if len(q.Order) > 0 {
		if err := tr.OrderP(q.Order); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

// FindAll returns the records matching the query. When the query carries
// pagination it bounds the result without computing a total; Paginate is the
// operation that reports page information.
func (s *Service) FindAll(ctx context.Context, q *querylanguage.Query) ([]Record, error) {
	sel := s.selector(ctx)
	if _, err := s.translate(sel, q); err != nil {
		return nil, err
	}
	if q != nil && (q.Page.Limit > 0 || q.Page.Page > 0) {
		page := q.Page.Normalize()
		sel.Limit(page.Limit).Offset(page.Offset())
	}
	return s.cachedRows(ctx, "findAll", sel)
}

// FindOne returns the record with the given primary key.
func (s *Service) FindOne(ctx context.Context, id any, orFail bool) (Record, error) {
	sel := s.selector(ctx)
	sel.Where(sql.EQ(s.ent.Table+"."+s.ent.PrimaryKey().Column, id)).Limit(1)
	recs, err := s.rows(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		if orFail {
			return nil, crudox.NewNotFoundErrorWithID(s.ent.Name, id)
		}
		return nil, nil
	}
	return recs[0], nil
}

// FindOneBy returns the first record matching the filter.
func (s *Service) FindOneBy(ctx context.Context, where *querylanguage.Filter, orFail bool) (Record, error) {
	sel := s.selector(ctx)
	tr := sqlgraph.NewTranslator(s.ent, sel)
	if where != nil {
		if err := tr.WhereP(where); err != nil {
			return nil, err
		}
	}
	sel.Limit(1)
	recs, err := s.rows(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		if orFail {
			return nil, crudox.NewNotFoundError(s.ent.Name)
		}
		return nil, nil
	}
	return recs[0], nil
}

// Paginate returns one page of records and the derived page information.
// The count and the page rows run concurrently outside a transaction.
func (s *Service) Paginate(ctx context.Context, q *querylanguage.Query) ([]Record, querylanguage.PageInfo, error) {
	sel := s.selector(ctx)
	if _, err := s.translate(sel, q); err != nil {
		return nil, querylanguage.PageInfo{}, err
	}
	var page querylanguage.Pagination
	if q != nil {
		page = q.Page
	}
	page = page.Normalize()

	countSel := sel.Clone().ClearOrder().Select(sql.Count("*"))
	sel.Limit(page.Limit).Offset(page.Offset())

	var (
		recs  []Record
		total int
	)
	if TxFromContext(ctx) != nil {
		// A database/sql transaction is bound to one connection and must
		// not be used concurrently.
		var err error
		if total, err = s.count(ctx, countSel); err != nil {
			return nil, querylanguage.PageInfo{}, err
		}
		if recs, err = s.rows(ctx, sel); err != nil {
			return nil, querylanguage.PageInfo{}, err
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.count(gctx, countSel)
			total = n
			return err
		})
		g.Go(func() error {
			rs, err := s.cachedRows(gctx, "paginate", sel)
			recs = rs
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, querylanguage.PageInfo{}, err
		}
	}
	return recs, querylanguage.NewPageInfo(page, len(recs), total), nil
}

// rows executes the selector and scans every row into a record.
func (s *Service) rows(ctx context.Context, sel *sql.Selector) ([]Record, error) {
	query, args := sel.Query()
	var rows sql.Rows
	if err := s.conn(ctx).Query(ctx, query, args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scanRecords(&rows)
}

// count executes a single-value COUNT selector.
func (s *Service) count(ctx context.Context, sel *sql.Selector) (int, error) {
	query, args := sel.Query()
	var rows sql.Rows
	if err := s.conn(ctx).Query(ctx, query, args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, rows.Err()
	}
	var n int
	if err := rows.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Audit reports a completed mutation to the configured auditor.
func (s *Service) Audit(ctx context.Context, action string, id any, before, after Record) {
	s.auditor.Audit(ctx, Entry{
		Entity: s.ent.Name,
		Action: action,
		ID:     id,
		Before: before,
		After:  after,
	})
}

var _ Servicer = (*Service)(nil)
