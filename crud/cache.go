package crud

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/crudox/crudox"
	"github.com/crudox/crudox/dialect/sql"
)

// cachedRows executes the selector through the read cache when one is
// configured. Reads inside a transaction bypass the cache so they observe
// their own uncommitted writes.
func (s *Service) cachedRows(ctx context.Context, op string, sel *sql.Selector) ([]Record, error) {
	if s.cache == nil || TxFromContext(ctx) != nil {
		return s.rows(ctx, sel)
	}
	query, args := sel.Query()
	key := crudox.CacheKey{
		Table:     s.ent.Table,
		Operation: op,
		Query:     query + "|" + fmt.Sprint(args...),
	}.String()
	if data, err := s.cache.Get(ctx, key); err == nil && data != nil {
		if recs, err := s.decodeCached(data); err == nil {
			return recs, nil
		}
	}
	recs, err := s.rows(ctx, sel)
	if err != nil {
		return nil, err
	}
	if data, err := s.encodeCached(recs); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			s.log.WarnContext(ctx, "cache set failed", "table", s.ent.Table, "error", err)
		}
	}
	return recs, nil
}

// invalidate drops every cached read of the entity's table.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	prefix := crudox.CacheKey{Table: s.ent.Table}.Prefix()
	if err := s.cache.DeletePrefix(ctx, prefix); err != nil {
		s.log.WarnContext(ctx, "cache invalidation failed", "table", s.ent.Table, "error", err)
	}
}

// encodeCached serializes records with typed values reduced to strings, so
// the msgpack round trip stays driver-neutral.
func (s *Service) encodeCached(recs []Record) ([]byte, error) {
	flat := make([]map[string]any, len(recs))
	for i, rec := range recs {
		m := make(map[string]any, len(rec))
		for k, v := range rec {
			switch tv := v.(type) {
			case time.Time:
				m[k] = tv.Format(time.RFC3339Nano)
			case decimal.Decimal:
				m[k] = tv.String()
			case uuid.UUID:
				m[k] = tv.String()
			default:
				m[k] = v
			}
		}
		flat[i] = m
	}
	return msgpack.Marshal(flat)
}

// decodeCached restores records from the cache, re-typing values through the
// entity's field metadata.
func (s *Service) decodeCached(data []byte) ([]Record, error) {
	var flat []map[string]any
	if err := msgpack.Unmarshal(data, &flat); err != nil {
		return nil, err
	}
	recs := make([]Record, len(flat))
	for i, m := range flat {
		rec := make(Record, len(m))
		for k, v := range m {
			f, ok := s.ent.Field(k)
			if !ok || v == nil {
				rec[k] = v
				continue
			}
			tv, err := decodeValue(f, v)
			if err != nil {
				return nil, err
			}
			rec[k] = tv
		}
		recs[i] = rec
	}
	return recs, nil
}
