// Package dataloader batches record lookups for per-item resolution layers
// such as GraphQL field resolvers. ByID turns a crud service into a batch
// function loading many records with one IN query; the ordering helpers
// align batch results with their requested keys, which is the contract
// loader libraries like github.com/graph-gophers/dataloader/v7 and
// github.com/vikstrous/dataloadgen expect from a batch function.
package dataloader

import (
	"context"
	"errors"

	"github.com/crudox/crudox/crud"
	"github.com/crudox/crudox/querylanguage"
)

// ErrNotFound marks a requested key with no matching record.
var ErrNotFound = errors.New("dataloader: record not found")

// KeyFunc extracts the key of one value.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc loads the values of a batch of keys. The result and error
// slices are index-aligned with the keys.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// ByID returns a batch function loading records by primary key. The key
// type parameter matches the record value of the primary key field, int64
// for auto-increment entities.
func ByID[K comparable](svc crud.Servicer) BatchFunc[K, crud.Record] {
	pk := svc.Entity().PrimaryKey().Name
	return func(ctx context.Context, keys []K) ([]crud.Record, []error) {
		in := make([]any, len(keys))
		for i, k := range keys {
			in[i] = k
		}
		records, err := svc.FindAll(ctx, &querylanguage.Query{
			Where: querylanguage.Pred(pk, querylanguage.OpIn, in),
		})
		if err != nil {
			errs := make([]error, len(keys))
			for i := range errs {
				errs[i] = err
			}
			return make([]crud.Record, len(keys)), errs
		}
		return OrderByKeys(keys, records, func(r crud.Record) K {
			k, _ := r[pk].(K)
			return k
		})
	}
}

// OrderByKeys aligns values with their requested keys. Keys without a value
// get a zero value and an ErrNotFound entry; loader libraries require the
// result slice to mirror the key slice position by position.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// OrderByKeysNoError is OrderByKeys with missing values reduced to zero
// values, for optional lookups.
func OrderByKeysNoError[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) []V {
	result, _ := OrderByKeys(keys, values, keyFn)
	return result
}

// GroupByKey buckets values by key, for one-to-many loads where several
// values share one parent key.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys aligns grouped values with their requested keys.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

type ctxKey struct{}

// WithLoaders attaches a request-scoped loader bundle to the context.
// Transports construct the bundle per request so batching never crosses
// request boundaries.
func WithLoaders[T any](ctx context.Context, loaders T) context.Context {
	return context.WithValue(ctx, ctxKey{}, loaders)
}

// For extracts the loader bundle from the context, returning the zero value
// when none is attached.
func For[T any](ctx context.Context) T {
	v, _ := ctx.Value(ctxKey{}).(T)
	return v
}
