package crud

import (
	"context"
	"fmt"

	"github.com/crudox/crudox/dialect"
)

type txCtxKey struct{}

// NewTxContext returns a context carrying the transaction. Service calls
// made with the returned context execute inside it.
func NewTxContext(ctx context.Context, tx dialect.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// TxFromContext returns the transaction carried in the context, if any.
func TxFromContext(ctx context.Context) dialect.Tx {
	tx, _ := ctx.Value(txCtxKey{}).(dialect.Tx)
	return tx
}

// RunInTransaction runs fn inside a transaction carried in fn's context.
// An error from fn rolls the whole unit back and propagates unchanged. When
// the context already carries a transaction, fn joins it and the outer call
// stays in charge of commit and rollback.
func (s *Service) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := TxFromContext(ctx); tx != nil {
		return fn(NewTxContext(ctx, dialect.NopTx(tx)))
	}
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(NewTxContext(ctx, tx)); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w: rolling back transaction: %v", err, rerr)
		}
		return err
	}
	return tx.Commit()
}
