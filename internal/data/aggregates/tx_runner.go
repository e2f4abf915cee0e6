package aggregates

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
)

// TxRunner provides a shared transaction boundary primitive for aggregate writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

type TxRunnerOption func(*gormTxRunner)

// WithLockTimeout bounds row lock waits inside each transaction. Only Postgres
// honours it at the statement level; other dialects rely on the context deadline.
func WithLockTimeout(d time.Duration) TxRunnerOption {
	return func(r *gormTxRunner) { r.lockTimeout = d }
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
func NewGormTxRunner(db *gorm.DB, opts ...TxRunnerOption) TxRunner {
	r := &gormTxRunner{db: db}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			ms := r.lockTimeout.Milliseconds()
			if ms < 1 {
				ms = 1
			}
			if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)).Error; err != nil {
				return err
			}
		}
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}
