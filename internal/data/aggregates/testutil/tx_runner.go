package testutil

import (
	"context"
	"sync"

	"github.com/fundtracer/fundtracer-backend/internal/data/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
)

// InjectedTxRunner is a test helper for aggregate integration tests.
// It injects begin and commit failures. With Inner set the body runs inside a
// real transaction, and an injected commit failure rolls that transaction back.
type InjectedTxRunner struct {
	mu sync.Mutex

	Inner aggregates.TxRunner

	FailBegin error
	// FailBeginTimes limits FailBegin to the first N calls. Zero fails every call.
	FailBeginTimes int
	FailCommit     error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	call := r.BeginCalls
	failBegin := r.FailBegin
	if r.FailBeginTimes > 0 && call > r.FailBeginTimes {
		failBegin = nil
	}
	failCommit := r.FailCommit
	inner := r.Inner
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}

	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				r.countRollback()
				return err
			}
		}
		if failCommit != nil {
			r.countRollback()
			return failCommit
		}
		return nil
	}

	var err error
	if inner != nil {
		err = inner.InTx(ctx, body)
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}
	if err == nil {
		r.mu.Lock()
		r.CommitCalls++
		r.mu.Unlock()
	}
	return err
}

func (r *InjectedTxRunner) countRollback() {
	r.mu.Lock()
	r.RollbackCalls++
	r.mu.Unlock()
}
