package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
)

func TestInjectedTxRunner_CommitsOnSuccess(t *testing.T) {
	r := &InjectedTxRunner{}
	called := false
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !called {
		t.Fatalf("expected callback to run")
	}
	if r.BeginCalls != 1 || r.CommitCalls != 1 || r.RollbackCalls != 0 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunner_RollbackOnBodyError(t *testing.T) {
	r := &InjectedTxRunner{}
	bodyErr := errors.New("boom")
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		return bodyErr
	})
	if !errors.Is(err, bodyErr) {
		t.Fatalf("expected body err, got %v", err)
	}
	if r.BeginCalls != 1 || r.CommitCalls != 0 || r.RollbackCalls != 1 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunner_FailCommitTriggersRollback(t *testing.T) {
	commitErr := errors.New("commit failed")
	r := &InjectedTxRunner{FailCommit: commitErr}
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		return nil
	})
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit err, got %v", err)
	}
	if r.BeginCalls != 1 || r.CommitCalls != 0 || r.RollbackCalls != 1 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", r.BeginCalls, r.CommitCalls, r.RollbackCalls)
	}
}

func TestInjectedTxRunner_FailBeginTimes(t *testing.T) {
	beginErr := errors.New("database is locked")
	r := &InjectedTxRunner{FailBegin: beginErr, FailBeginTimes: 2}
	for i := 0; i < 2; i++ {
		if err := r.InTx(context.Background(), func(_ dbctx.Context) error { return nil }); !errors.Is(err, beginErr) {
			t.Fatalf("call %d: want=%v got=%v", i+1, beginErr, err)
		}
	}
	if err := r.InTx(context.Background(), func(_ dbctx.Context) error { return nil }); err != nil {
		t.Fatalf("third call: %v", err)
	}
	if r.BeginCalls != 3 || r.CommitCalls != 1 {
		t.Fatalf("unexpected counters begin=%d commit=%d", r.BeginCalls, r.CommitCalls)
	}
}

type innerRunner struct{ calls int }

func (r *innerRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.calls++
	return fn(dbctx.Context{Ctx: ctx})
}

func TestInjectedTxRunner_DelegatesToInner(t *testing.T) {
	inner := &innerRunner{}
	r := &InjectedTxRunner{Inner: inner}
	if err := r.InTx(context.Background(), func(_ dbctx.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if inner.calls != 1 || r.CommitCalls != 1 {
		t.Fatalf("inner calls=%d commits=%d", inner.calls, r.CommitCalls)
	}
}
