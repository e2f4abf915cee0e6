package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	repotest "github.com/fundtracer/fundtracer-backend/internal/data/repos/testutil"
	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
)

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireCASSuccess(false, "stale"); err == nil {
		t.Fatalf("expected conflict error")
	}
}

func TestCASGuardUpdateByStatusVersion(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	ctx := context.Background()

	camp := repotest.SeedCampaign(t, ctx, tx, "10.00")
	d := repotest.SeedDonation(t, ctx, tx, camp.ID, uuid.New(), "5.00", ledger.StatusPending, time.Now())
	guard := NewCASGuard(tx)
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	ok, err := guard.UpdateByStatusVersion(dbc, "donation", d.ID, string(ledger.StatusPending), 0, map[string]any{
		"status":  ledger.StatusFailed,
		"version": 1,
	})
	if err != nil || !ok {
		t.Fatalf("first update: ok=%v err=%v", ok, err)
	}

	ok, err = guard.UpdateByStatusVersion(dbc, "donation", d.ID, string(ledger.StatusPending), 0, map[string]any{
		"status":  ledger.StatusCompleted,
		"version": 1,
	})
	if err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if ok {
		t.Fatalf("stale update: want=false got=true")
	}

	if _, err := guard.UpdateByStatusVersion(dbc, "donation", uuid.Nil, "PENDING", 0, map[string]any{"version": 1}); err == nil {
		t.Fatalf("nil id: want validation error")
	}
	if _, err := guard.UpdateByStatusVersion(dbc, "donation", d.ID, "FAILED", 1, nil); err == nil {
		t.Fatalf("empty updates: want validation error")
	}
}

func TestCASGuardForContractRejectsForeignTables(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	guard := NewCASGuard(db).ForContract(domainagg.DonationLedgerAggregateContract)

	_, err := guard.UpdateByStatusVersion(dbctx.Context{Ctx: ctx}, "users", uuid.New(), "ACTIVE", 0, map[string]any{"version": 1})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("foreign table: want=%v got=%v", ErrValidation, err)
	}

	ok, err := guard.UpdateByStatusVersion(dbctx.Context{Ctx: ctx}, "donation", uuid.New(), "PENDING", 0, map[string]any{"version": 1})
	if err != nil {
		t.Fatalf("owned table: %v", err)
	}
	if ok {
		t.Fatalf("missing row: want=false got=true")
	}
}
