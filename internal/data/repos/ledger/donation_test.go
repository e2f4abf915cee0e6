package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundtracer/fundtracer-backend/internal/data/repos/testutil"
	domain "github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
)

func TestDonationRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDonationRepo(db, testutil.Logger(t))

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	camp := testutil.SeedCampaign(t, ctx, tx, "1000.00")
	donor := uuid.New()

	txID := "tx-abc"
	first := &domain.Donation{
		ID:            uuid.New(),
		DonorID:       donor,
		CampaignID:    camp.ID,
		Amount:        decimal.RequireFromString("50.00"),
		PaymentMethod: domain.PaymentUPI,
		Status:        domain.StatusCompleted,
		TransactionID: &txID,
		CreatedAt:     base,
		UpdatedAt:     base,
	}
	second := &domain.Donation{
		ID:            uuid.New(),
		DonorID:       donor,
		CampaignID:    camp.ID,
		Amount:        decimal.RequireFromString("20.50"),
		PaymentMethod: domain.PaymentCard,
		Status:        domain.StatusPending,
		IsAnonymous:   true,
		CreatedAt:     base.Add(time.Minute),
		UpdatedAt:     base.Add(time.Minute),
	}
	if _, err := repo.Create(dbc, []*domain.Donation{first, second}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	testutil.SeedDonation(t, ctx, tx, camp.ID, uuid.New(), "10.25", domain.StatusCompleted, base.Add(2*time.Minute))

	got, err := repo.GetByID(dbc, first.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if !got.Amount.Equal(first.Amount) || got.Status != domain.StatusCompleted || got.TxID() != txID {
		t.Fatalf("GetByID: unexpected row %+v", got)
	}

	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: err=%v got=%v", err, missing)
	}

	locked, err := repo.LockByID(dbc, second.ID)
	if err != nil || locked == nil || locked.ID != second.ID {
		t.Fatalf("LockByID: err=%v got=%v", err, locked)
	}

	byTx, err := repo.FindByTransactionID(dbc, txID)
	if err != nil || byTx == nil || byTx.ID != first.ID {
		t.Fatalf("FindByTransactionID: err=%v got=%v", err, byTx)
	}
	if none, err := repo.FindByTransactionID(dbc, "unknown"); err != nil || none != nil {
		t.Fatalf("FindByTransactionID unknown: err=%v got=%v", err, none)
	}

	rows, total, err := repo.ListByDonor(dbc, donor, domain.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatalf("ListByDonor: %v", err)
	}
	if total != 2 || len(rows) != 2 {
		t.Fatalf("ListByDonor: want=2 got total=%d len=%d", total, len(rows))
	}
	if rows[0].ID != second.ID {
		t.Fatalf("ListByDonor order: want newest first got=%s", rows[0].ID)
	}

	public, total, err := repo.ListByCampaign(dbc, camp.ID, true, domain.Page{})
	if err != nil {
		t.Fatalf("ListByCampaign: %v", err)
	}
	if total != 2 || len(public) != 2 {
		t.Fatalf("ListByCampaign excluding anonymous: want=2 got total=%d len=%d", total, len(public))
	}
	for _, d := range public {
		if d.IsAnonymous {
			t.Fatalf("ListByCampaign: anonymous row leaked %s", d.ID)
		}
	}

	paged, total, err := repo.ListByCampaign(dbc, camp.ID, false, domain.Page{Number: 2, Size: 2})
	if err != nil {
		t.Fatalf("ListByCampaign page 2: %v", err)
	}
	if total != 3 || len(paged) != 1 || paged[0].ID != first.ID {
		t.Fatalf("ListByCampaign page 2: total=%d len=%d", total, len(paged))
	}

	pending, total, err := repo.List(dbc, domain.DonationFilter{Status: domain.StatusPending, CampaignID: camp.ID}, domain.Page{})
	if err != nil || total != 1 || len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("List pending: err=%v total=%d len=%d", err, total, len(pending))
	}

	n, err := repo.CountByCampaign(dbc, camp.ID)
	if err != nil || n != 3 {
		t.Fatalf("CountByCampaign: want=3 got=%d err=%v", n, err)
	}

	sum, err := repo.SumCompleted(dbc, camp.ID)
	if err != nil {
		t.Fatalf("SumCompleted: %v", err)
	}
	if !sum.Equal(decimal.RequireFromString("60.25")) {
		t.Fatalf("SumCompleted: want=60.25 got=%s", sum)
	}
	if zero, err := repo.SumCompleted(dbc, uuid.New()); err != nil || !zero.IsZero() {
		t.Fatalf("SumCompleted empty: want=0 got=%s err=%v", zero, err)
	}

	summary, err := repo.DonorSummary(dbc, donor)
	if err != nil {
		t.Fatalf("DonorSummary: %v", err)
	}
	if summary.Count != 2 || summary.CompletedCount != 1 || !summary.CompletedTotal.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("DonorSummary: got=%+v", summary)
	}

	if testutil.Postgres() {
		// Stats are global and the shared Postgres database carries other tests' rows.
		return
	}
	stats, err := repo.Stats(dbc, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalDonations != 3 || stats.PendingCount != 1 || stats.CompletedCount != 2 {
		t.Fatalf("Stats counts: got=%+v", stats)
	}
	if !stats.CompletedAmount.Equal(decimal.RequireFromString("60.25")) {
		t.Fatalf("Stats completed amount: want=60.25 got=%s", stats.CompletedAmount)
	}
	if stats.RecentCount != 1 || !stats.RecentAmount.Equal(decimal.RequireFromString("10.25")) {
		t.Fatalf("Stats recent: got count=%d amount=%s", stats.RecentCount, stats.RecentAmount)
	}
}

func TestDonationRepoTransactionIDUnique(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewDonationRepo(db, testutil.Logger(t))
	camp := testutil.SeedCampaign(t, ctx, tx, "0")

	now := time.Now().UTC()
	txID := "tx-dup"
	a := &domain.Donation{ID: uuid.New(), DonorID: uuid.New(), CampaignID: camp.ID, Amount: decimal.NewFromInt(5),
		PaymentMethod: domain.PaymentCard, Status: domain.StatusCompleted, TransactionID: &txID, CreatedAt: now, UpdatedAt: now}
	if _, err := repo.Create(dbctx.Context{Ctx: ctx, Tx: tx}, []*domain.Donation{a}); err != nil {
		t.Fatalf("Create first: %v", err)
	}

	// Nulls never collide.
	for i := 0; i < 2; i++ {
		testutil.SeedDonation(t, ctx, tx, camp.ID, uuid.New(), "1.00", domain.StatusPending, now)
	}

	// Postgres aborts the enclosing transaction on a constraint error, so the
	// colliding insert runs in a savepoint.
	tx.SavePoint("dup")
	b := &domain.Donation{ID: uuid.New(), DonorID: uuid.New(), CampaignID: camp.ID, Amount: decimal.NewFromInt(5),
		PaymentMethod: domain.PaymentCard, Status: domain.StatusCompleted, TransactionID: &txID, CreatedAt: now, UpdatedAt: now}
	if _, err := repo.Create(dbctx.Context{Ctx: ctx, Tx: tx}, []*domain.Donation{b}); err == nil {
		t.Fatalf("Create duplicate transaction_id: want error")
	}
	tx.RollbackTo("dup")
}
