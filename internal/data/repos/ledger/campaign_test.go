package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/data/repos/testutil"
	domain "github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
)

func TestCampaignRepoAdjustRaised(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCampaignRepo(db, testutil.Logger(t))
	camp := testutil.SeedCampaign(t, ctx, tx, "200.00")
	now := time.Now().UTC()

	steps := []struct {
		delta   string
		outcome AdjustOutcome
		raised  string
	}{
		{"50.00", AdjustApplied, "50.00"},
		{"25.50", AdjustApplied, "75.50"},
		{"-75.50", AdjustApplied, "0"},
		{"10.00", AdjustApplied, "10.00"},
		{"-30.00", AdjustClamped, "0"},
	}
	for i, st := range steps {
		out, err := repo.AdjustRaised(dbc, camp.ID, decimal.RequireFromString(st.delta), now)
		if err != nil {
			t.Fatalf("step %d AdjustRaised: %v", i, err)
		}
		if out != st.outcome {
			t.Fatalf("step %d outcome: want=%v got=%v", i, st.outcome, out)
		}
		got := testutil.RaisedAmount(t, ctx, tx, camp.ID)
		if !got.Equal(decimal.RequireFromString(st.raised)) {
			t.Fatalf("step %d raised: want=%s got=%s", i, st.raised, got)
		}
	}

	out, err := repo.AdjustRaised(dbc, uuid.New(), decimal.NewFromInt(1), now)
	if err != nil || out != AdjustMissing {
		t.Fatalf("AdjustRaised missing: want=%v got=%v err=%v", AdjustMissing, out, err)
	}
}

func TestCampaignRepoAdjustRaisedCents(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCampaignRepo(db, testutil.Logger(t))
	camp := testutil.SeedCampaign(t, ctx, tx, "10.00")
	now := time.Now().UTC()

	for _, d := range []string{"0.10", "0.20", "0.07"} {
		if _, err := repo.AdjustRaised(dbc, camp.ID, decimal.RequireFromString(d), now); err != nil {
			t.Fatalf("AdjustRaised %s: %v", d, err)
		}
	}
	got, err := repo.GetByID(dbc, camp.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if !got.RaisedAmount.Equal(decimal.RequireFromString("0.37")) {
		t.Fatalf("raised: want=0.37 got=%s", got.RaisedAmount)
	}
	if raw := testutil.RaisedAmount(t, ctx, tx, camp.ID); !raw.Equal(decimal.RequireFromString("0.37")) {
		t.Fatalf("stored raised: want=0.37 got=%s", raw)
	}
}

// Separate transactions racing on one row must not lose increments.
func TestCampaignRepoAdjustRaisedConcurrent(t *testing.T) {
	if !testutil.Postgres() {
		t.Skip("row-level contention needs TEST_POSTGRES_DSN")
	}
	db := testutil.DB(t)
	ctx := context.Background()
	repo := NewCampaignRepo(db, testutil.Logger(t))
	camp := testutil.SeedCampaign(t, ctx, db, "1000.00")
	t.Cleanup(func() { db.Exec("DELETE FROM campaign WHERE id = ?", camp.ID) })

	const n = 40
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				_, err := repo.AdjustRaised(dbctx.Context{Ctx: ctx, Tx: tx}, camp.ID, decimal.RequireFromString("0.07"), time.Now().UTC())
				return err
			})
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("AdjustRaised: %v", err)
	}
	if got := testutil.RaisedAmount(t, ctx, db, camp.ID); !got.Equal(decimal.RequireFromString("2.80")) {
		t.Fatalf("raised: want=2.80 got=%s", got)
	}
}

func TestCampaignRepoCRUD(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCampaignRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	c := &domain.Campaign{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		Title:        "wells",
		GoalAmount:   decimal.RequireFromString("500.00"),
		RaisedAmount: decimal.Zero,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := repo.Create(dbc, []*domain.Campaign{c}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	locked, err := repo.LockByID(dbc, c.ID)
	if err != nil || locked == nil || locked.Title != "wells" {
		t.Fatalf("LockByID: err=%v got=%v", err, locked)
	}

	if err := repo.SetRaised(dbc, c.ID, decimal.RequireFromString("125.25"), now); err != nil {
		t.Fatalf("SetRaised: %v", err)
	}
	got, err := repo.GetByID(dbc, c.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: err=%v got=%v", err, got)
	}
	if !got.RaisedAmount.Equal(decimal.RequireFromString("125.25")) {
		t.Fatalf("raised: want=125.25 got=%s", got.RaisedAmount)
	}
	if pct := got.ProgressPercentage(); !pct.Equal(decimal.RequireFromString("25.05")) {
		t.Fatalf("progress: want=25.05 got=%s", pct)
	}

	ids, err := repo.ListIDs(dbc)
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	found := false
	for _, id := range ids {
		found = found || id == c.ID
	}
	if !found {
		t.Fatalf("ListIDs: missing %s in %v", c.ID, ids)
	}

	deleted, err := repo.Delete(dbc, c.ID)
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}
	if again, err := repo.Delete(dbc, c.ID); err != nil || again {
		t.Fatalf("Delete again: deleted=%v err=%v", again, err)
	}
}

func TestDonationTransitionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewDonationTransitionRepo(db, testutil.Logger(t))

	donationID := uuid.New()
	campaignID := uuid.New()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := []*domain.DonationTransition{
		{ID: uuid.New(), DonationID: donationID, CampaignID: campaignID, FromStatus: domain.StatusCompleted,
			ToStatus: domain.StatusRefunded, Delta: decimal.RequireFromString("-5.00"), CreatedAt: base.Add(time.Hour)},
		{ID: uuid.New(), DonationID: donationID, CampaignID: campaignID, FromStatus: domain.StatusPending,
			ToStatus: domain.StatusCompleted, Delta: decimal.RequireFromString("5.00"), TransactionID: "tx-1", CreatedAt: base},
	}
	if _, err := repo.Create(dbc, rows); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.ListByDonation(dbc, donationID)
	if err != nil {
		t.Fatalf("ListByDonation: %v", err)
	}
	if len(got) != 2 || got[0].ToStatus != domain.StatusCompleted || got[1].ToStatus != domain.StatusRefunded {
		t.Fatalf("ListByDonation order: got=%v", got)
	}
	if !got[1].Delta.Equal(decimal.RequireFromString("-5")) {
		t.Fatalf("delta: want=-5 got=%s", got[1].Delta)
	}
}
