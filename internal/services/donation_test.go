package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/data/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/data/repos"
	repotest "github.com/fundtracer/fundtracer-backend/internal/data/repos/testutil"
	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/observability"
)

type spyPublisher struct {
	mu     sync.Mutex
	events []ledger.StatusChangedEvent
	err    error
}

func (p *spyPublisher) Publish(_ context.Context, ev ledger.StatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *spyPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type serviceFixture struct {
	db        *gorm.DB
	donations DonationService
	campaigns CampaignLedgerService
	events    *spyPublisher
	metrics   *observability.Metrics
	admin     Actor
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db := repotest.DB(t)
	log := repotest.Logger(t)
	donationRepo := repos.NewDonationRepo(db, log)
	campaignRepo := repos.NewCampaignRepo(db, log)
	transitionRepo := repos.NewDonationTransitionRepo(db, log)
	metrics := observability.New(observability.Options{Enabled: true})

	agg := aggregates.NewDonationLedgerAggregate(aggregates.DonationLedgerAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
			Retry: aggregates.RetryPolicy{MaxAttempts: 2, MinBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, AttemptTimeout: 10 * time.Second},
		},
		Donations:   donationRepo,
		Campaigns:   campaignRepo,
		Transitions: transitionRepo,
	})
	events := &spyPublisher{}
	return &serviceFixture{
		db: db,
		donations: NewDonationService(DonationServiceDeps{
			Log:         log,
			Ledger:      agg,
			Donations:   donationRepo,
			Campaigns:   campaignRepo,
			Transitions: transitionRepo,
			Events:      events,
			Metrics:     metrics,
		}),
		campaigns: NewCampaignLedgerService(log, agg, campaignRepo),
		events:    events,
		metrics:   metrics,
		admin:     Actor{ID: uuid.New(), Role: RoleAdmin},
	}
}

func (f *serviceFixture) campaign(t *testing.T, goal string) *ledger.Campaign {
	t.Helper()
	c, err := f.campaigns.Register(context.Background(), f.admin, RegisterCampaignRequest{Title: "school roof", GoalAmount: goal})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return c
}

func (f *serviceFixture) raised(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	view, err := f.campaigns.Ledger(context.Background(), id)
	if err != nil {
		t.Fatalf("Ledger: %v", err)
	}
	return view.RaisedAmount
}

func TestDonationServiceScenario(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "200.00")
	donor := Actor{ID: uuid.New(), Role: RoleDonor}

	d, err := f.donations.Create(ctx, donor, CreateDonationRequest{CampaignID: c.ID, Amount: "50.00"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.Status != ledger.StatusPending || d.PaymentMethod != ledger.PaymentCard {
		t.Fatalf("created donation: want=PENDING/card got=%s/%s", d.Status, d.PaymentMethod)
	}

	out, err := f.donations.Transition(ctx, donor, TransitionRequest{DonationID: d.ID, Status: "completed", TransactionID: "tx-100"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !out.Campaign.RaisedAmount.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("raised after complete: want=50 got=%s", out.Campaign.RaisedAmount)
	}
	if f.events.count() != 1 {
		t.Fatalf("events after complete: want=1 got=%d", f.events.count())
	}

	replay, err := f.donations.Transition(ctx, donor, TransitionRequest{DonationID: d.ID, Status: "COMPLETED", TransactionID: "tx-100"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !replay.Replayed {
		t.Fatalf("replay flag: want=true got=false")
	}
	if f.events.count() != 1 {
		t.Fatalf("events after replay: want=1 got=%d", f.events.count())
	}

	_, err = f.donations.Transition(ctx, donor, TransitionRequest{DonationID: d.ID, Status: "REFUNDED"})
	if !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("donor refund: want=forbidden got=%v", err)
	}

	if _, err := f.donations.Transition(ctx, f.admin, TransitionRequest{DonationID: d.ID, Status: "REFUNDED", Reason: "chargeback"}); err != nil {
		t.Fatalf("admin refund: %v", err)
	}
	if got := f.raised(t, c.ID); !got.IsZero() {
		t.Fatalf("raised after refund: want=0 got=%s", got)
	}

	_, err = f.donations.Transition(ctx, f.admin, TransitionRequest{DonationID: d.ID, Status: "COMPLETED", TransactionID: "tx-101"})
	if !domainagg.IsCode(err, domainagg.CodeInvalidTransition) {
		t.Fatalf("complete after refund: want=invalid_transition got=%v", err)
	}

	history, err := f.donations.History(ctx, donor, d.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history rows: want=2 got=%d", len(history))
	}
	if history[1].ToStatus != ledger.StatusRefunded || history[1].Reason != "chargeback" || history[1].ActorRole != string(RoleAdmin) {
		t.Fatalf("refund audit row: got=%+v", history[1])
	}
	if got := f.metrics.ConsistencyAnomalies("Ledger.Donation.Transition"); got != 0 {
		t.Fatalf("anomalies: want=0 got=%v", got)
	}
}

func TestDonationServiceCreateValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "100.00")
	donor := Actor{ID: uuid.New(), Role: RoleDonor}

	cases := []struct {
		name string
		req  CreateDonationRequest
	}{
		{"zero amount", CreateDonationRequest{CampaignID: c.ID, Amount: "0"}},
		{"negative amount", CreateDonationRequest{CampaignID: c.ID, Amount: "-5"}},
		{"three decimals", CreateDonationRequest{CampaignID: c.ID, Amount: "1.005"}},
		{"garbage amount", CreateDonationRequest{CampaignID: c.ID, Amount: "ten"}},
		{"unknown method", CreateDonationRequest{CampaignID: c.ID, Amount: "5", PaymentMethod: "cheque"}},
		{"missing campaign", CreateDonationRequest{CampaignID: uuid.New(), Amount: "5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.donations.Create(ctx, donor, tc.req)
			if !domainagg.IsCode(err, domainagg.CodeValidation) {
				t.Fatalf("Create: want=validation got=%v", err)
			}
		})
	}

	if _, err := f.donations.Create(ctx, Actor{}, CreateDonationRequest{CampaignID: c.ID, Amount: "5"}); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("anonymous caller: want=forbidden got=%v", err)
	}
}

func TestDonationServiceVisibility(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "100.00")
	donor := Actor{ID: uuid.New(), Role: RoleDonor}
	stranger := Actor{ID: uuid.New(), Role: RoleDonor}

	hidden := "thanks"
	d, err := f.donations.Create(ctx, donor, CreateDonationRequest{CampaignID: c.ID, Amount: "12.50", Message: &hidden, IsAnonymous: true})
	if err != nil {
		t.Fatalf("Create anonymous: %v", err)
	}
	if _, err := f.donations.Create(ctx, donor, CreateDonationRequest{CampaignID: c.ID, Amount: "7.50", PaymentMethod: "upi"}); err != nil {
		t.Fatalf("Create public: %v", err)
	}

	if _, err := f.donations.Get(ctx, stranger, d.ID); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("stranger Get: want=not_found got=%v", err)
	}
	if _, err := f.donations.Get(ctx, f.admin, d.ID); err != nil {
		t.Fatalf("admin Get: %v", err)
	}

	public, err := f.donations.ListByCampaign(ctx, c.ID, ledger.Page{})
	if err != nil {
		t.Fatalf("ListByCampaign: %v", err)
	}
	if public.Total != 1 || len(public.Items) != 1 || public.Items[0].IsAnonymous {
		t.Fatalf("public listing: want=1 non-anonymous got total=%d items=%d", public.Total, len(public.Items))
	}

	if _, err := f.donations.ListByCampaign(ctx, uuid.New(), ledger.Page{}); !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown campaign listing: want=%s got=%v", domainagg.CodeNotFound, err)
	}

	mine, err := f.donations.ListMine(ctx, donor, ledger.Page{Number: 1, Size: 1})
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if mine.Total != 2 || len(mine.Items) != 1 || mine.NextPage() != 2 {
		t.Fatalf("ListMine page: total=%d items=%d next=%d", mine.Total, len(mine.Items), mine.NextPage())
	}

	sum, err := f.donations.Summary(ctx, donor)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Count != 2 || sum.CompletedCount != 0 || !sum.CompletedTotal.IsZero() {
		t.Fatalf("Summary: got=%+v", sum)
	}

	if _, err := f.donations.AdminList(ctx, donor, ledger.DonationFilter{}, ledger.Page{}); !domainagg.IsCode(err, domainagg.CodeForbidden) {
		t.Fatalf("donor AdminList: want=forbidden got=%v", err)
	}
	all, err := f.donations.AdminList(ctx, f.admin, ledger.DonationFilter{CampaignID: c.ID, Status: ledger.StatusPending}, ledger.Page{})
	if err != nil {
		t.Fatalf("AdminList: %v", err)
	}
	if all.Total != 2 || all.Page.Size != ledger.DefaultAdminPageSize {
		t.Fatalf("AdminList: total=%d size=%d", all.Total, all.Page.Size)
	}
	if _, err := f.donations.AdminList(ctx, f.admin, ledger.DonationFilter{Status: "LOST"}, ledger.Page{}); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("AdminList bad status: want=validation got=%v", err)
	}
}

func TestDonationServiceDuplicateTransaction(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "100.00")
	donor := Actor{ID: uuid.New(), Role: RoleDonor}
	txID := "dup-" + uuid.NewString()

	first, _ := f.donations.Create(ctx, donor, CreateDonationRequest{CampaignID: c.ID, Amount: "10"})
	second, _ := f.donations.Create(ctx, donor, CreateDonationRequest{CampaignID: c.ID, Amount: "10"})
	if first == nil || second == nil {
		t.Fatalf("Create returned nil donation")
	}
	if _, err := f.donations.Transition(ctx, donor, TransitionRequest{DonationID: first.ID, Status: "COMPLETED", TransactionID: txID}); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	_, err := f.donations.Transition(ctx, donor, TransitionRequest{DonationID: second.ID, Status: "COMPLETED", TransactionID: txID})
	if !domainagg.IsCode(err, domainagg.CodeDuplicateTransaction) {
		t.Fatalf("second complete: want=duplicate_transaction got=%v", err)
	}
	if got := f.raised(t, c.ID); !got.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("raised: want=10 got=%s", got)
	}
}

func TestDonationServicePublishFailureDoesNotFailTransition(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.events.err = errors.New("redis down")
	c := f.campaign(t, "100.00")
	donor := Actor{ID: uuid.New(), Role: RoleDonor}
	d, err := f.donations.Create(ctx, donor, CreateDonationRequest{CampaignID: c.ID, Amount: "5"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.donations.Transition(ctx, donor, TransitionRequest{DonationID: d.ID, Status: "FAILED"}); err != nil {
		t.Fatalf("Transition with failing publisher: %v", err)
	}
	if f.events.count() != 1 {
		t.Fatalf("publish attempts: want=1 got=%d", f.events.count())
	}
}

func TestDonationServiceStats(t *testing.T) {
	if repotest.Postgres() {
		t.Skip("stats are global on a shared database")
	}
	f := newServiceFixture(t)
	ctx := context.Background()
	c := f.campaign(t, "100.00")
	donor := Actor{ID: uuid.New(), Role: RoleDonor}
	for i, amount := range []string{"10", "20", "30"} {
		d, err := f.donations.Create(ctx, donor, CreateDonationRequest{CampaignID: c.ID, Amount: amount})
		if err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
		if i < 2 {
			if _, err := f.donations.Transition(ctx, f.admin, TransitionRequest{DonationID: d.ID, Status: "COMPLETED"}); err != nil {
				t.Fatalf("complete %d: %v", i, err)
			}
		}
	}
	stats, err := f.donations.Stats(ctx, f.admin)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalDonations != 3 || stats.PendingCount != 1 || stats.CompletedCount != 2 {
		t.Fatalf("Stats counts: got=%+v", stats)
	}
	if !stats.CompletedAmount.Equal(decimal.RequireFromString("30")) {
		t.Fatalf("Stats completed amount: want=30 got=%s", stats.CompletedAmount)
	}
	if stats.RecentCount != 3 {
		t.Fatalf("Stats recent: want=3 got=%d", stats.RecentCount)
	}
}
