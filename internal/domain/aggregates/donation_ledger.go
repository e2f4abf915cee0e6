package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
)

// DonationLedgerAggregateContract owns every write to donation status and campaign raised_amount.
var DonationLedgerAggregateContract = Contract{
	Name:        "donation_ledger",
	OwnedTables: []string{"donation", "campaign", "donation_transition"},
	Invariant:   "campaign.raised_amount equals the sum of its COMPLETED donations",
}

// DonationLedgerAggregate is the only writer of donation status and campaign totals.
type DonationLedgerAggregate interface {
	Aggregate

	CreateDonation(ctx context.Context, in CreateDonationInput) (CreateDonationResult, error)
	Transition(ctx context.Context, in TransitionDonationInput) (TransitionDonationResult, error)

	RegisterCampaign(ctx context.Context, in RegisterCampaignInput) (*ledger.Campaign, error)
	DeleteCampaign(ctx context.Context, campaignID uuid.UUID) error

	Reconcile(ctx context.Context, campaignID uuid.UUID) (ReconcileResult, error)
	Verify(ctx context.Context, campaignID uuid.UUID) (ReconcileResult, error)
}

type CreateDonationInput struct {
	DonationID    uuid.UUID
	DonorID       uuid.UUID
	CampaignID    uuid.UUID
	Amount        decimal.Decimal
	PaymentMethod ledger.PaymentMethod
	Message       *string
	IsAnonymous   bool
	CreatedAt     time.Time
}

type CreateDonationResult struct {
	Donation *ledger.Donation
}

// AuthorizeFunc runs against the locked donation before any validation.
type AuthorizeFunc func(d *ledger.Donation, to ledger.DonationStatus, transactionID string) error

type TransitionDonationInput struct {
	DonationID    uuid.UUID
	To            ledger.DonationStatus
	TransactionID string

	ActorID   uuid.UUID
	ActorRole string
	Reason    string

	Authorize AuthorizeFunc
	At        time.Time
}

type TransitionDonationResult struct {
	Donation *ledger.Donation
	Campaign *ledger.Campaign
	Plan     ledger.TransitionPlan
	Audit    *ledger.DonationTransition
	// Clamped is set when the campaign total would have gone negative and was pinned at zero.
	Clamped bool
}

type RegisterCampaignInput struct {
	CampaignID uuid.UUID
	OwnerID    uuid.UUID
	Title      string
	GoalAmount decimal.Decimal
	IsActive   bool
	CreatedAt  time.Time
}

// ReconcileResult compares the stored campaign total with the total recomputed from donations.
type ReconcileResult struct {
	CampaignID uuid.UUID
	Recorded   decimal.Decimal
	Computed   decimal.Decimal
	Drift      decimal.Decimal
	Repaired   bool
	CheckedAt  time.Time
}

func (r ReconcileResult) Consistent() bool {
	return r.Drift.IsZero()
}
