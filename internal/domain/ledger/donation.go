package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Donation is a single pledged payment against a campaign.
// Amount never changes after creation; Status only changes through the transition table.
type Donation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DonorID    uuid.UUID `gorm:"type:uuid;not null;index" json:"donor_id"`
	CampaignID uuid.UUID `gorm:"type:uuid;not null;index:idx_donation_campaign_created,priority:1" json:"campaign_id"`

	Amount        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"column:payment_method;size:50;not null" json:"payment_method"`

	Status DonationStatus `gorm:"column:status;size:20;not null;index" json:"status"`
	// Unique when present: one external payment event credits at most one donation.
	TransactionID *string `gorm:"column:transaction_id;size:255;uniqueIndex:idx_donation_transaction_id" json:"transaction_id,omitempty"`

	Message     *string `gorm:"column:message;type:text" json:"message,omitempty"`
	IsAnonymous bool    `gorm:"column:is_anonymous;not null;index" json:"is_anonymous"`

	Version int `gorm:"column:version;not null" json:"-"`

	CreatedAt time.Time `gorm:"not null;index;index:idx_donation_campaign_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Donation) TableName() string { return "donation" }

// TxID returns the bound external transaction id or "".
func (d *Donation) TxID() string {
	if d == nil || d.TransactionID == nil {
		return ""
	}
	return *d.TransactionID
}

// Campaign is the subset of the campaign entity the ledger owns.
// RaisedAmount is written only by committed transitions and by reconciliation.
type Campaign struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	OwnerID uuid.UUID `gorm:"type:uuid;index" json:"owner_id"`
	Title   string    `gorm:"size:255;not null" json:"title"`

	GoalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"goal_amount"`
	RaisedAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"raised_amount"`

	IsActive bool `gorm:"not null" json:"is_active"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Campaign) TableName() string { return "campaign" }

// ProgressPercentage of the goal reached, zero for campaigns without a goal.
func (c *Campaign) ProgressPercentage() decimal.Decimal {
	if c == nil {
		return decimal.Zero
	}
	return ProgressPercentage(c.RaisedAmount, c.GoalAmount)
}

// DonationTransition is the append-only audit row written with every committed transition.
type DonationTransition struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	DonationID uuid.UUID `gorm:"type:uuid;not null;index" json:"donation_id"`
	CampaignID uuid.UUID `gorm:"type:uuid;not null;index" json:"campaign_id"`

	FromStatus DonationStatus `gorm:"column:from_status;size:20;not null" json:"from_status"`
	ToStatus   DonationStatus `gorm:"column:to_status;size:20;not null;index" json:"to_status"`

	// Signed amount applied to the campaign aggregate.
	Delta decimal.Decimal `gorm:"type:numeric(13,2);not null" json:"delta"`

	TransactionID string    `gorm:"column:transaction_id;size:255" json:"transaction_id,omitempty"`
	ActorID       uuid.UUID `gorm:"type:uuid" json:"actor_id"`
	ActorRole     string    `gorm:"column:actor_role;size:20" json:"actor_role"`
	Reason        string    `gorm:"column:reason;type:text" json:"reason,omitempty"`

	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (DonationTransition) TableName() string { return "donation_transition" }
