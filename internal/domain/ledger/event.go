package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const EventStatusChanged = "donation.status_changed"

// StatusChangedEvent is published after a transition commits. Replays publish nothing.
type StatusChangedEvent struct {
	Type          string          `json:"type"`
	DonationID    uuid.UUID       `json:"donation_id"`
	CampaignID    uuid.UUID       `json:"campaign_id"`
	DonorID       uuid.UUID       `json:"donor_id"`
	From          DonationStatus  `json:"from_status"`
	To            DonationStatus  `json:"to_status"`
	Amount        decimal.Decimal `json:"amount"`
	RaisedAmount  decimal.Decimal `json:"raised_amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
	IsAnonymous   bool            `json:"is_anonymous"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewStatusChangedEvent(d *Donation, c *Campaign, from DonationStatus, at time.Time) StatusChangedEvent {
	ev := StatusChangedEvent{
		Type:       EventStatusChanged,
		From:       from,
		OccurredAt: at.UTC(),
	}
	if d != nil {
		ev.DonationID = d.ID
		ev.CampaignID = d.CampaignID
		ev.DonorID = d.DonorID
		ev.To = d.Status
		ev.Amount = d.Amount
		ev.TransactionID = d.TxID()
		ev.IsAnonymous = d.IsAnonymous
	}
	if c != nil {
		ev.RaisedAmount = c.RaisedAmount
	}
	return ev
}
