package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
)

func SeedCampaign(tb testing.TB, ctx context.Context, tx *gorm.DB, goal string) *ledger.Campaign {
	tb.Helper()
	now := time.Now().UTC()
	c := &ledger.Campaign{
		ID:           uuid.New(),
		OwnerID:      uuid.New(),
		Title:        "campaign",
		GoalAmount:   decimal.RequireFromString(goal),
		RaisedAmount: decimal.Zero,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed campaign: %v", err)
	}
	return c
}

// SeedDonation inserts a donation row directly, bypassing the ledger.
// Callers seeding COMPLETED rows own keeping raised_amount in step.
func SeedDonation(tb testing.TB, ctx context.Context, tx *gorm.DB, campaignID, donorID uuid.UUID, amount string, status ledger.DonationStatus, at time.Time) *ledger.Donation {
	tb.Helper()
	d := &ledger.Donation{
		ID:            uuid.New(),
		DonorID:       donorID,
		CampaignID:    campaignID,
		Amount:        decimal.RequireFromString(amount),
		PaymentMethod: ledger.PaymentCard,
		Status:        status,
		CreatedAt:     at.UTC(),
		UpdatedAt:     at.UTC(),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed donation: %v", err)
	}
	return d
}

func RaisedAmount(tb testing.TB, ctx context.Context, tx *gorm.DB, campaignID uuid.UUID) decimal.Decimal {
	tb.Helper()
	var c ledger.Campaign
	if err := tx.WithContext(ctx).Where("id = ?", campaignID).Take(&c).Error; err != nil {
		tb.Fatalf("load campaign: %v", err)
	}
	return c.RaisedAmount
}
