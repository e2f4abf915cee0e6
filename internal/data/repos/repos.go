package repos

import (
	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/data/repos/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

type DonationRepo = ledger.DonationRepo
type CampaignRepo = ledger.CampaignRepo
type DonationTransitionRepo = ledger.DonationTransitionRepo

type DonorSummary = ledger.DonorSummary
type DonationStats = ledger.Stats
type AdjustOutcome = ledger.AdjustOutcome

const (
	AdjustMissing = ledger.AdjustMissing
	AdjustApplied = ledger.AdjustApplied
	AdjustClamped = ledger.AdjustClamped
)

func NewDonationRepo(db *gorm.DB, baseLog *logger.Logger) DonationRepo {
	return ledger.NewDonationRepo(db, baseLog)
}
func NewCampaignRepo(db *gorm.DB, baseLog *logger.Logger) CampaignRepo {
	return ledger.NewCampaignRepo(db, baseLog)
}
func NewDonationTransitionRepo(db *gorm.DB, baseLog *logger.Logger) DonationTransitionRepo {
	return ledger.NewDonationTransitionRepo(db, baseLog)
}
