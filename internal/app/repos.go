package app

import (
	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/data/repos"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

type Repos struct {
	Donation           repos.DonationRepo
	Campaign           repos.CampaignRepo
	DonationTransition repos.DonationTransitionRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Donation:           repos.NewDonationRepo(db, log),
		Campaign:           repos.NewCampaignRepo(db, log),
		DonationTransition: repos.NewDonationTransitionRepo(db, log),
	}
}
