package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	httpH "github.com/fundtracer/fundtracer-backend/internal/http/handlers"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

type Handlers struct {
	Health   *httpH.HealthHandler
	Donation *httpH.DonationHandler
	Campaign *httpH.CampaignHandler
	Admin    *httpH.AdminHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(pingDB(db)),
		Donation: httpH.NewDonationHandler(services.Donation),
		Campaign: httpH.NewCampaignHandler(services.Campaign),
		Admin:    httpH.NewAdminHandler(services.Donation),
	}
}

func pingDB(db *gorm.DB) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("db handle: %w", err)
		}
		return sqlDB.PingContext(ctx)
	}
}
