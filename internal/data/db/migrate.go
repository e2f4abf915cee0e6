package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
)

// Service is the handle app wiring holds regardless of driver.
type Service interface {
	DB() *gorm.DB
	AutoMigrateAll() error
	Close() error
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&ledger.Campaign{},
		&ledger.Donation{},
		&ledger.DonationTransition{},
	)
}

// EnsureLedgerConstraints adds the store-level guards gorm tags cannot express.
func EnsureLedgerConstraints(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{"chk_donation_amount_positive", `
			DO $$ BEGIN
				ALTER TABLE donation ADD CONSTRAINT chk_donation_amount_positive CHECK (amount > 0);
			EXCEPTION WHEN duplicate_object THEN NULL; END $$;`},
		{"chk_campaign_raised_non_negative", `
			DO $$ BEGIN
				ALTER TABLE campaign ADD CONSTRAINT chk_campaign_raised_non_negative CHECK (raised_amount >= 0);
			EXCEPTION WHEN duplicate_object THEN NULL; END $$;`},
		{"fk_donation_campaign", `
			DO $$ BEGIN
				ALTER TABLE donation ADD CONSTRAINT fk_donation_campaign
					FOREIGN KEY (campaign_id) REFERENCES campaign (id) ON DELETE RESTRICT;
			EXCEPTION WHEN duplicate_object THEN NULL; END $$;`},
		{"idx_donation_campaign_status", `
			CREATE INDEX IF NOT EXISTS idx_donation_campaign_status
			ON donation (campaign_id, status);`},
		{"idx_donation_transition_donation_created", `
			CREATE INDEX IF NOT EXISTS idx_donation_transition_donation_created
			ON donation_transition (donation_id, created_at);`},
	}
	for _, st := range stmts {
		if err := db.Exec(st.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", st.name, err)
		}
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	if err := EnsureLedgerConstraints(s.db); err != nil {
		s.log.Error("Ledger constraint migration failed", "error", err)
		return err
	}
	return nil
}
