package ledger

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	domain "github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

// DonationTransitionRepo stores the append-only transition audit trail.
type DonationTransitionRepo interface {
	Create(dbc dbctx.Context, rows []*domain.DonationTransition) ([]*domain.DonationTransition, error)
	ListByDonation(dbc dbctx.Context, donationID uuid.UUID) ([]*domain.DonationTransition, error)
}

type donationTransitionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDonationTransitionRepo(db *gorm.DB, baseLog *logger.Logger) DonationTransitionRepo {
	return &donationTransitionRepo{db: db, log: baseLog.With("repo", "DonationTransitionRepo")}
}

func (r *donationTransitionRepo) Create(dbc dbctx.Context, rows []*domain.DonationTransition) ([]*domain.DonationTransition, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*domain.DonationTransition{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *donationTransitionRepo) ListByDonation(dbc dbctx.Context, donationID uuid.UUID) ([]*domain.DonationTransition, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := []*domain.DonationTransition{}
	if donationID == uuid.Nil {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("donation_id = ?", donationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
