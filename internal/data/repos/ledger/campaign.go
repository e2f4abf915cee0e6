package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

// AdjustOutcome reports what AdjustRaised did to the row.
type AdjustOutcome int

const (
	// AdjustMissing means no campaign row matched.
	AdjustMissing AdjustOutcome = iota
	AdjustApplied
	// AdjustClamped means the delta would have gone below zero and the total was pinned at 0.
	AdjustClamped
)

type CampaignRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Campaign) ([]*domain.Campaign, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Campaign, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Campaign, error)
	// ShareLockByID holds the row against deletion without blocking other sharers.
	ShareLockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Campaign, error)
	ListIDs(dbc dbctx.Context) ([]uuid.UUID, error)

	// AdjustRaised applies delta with a single statement evaluated by the store.
	AdjustRaised(dbc dbctx.Context, id uuid.UUID, delta decimal.Decimal, now time.Time) (AdjustOutcome, error)
	SetRaised(dbc dbctx.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) error

	Delete(dbc dbctx.Context, id uuid.UUID) (bool, error)
}

type campaignRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCampaignRepo(db *gorm.DB, baseLog *logger.Logger) CampaignRepo {
	return &campaignRepo{db: db, log: baseLog.With("repo", "CampaignRepo")}
}

func (r *campaignRepo) Create(dbc dbctx.Context, rows []*domain.Campaign) ([]*domain.Campaign, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*domain.Campaign{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *campaignRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Campaign, error) {
	return r.find(dbc, id, nil)
}

func (r *campaignRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Campaign, error) {
	return r.find(dbc, id, &clause.Locking{Strength: "UPDATE"})
}

func (r *campaignRepo) ShareLockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Campaign, error) {
	return r.find(dbc, id, &clause.Locking{Strength: "SHARE"})
}

func (r *campaignRepo) find(dbc dbctx.Context, id uuid.UUID, lock *clause.Locking) (*domain.Campaign, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx)
	if lock != nil {
		q = q.Clauses(*lock)
	}
	var row domain.Campaign
	if err := q.Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	// SQLite keeps numeric columns as binary floats; normalize to cents on the way out.
	row.RaisedAmount = row.RaisedAmount.Round(domain.AmountScale)
	row.GoalAmount = row.GoalAmount.Round(domain.AmountScale)
	return &row, nil
}

func (r *campaignRepo) ListIDs(dbc dbctx.Context) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var ids []uuid.UUID
	err := t.WithContext(dbc.Ctx).
		Model(&domain.Campaign{}).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *campaignRepo) AdjustRaised(dbc dbctx.Context, id uuid.UUID, delta decimal.Decimal, now time.Time) (AdjustOutcome, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return AdjustMissing, nil
	}
	res := t.WithContext(dbc.Ctx).
		Model(&domain.Campaign{}).
		Where("id = ? AND raised_amount + ? >= 0", id, delta).
		Updates(map[string]interface{}{
			"raised_amount": gorm.Expr("ROUND(raised_amount + ?, 2)", delta),
			"updated_at":    now,
		})
	if res.Error != nil {
		return AdjustMissing, res.Error
	}
	if res.RowsAffected > 0 {
		return AdjustApplied, nil
	}

	// The guarded increment matched nothing: either the row is gone or the
	// total would go negative. Pin it at zero so the stored value stays legal.
	res = t.WithContext(dbc.Ctx).
		Model(&domain.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"raised_amount": decimal.Zero,
			"updated_at":    now,
		})
	if res.Error != nil {
		return AdjustMissing, res.Error
	}
	if res.RowsAffected == 0 {
		return AdjustMissing, nil
	}
	r.log.Error("Campaign raised amount clamped at zero", "campaign_id", id, "delta", delta.String())
	return AdjustClamped, nil
}

func (r *campaignRepo) SetRaised(dbc dbctx.Context, id uuid.UUID, amount decimal.Decimal, now time.Time) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx).
		Model(&domain.Campaign{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"raised_amount": amount.Round(domain.AmountScale),
			"updated_at":    now,
		}).Error
}

func (r *campaignRepo) Delete(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := t.WithContext(dbc.Ctx).Where("id = ?", id).Delete(&domain.Campaign{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
