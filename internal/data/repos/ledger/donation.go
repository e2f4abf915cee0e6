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

// DonationRepo is the donation record store. Status writes are not exposed here:
// they go through the ledger aggregate's guarded compare-and-set.
type DonationRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Donation) ([]*domain.Donation, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Donation, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Donation, error)
	FindByTransactionID(dbc dbctx.Context, txID string) (*domain.Donation, error)

	ListByDonor(dbc dbctx.Context, donorID uuid.UUID, page domain.Page) ([]*domain.Donation, int64, error)
	ListByCampaign(dbc dbctx.Context, campaignID uuid.UUID, excludeAnonymous bool, page domain.Page) ([]*domain.Donation, int64, error)
	List(dbc dbctx.Context, filter domain.DonationFilter, page domain.Page) ([]*domain.Donation, int64, error)

	CountByCampaign(dbc dbctx.Context, campaignID uuid.UUID) (int64, error)
	SumCompleted(dbc dbctx.Context, campaignID uuid.UUID) (decimal.Decimal, error)
	DonorSummary(dbc dbctx.Context, donorID uuid.UUID) (DonorSummary, error)
	Stats(dbc dbctx.Context, since time.Time) (Stats, error)
}

type DonorSummary struct {
	Count          int64
	CompletedCount int64
	CompletedTotal decimal.Decimal
}

type Stats struct {
	TotalDonations  int64
	PendingCount    int64
	CompletedCount  int64
	FailedCount     int64
	RefundedCount   int64
	CompletedAmount decimal.Decimal
	RecentCount     int64
	RecentAmount    decimal.Decimal
}

type donationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDonationRepo(db *gorm.DB, baseLog *logger.Logger) DonationRepo {
	return &donationRepo{db: db, log: baseLog.With("repo", "DonationRepo")}
}

func (r *donationRepo) Create(dbc dbctx.Context, rows []*domain.Donation) ([]*domain.Donation, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*domain.Donation{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *donationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Donation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.Donation
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *donationRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Donation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.Donation
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *donationRepo) FindByTransactionID(dbc dbctx.Context, txID string) (*domain.Donation, error) {
	if txID == "" {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.Donation
	if err := t.WithContext(dbc.Ctx).Where("transaction_id = ?", txID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *donationRepo) ListByDonor(dbc dbctx.Context, donorID uuid.UUID, page domain.Page) ([]*domain.Donation, int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Model(&domain.Donation{}).Where("donor_id = ?", donorID)
	return r.paged(q, page)
}

func (r *donationRepo) ListByCampaign(dbc dbctx.Context, campaignID uuid.UUID, excludeAnonymous bool, page domain.Page) ([]*domain.Donation, int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Model(&domain.Donation{}).Where("campaign_id = ?", campaignID)
	if excludeAnonymous {
		q = q.Where("is_anonymous = ?", false)
	}
	return r.paged(q, page)
}

func (r *donationRepo) List(dbc dbctx.Context, filter domain.DonationFilter, page domain.Page) ([]*domain.Donation, int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Model(&domain.Donation{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.CampaignID != uuid.Nil {
		q = q.Where("campaign_id = ?", filter.CampaignID)
	}
	return r.paged(q, page)
}

// paged counts q and returns one page of it newest first.
func (r *donationRepo) paged(q *gorm.DB, page domain.Page) ([]*domain.Donation, int64, error) {
	page = page.Normalize(domain.DefaultPageSize)
	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	out := []*domain.Donation{}
	if total == 0 || int64(page.Offset()) >= total {
		return out, total, nil
	}
	err := q.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *donationRepo) CountByCampaign(dbc dbctx.Context, campaignID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := t.WithContext(dbc.Ctx).
		Model(&domain.Donation{}).
		Where("campaign_id = ?", campaignID).
		Count(&n).Error
	return n, err
}

func (r *donationRepo) SumCompleted(dbc dbctx.Context, campaignID uuid.UUID) (decimal.Decimal, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var sum decimal.NullDecimal
	err := t.WithContext(dbc.Ctx).
		Model(&domain.Donation{}).
		Select("SUM(amount)").
		Where("campaign_id = ? AND status = ?", campaignID, domain.StatusCompleted).
		Row().
		Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal.Round(domain.AmountScale), nil
}

type statusAgg struct {
	Status string
	N      int64
	Total  decimal.NullDecimal
}

func (r *donationRepo) groupByStatus(q *gorm.DB) ([]statusAgg, error) {
	var rows []statusAgg
	err := q.Select("status AS status, COUNT(*) AS n, SUM(amount) AS total").
		Group("status").
		Scan(&rows).Error
	return rows, err
}

func (r *donationRepo) DonorSummary(dbc dbctx.Context, donorID uuid.UUID) (DonorSummary, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := DonorSummary{CompletedTotal: decimal.Zero}
	rows, err := r.groupByStatus(t.WithContext(dbc.Ctx).Model(&domain.Donation{}).Where("donor_id = ?", donorID))
	if err != nil {
		return out, err
	}
	for _, row := range rows {
		out.Count += row.N
		if domain.DonationStatus(row.Status) == domain.StatusCompleted {
			out.CompletedCount = row.N
			if row.Total.Valid {
				out.CompletedTotal = row.Total.Decimal.Round(domain.AmountScale)
			}
		}
	}
	return out, nil
}

func (r *donationRepo) Stats(dbc dbctx.Context, since time.Time) (Stats, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	out := Stats{CompletedAmount: decimal.Zero, RecentAmount: decimal.Zero}
	rows, err := r.groupByStatus(t.WithContext(dbc.Ctx).Model(&domain.Donation{}))
	if err != nil {
		return out, err
	}
	for _, row := range rows {
		out.TotalDonations += row.N
		switch domain.DonationStatus(row.Status) {
		case domain.StatusPending:
			out.PendingCount = row.N
		case domain.StatusCompleted:
			out.CompletedCount = row.N
			if row.Total.Valid {
				out.CompletedAmount = row.Total.Decimal.Round(domain.AmountScale)
			}
		case domain.StatusFailed:
			out.FailedCount = row.N
		case domain.StatusRefunded:
			out.RefundedCount = row.N
		}
	}

	recent, err := r.groupByStatus(t.WithContext(dbc.Ctx).Model(&domain.Donation{}).Where("created_at >= ?", since))
	if err != nil {
		return out, err
	}
	for _, row := range recent {
		out.RecentCount += row.N
		if domain.DonationStatus(row.Status) == domain.StatusCompleted && row.Total.Valid {
			out.RecentAmount = row.Total.Decimal.Round(domain.AmountScale)
		}
	}
	return out, nil
}
