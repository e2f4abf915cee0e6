package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fundtracer/fundtracer-backend/internal/data/repos"
	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/ctxutil"
	"github.com/fundtracer/fundtracer-backend/internal/services"
)

// Amounts are rendered as fixed two-place strings so clients never see float rounding.

type DonationView struct {
	ID            uuid.UUID  `json:"id"`
	DonorID       *uuid.UUID `json:"donor_id,omitempty"`
	CampaignID    uuid.UUID  `json:"campaign_id"`
	Amount        string     `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	Status        string     `json:"status"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	Message       *string    `json:"message,omitempty"`
	IsAnonymous   bool       `json:"is_anonymous"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func donationView(d *ledger.Donation) DonationView {
	donor := d.DonorID
	return DonationView{
		ID:            d.ID,
		DonorID:       &donor,
		CampaignID:    d.CampaignID,
		Amount:        ledger.FormatAmount(d.Amount),
		PaymentMethod: string(d.PaymentMethod),
		Status:        string(d.Status),
		TransactionID: d.TransactionID,
		Message:       d.Message,
		IsAnonymous:   d.IsAnonymous,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// publicDonationView drops donor identity and payment references for campaign listings.
func publicDonationView(d *ledger.Donation) DonationView {
	v := donationView(d)
	v.DonorID = nil
	v.TransactionID = nil
	return v
}

func donationViews(rows []*ledger.Donation, public bool) []DonationView {
	out := make([]DonationView, 0, len(rows))
	for _, d := range rows {
		if public {
			out = append(out, publicDonationView(d))
		} else {
			out = append(out, donationView(d))
		}
	}
	return out
}

type CampaignLedgerView struct {
	CampaignID         uuid.UUID `json:"campaign_id"`
	Title              string    `json:"title,omitempty"`
	IsActive           bool      `json:"is_active"`
	GoalAmount         string    `json:"goal_amount"`
	RaisedAmount       string    `json:"raised_amount"`
	ProgressPercentage string    `json:"progress_percentage"`
}

func campaignView(c *ledger.Campaign) *CampaignLedgerView {
	if c == nil {
		return nil
	}
	return &CampaignLedgerView{
		CampaignID:         c.ID,
		Title:              c.Title,
		IsActive:           c.IsActive,
		GoalAmount:         ledger.FormatAmount(c.GoalAmount),
		RaisedAmount:       ledger.FormatAmount(c.RaisedAmount),
		ProgressPercentage: ledger.FormatAmount(c.ProgressPercentage()),
	}
}

func campaignLedgerView(v services.CampaignLedgerView) CampaignLedgerView {
	return CampaignLedgerView{
		CampaignID:         v.CampaignID,
		Title:              v.Title,
		IsActive:           v.IsActive,
		GoalAmount:         ledger.FormatAmount(v.GoalAmount),
		RaisedAmount:       ledger.FormatAmount(v.RaisedAmount),
		ProgressPercentage: ledger.FormatAmount(v.ProgressPercentage),
	}
}

type TransitionResultView struct {
	Donation DonationView        `json:"donation"`
	Campaign *CampaignLedgerView `json:"campaign,omitempty"`
	Replayed bool                `json:"replayed"`
}

func transitionResultView(out services.TransitionOutcome) TransitionResultView {
	return TransitionResultView{
		Donation: donationView(out.Donation),
		Campaign: campaignView(out.Campaign),
		Replayed: out.Replayed,
	}
}

type AuditView struct {
	ID            uuid.UUID `json:"id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	Delta         string    `json:"delta"`
	TransactionID string    `json:"transaction_id,omitempty"`
	ActorRole     string    `json:"actor_role,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func auditViews(rows []*ledger.DonationTransition) []AuditView {
	out := make([]AuditView, 0, len(rows))
	for _, r := range rows {
		out = append(out, AuditView{
			ID:            r.ID,
			FromStatus:    string(r.FromStatus),
			ToStatus:      string(r.ToStatus),
			Delta:         ledger.FormatAmount(r.Delta),
			TransactionID: r.TransactionID,
			ActorRole:     r.ActorRole,
			Reason:        r.Reason,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out
}

type ReconcileView struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Recorded   string    `json:"recorded_amount"`
	Computed   string    `json:"computed_amount"`
	Drift      string    `json:"drift"`
	Consistent bool      `json:"consistent"`
	Repaired   bool      `json:"repaired"`
	CheckedAt  time.Time `json:"checked_at"`
}

func reconcileView(r domainagg.ReconcileResult) ReconcileView {
	return ReconcileView{
		CampaignID: r.CampaignID,
		Recorded:   ledger.FormatAmount(r.Recorded),
		Computed:   ledger.FormatAmount(r.Computed),
		Drift:      ledger.FormatAmount(r.Drift),
		Consistent: r.Consistent(),
		Repaired:   r.Repaired,
		CheckedAt:  r.CheckedAt,
	}
}

type SummaryView struct {
	Count          int64  `json:"count"`
	CompletedCount int64  `json:"completed_count"`
	CompletedTotal string `json:"completed_total"`
}

func summaryView(s repos.DonorSummary) SummaryView {
	return SummaryView{Count: s.Count, CompletedCount: s.CompletedCount, CompletedTotal: ledger.FormatAmount(s.CompletedTotal)}
}

type StatsView struct {
	TotalDonations  int64  `json:"total_donations"`
	PendingCount    int64  `json:"pending_count"`
	CompletedCount  int64  `json:"completed_count"`
	FailedCount     int64  `json:"failed_count"`
	RefundedCount   int64  `json:"refunded_count"`
	CompletedAmount string `json:"completed_amount"`
	RecentCount     int64  `json:"recent_count"`
	RecentAmount    string `json:"recent_amount"`
}

func statsView(s repos.DonationStats) StatsView {
	return StatsView{
		TotalDonations:  s.TotalDonations,
		PendingCount:    s.PendingCount,
		CompletedCount:  s.CompletedCount,
		FailedCount:     s.FailedCount,
		RefundedCount:   s.RefundedCount,
		CompletedAmount: ledger.FormatAmount(s.CompletedAmount),
		RecentCount:     s.RecentCount,
		RecentAmount:    ledger.FormatAmount(s.RecentAmount),
	}
}

func actorFrom(c *gin.Context) services.Actor {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		return services.Actor{}
	}
	return services.Actor{ID: rd.UserID, Role: services.ParseRole(rd.Role)}
}

// pageFrom reads page and page_size. Invalid values fall back to defaults.
func pageFrom(c *gin.Context) ledger.Page {
	number, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return ledger.Page{Number: number, Size: size}
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}
