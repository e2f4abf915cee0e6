package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/http/response"
	"github.com/fundtracer/fundtracer-backend/internal/services"
)

type AdminHandler struct {
	donations services.DonationService
}

func NewAdminHandler(donations services.DonationService) *AdminHandler {
	return &AdminHandler{donations: donations}
}

type adminActionBody struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.donations.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, statsView(stats))
}

// GET /api/admin/donations?status=&campaign_id=
func (h *AdminHandler) ListDonations(c *gin.Context) {
	var filter ledger.DonationFilter
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		filter.Status = ledger.DonationStatus(strings.ToUpper(raw))
	}
	if raw := strings.TrimSpace(c.Query("campaign_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
			return
		}
		filter.CampaignID = id
	}
	res, err := h.donations.AdminList(c.Request.Context(), actorFrom(c), filter, pageFrom(c))
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondPage(c, donationViews(res.Items, false), res.Page.Number, res.Page.Size, res.Total, res.NextPage())
}

// PUT /api/admin/donations/:id/approve
func (h *AdminHandler) Approve(c *gin.Context) { h.act(c, ledger.StatusCompleted) }

// PUT /api/admin/donations/:id/reject
func (h *AdminHandler) Reject(c *gin.Context) { h.act(c, ledger.StatusFailed) }

// PUT /api/admin/donations/:id/refund
func (h *AdminHandler) Refund(c *gin.Context) { h.act(c, ledger.StatusRefunded) }

func (h *AdminHandler) act(c *gin.Context, to ledger.DonationStatus) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	var body adminActionBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
			return
		}
	}
	transition(c, h.donations, services.TransitionRequest{
		DonationID:    id,
		Status:        string(to),
		TransactionID: body.TransactionID,
		Reason:        body.Reason,
	})
}
