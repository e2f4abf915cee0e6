package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/http/response"
	"github.com/fundtracer/fundtracer-backend/internal/services"
)

type CampaignHandler struct {
	campaigns services.CampaignLedgerService
}

func NewCampaignHandler(campaigns services.CampaignLedgerService) *CampaignHandler {
	return &CampaignHandler{campaigns: campaigns}
}

type registerCampaignBody struct {
	ID         uuid.UUID `json:"id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Title      string    `json:"title" binding:"required"`
	GoalAmount string    `json:"goal_amount"`
	IsActive   *bool     `json:"is_active"`
}

// GET /api/campaigns/:id/ledger
func (h *CampaignHandler) Ledger(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	view, err := h.campaigns.Ledger(c.Request.Context(), id)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, campaignLedgerView(view))
}

// POST /api/admin/campaigns
func (h *CampaignHandler) Register(c *gin.Context) {
	var body registerCampaignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	created, err := h.campaigns.Register(c.Request.Context(), actorFrom(c), services.RegisterCampaignRequest{
		CampaignID: body.ID,
		OwnerID:    body.OwnerID,
		Title:      body.Title,
		GoalAmount: body.GoalAmount,
		IsActive:   body.IsActive,
	})
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondCreated(c, campaignView(created))
}

// DELETE /api/admin/campaigns/:id
func (h *CampaignHandler) Delete(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	if err := h.campaigns.Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/admin/campaigns/:id/reconcile
func (h *CampaignHandler) Reconcile(c *gin.Context) {
	h.check(c, h.campaigns.Reconcile)
}

// GET /api/admin/campaigns/:id/verify
func (h *CampaignHandler) Verify(c *gin.Context) {
	h.check(c, h.campaigns.Verify)
}

func (h *CampaignHandler) check(c *gin.Context, run func(context.Context, services.Actor, uuid.UUID) (domainagg.ReconcileResult, error)) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	res, err := run(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, reconcileView(res))
}
