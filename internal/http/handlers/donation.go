package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/http/response"
	"github.com/fundtracer/fundtracer-backend/internal/services"
)

type DonationHandler struct {
	donations services.DonationService
}

func NewDonationHandler(donations services.DonationService) *DonationHandler {
	return &DonationHandler{donations: donations}
}

type createDonationBody struct {
	CampaignID    uuid.UUID       `json:"campaign_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method"`
	Message       *string         `json:"message"`
	IsAnonymous   bool            `json:"is_anonymous"`
}

type statusBody struct {
	Status        string `json:"status" binding:"required"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// POST /api/donations
func (h *DonationHandler) Create(c *gin.Context) {
	var body createDonationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	// amount may arrive as a JSON number or a quoted string.
	if err := ledger.ValidateAmount(body.Amount); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	d, err := h.donations.Create(c.Request.Context(), actorFrom(c), services.CreateDonationRequest{
		CampaignID:    body.CampaignID,
		Amount:        body.Amount.StringFixed(ledger.AmountScale),
		PaymentMethod: body.PaymentMethod,
		Message:       body.Message,
		IsAnonymous:   body.IsAnonymous,
	})
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondCreated(c, donationView(d))
}

// GET /api/donations/my-donations
func (h *DonationHandler) ListMine(c *gin.Context) {
	res, err := h.donations.ListMine(c.Request.Context(), actorFrom(c), pageFrom(c))
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondPage(c, donationViews(res.Items, false), res.Page.Number, res.Page.Size, res.Total, res.NextPage())
}

// GET /api/donations/summary
func (h *DonationHandler) Summary(c *gin.Context) {
	sum, err := h.donations.Summary(c.Request.Context(), actorFrom(c))
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, summaryView(sum))
}

// GET /api/donations/:id
func (h *DonationHandler) Get(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	d, err := h.donations.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, donationView(d))
}

// GET /api/donations/:id/transitions
func (h *DonationHandler) History(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	rows, err := h.donations.History(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondOK(c, auditViews(rows))
}

// PUT /api/donations/:id/status
func (h *DonationHandler) UpdateStatus(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	transition(c, h.donations, services.TransitionRequest{
		DonationID:    id,
		Status:        body.Status,
		TransactionID: body.TransactionID,
		Reason:        body.Reason,
	})
}

// GET /api/campaigns/:id/donations
func (h *DonationHandler) ListByCampaign(c *gin.Context) {
	id, err := uuidParam(c, "id")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, string(domainagg.CodeValidation), err)
		return
	}
	res, err := h.donations.ListByCampaign(c.Request.Context(), id, pageFrom(c))
	if err != nil {
		response.RespondDomainError(c, err, nil)
		return
	}
	response.RespondPage(c, donationViews(res.Items, true), res.Page.Number, res.Page.Size, res.Total, res.NextPage())
}

// transition is shared by the donor status endpoint and the admin shortcuts.
func transition(c *gin.Context, donations services.DonationService, req services.TransitionRequest) {
	out, err := donations.Transition(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		var data any
		if out.Donation != nil {
			data = transitionResultView(out)
		}
		response.RespondDomainError(c, err, data)
		return
	}
	response.RespondOK(c, transitionResultView(out))
}
