package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fundtracer/fundtracer-backend/internal/data/repos"
	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/observability"
	"github.com/fundtracer/fundtracer-backend/internal/platform/ctxutil"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

const statsWindow = 30 * 24 * time.Hour

type CreateDonationRequest struct {
	CampaignID    uuid.UUID
	Amount        string
	PaymentMethod string
	Message       *string
	IsAnonymous   bool
}

type TransitionRequest struct {
	DonationID    uuid.UUID
	Status        string
	TransactionID string
	Reason        string
}

// TransitionOutcome is the committed donation together with its campaign after the change.
type TransitionOutcome struct {
	Donation *ledger.Donation
	Campaign *ledger.Campaign
	Replayed bool
}

type DonationService interface {
	Create(ctx context.Context, actor Actor, req CreateDonationRequest) (*ledger.Donation, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*ledger.Donation, error)
	ListMine(ctx context.Context, actor Actor, page ledger.Page) (PageResult[*ledger.Donation], error)
	ListByCampaign(ctx context.Context, campaignID uuid.UUID, page ledger.Page) (PageResult[*ledger.Donation], error)
	Summary(ctx context.Context, actor Actor) (repos.DonorSummary, error)
	History(ctx context.Context, actor Actor, id uuid.UUID) ([]*ledger.DonationTransition, error)

	// Transition is the single entry point for every status change, donor or admin.
	// An internal_consistency error is returned alongside a populated outcome.
	Transition(ctx context.Context, actor Actor, req TransitionRequest) (TransitionOutcome, error)

	AdminList(ctx context.Context, actor Actor, filter ledger.DonationFilter, page ledger.Page) (PageResult[*ledger.Donation], error)
	Stats(ctx context.Context, actor Actor) (repos.DonationStats, error)
}

type DonationServiceDeps struct {
	Log         *logger.Logger
	Ledger      domainagg.DonationLedgerAggregate
	Donations   repos.DonationRepo
	Campaigns   repos.CampaignRepo
	Transitions repos.DonationTransitionRepo
	Authorizer  TransitionAuthorizer
	Events      EventPublisher
	Metrics     *observability.Metrics
	Now         func() time.Time
}

type donationService struct {
	log         *logger.Logger
	ledger      domainagg.DonationLedgerAggregate
	donations   repos.DonationRepo
	campaigns   repos.CampaignRepo
	transitions repos.DonationTransitionRepo
	authz       TransitionAuthorizer
	events      EventPublisher
	metrics     *observability.Metrics
	now         func() time.Time
}

func NewDonationService(deps DonationServiceDeps) DonationService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	authz := deps.Authorizer
	if authz == nil {
		authz = NewTransitionAuthorizer(DefaultTransitionPolicy())
	}
	events := deps.Events
	if events == nil {
		events = nopPublisher{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &donationService{
		log:         log.With("service", "DonationService"),
		ledger:      deps.Ledger,
		donations:   deps.Donations,
		campaigns:   deps.Campaigns,
		transitions: deps.Transitions,
		authz:       authz,
		events:      events,
		metrics:     deps.Metrics,
		now:         now,
	}
}

func requireActor(op string, actor Actor) error {
	if actor.ID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeForbidden, op, "authentication required", nil)
	}
	return nil
}

func requireAdmin(op string, actor Actor) error {
	if err := requireActor(op, actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return domainagg.NewError(domainagg.CodeForbidden, op, "admin role required", nil)
	}
	return nil
}

func (s *donationService) Create(ctx context.Context, actor Actor, req CreateDonationRequest) (*ledger.Donation, error) {
	const op = "DonationService.Create"
	if err := requireActor(op, actor); err != nil {
		return nil, err
	}
	amount, err := ledger.ParseAmount(req.Amount)
	if err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	method, ok := ledger.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown payment_method %q", req.PaymentMethod), nil)
	}
	msg := req.Message
	if msg != nil {
		trimmed := strings.TrimSpace(*msg)
		if trimmed == "" {
			msg = nil
		} else {
			msg = &trimmed
		}
	}
	res, err := s.ledger.CreateDonation(ctx, domainagg.CreateDonationInput{
		DonorID:       actor.ID,
		CampaignID:    req.CampaignID,
		Amount:        amount,
		PaymentMethod: method,
		Message:       msg,
		IsAnonymous:   req.IsAnonymous,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return nil, err
	}
	return res.Donation, nil
}

// Get hides donations the actor may not see behind not_found.
func (s *donationService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*ledger.Donation, error) {
	const op = "DonationService.Get"
	if err := requireActor(op, actor); err != nil {
		return nil, err
	}
	d, err := s.donations.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, fmt.Errorf("load donation: %w", err)
	}
	if d == nil || (!actor.IsAdmin() && d.DonorID != actor.ID) {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("donation not found: %s", id), nil)
	}
	return d, nil
}

func (s *donationService) ListMine(ctx context.Context, actor Actor, page ledger.Page) (PageResult[*ledger.Donation], error) {
	const op = "DonationService.ListMine"
	if err := requireActor(op, actor); err != nil {
		return PageResult[*ledger.Donation]{}, err
	}
	page = page.Normalize(ledger.DefaultPageSize)
	rows, total, err := s.donations.ListByDonor(dbctx.Context{Ctx: ctx}, actor.ID, page)
	if err != nil {
		return PageResult[*ledger.Donation]{}, fmt.Errorf("list donor donations: %w", err)
	}
	return PageResult[*ledger.Donation]{Items: rows, Page: page, Total: total}, nil
}

func (s *donationService) ListByCampaign(ctx context.Context, campaignID uuid.UUID, page ledger.Page) (PageResult[*ledger.Donation], error) {
	const op = "DonationService.ListByCampaign"
	if campaignID == uuid.Nil {
		return PageResult[*ledger.Donation]{}, domainagg.NewError(domainagg.CodeValidation, op, "missing campaign_id", nil)
	}
	c, err := s.campaigns.GetByID(dbctx.Context{Ctx: ctx}, campaignID)
	if err != nil {
		return PageResult[*ledger.Donation]{}, fmt.Errorf("load campaign: %w", err)
	}
	if c == nil {
		return PageResult[*ledger.Donation]{}, domainagg.NewError(domainagg.CodeNotFound, op, "campaign not found", nil)
	}
	page = page.Normalize(ledger.DefaultPageSize)
	rows, total, err := s.donations.ListByCampaign(dbctx.Context{Ctx: ctx}, campaignID, true, page)
	if err != nil {
		return PageResult[*ledger.Donation]{}, fmt.Errorf("list campaign donations: %w", err)
	}
	return PageResult[*ledger.Donation]{Items: rows, Page: page, Total: total}, nil
}

func (s *donationService) Summary(ctx context.Context, actor Actor) (repos.DonorSummary, error) {
	const op = "DonationService.Summary"
	if err := requireActor(op, actor); err != nil {
		return repos.DonorSummary{}, err
	}
	sum, err := s.donations.DonorSummary(dbctx.Context{Ctx: ctx}, actor.ID)
	if err != nil {
		return repos.DonorSummary{}, fmt.Errorf("donor summary: %w", err)
	}
	return sum, nil
}

func (s *donationService) History(ctx context.Context, actor Actor, id uuid.UUID) ([]*ledger.DonationTransition, error) {
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.transitions.ListByDonation(dbctx.Context{Ctx: ctx}, d.ID)
	if err != nil {
		return nil, fmt.Errorf("list donation transitions: %w", err)
	}
	return rows, nil
}

func (s *donationService) Transition(ctx context.Context, actor Actor, req TransitionRequest) (TransitionOutcome, error) {
	const op = "DonationService.Transition"
	if err := requireActor(op, actor); err != nil {
		return TransitionOutcome{}, err
	}
	target, ok := ledger.ParseStatus(req.Status)
	if !ok {
		return TransitionOutcome{}, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown status %q", req.Status), nil)
	}

	res, err := s.ledger.Transition(ctx, domainagg.TransitionDonationInput{
		DonationID:    req.DonationID,
		To:            target,
		TransactionID: req.TransactionID,
		ActorID:       actor.ID,
		ActorRole:     string(actor.Role),
		Reason:        req.Reason,
		Authorize: func(d *ledger.Donation, to ledger.DonationStatus, txID string) error {
			return s.authz.Authorize(actor, d, to, txID)
		},
		At: s.now(),
	})
	if res.Donation == nil {
		return TransitionOutcome{}, err
	}
	out := TransitionOutcome{Donation: res.Donation, Campaign: res.Campaign, Replayed: res.Plan.Replay}
	if !out.Replayed {
		s.metrics.IncDonationTransition(string(res.Plan.From), string(res.Plan.To))
		s.publish(ctx, ledger.NewStatusChangedEvent(res.Donation, res.Campaign, res.Plan.From, s.now()))
	}
	return out, err
}

// publish is best effort: the transition has already committed.
func (s *donationService) publish(ctx context.Context, ev ledger.StatusChangedEvent) {
	err := s.events.Publish(ctx, ev)
	s.metrics.IncEventPublished(ev.Type, err == nil)
	if err != nil {
		fields := []any{"error", err, "donation_id", ev.DonationID, "to", ev.To}
		if td := ctxutil.GetTraceData(ctx); td != nil {
			fields = append(fields, "request_id", td.RequestID)
		}
		s.log.Warn("Donation event publish failed", fields...)
	}
}

func (s *donationService) AdminList(ctx context.Context, actor Actor, filter ledger.DonationFilter, page ledger.Page) (PageResult[*ledger.Donation], error) {
	const op = "DonationService.AdminList"
	if err := requireAdmin(op, actor); err != nil {
		return PageResult[*ledger.Donation]{}, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return PageResult[*ledger.Donation]{}, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown status %q", filter.Status), nil)
	}
	page = page.Normalize(ledger.DefaultAdminPageSize)
	rows, total, err := s.donations.List(dbctx.Context{Ctx: ctx}, filter, page)
	if err != nil {
		return PageResult[*ledger.Donation]{}, fmt.Errorf("list donations: %w", err)
	}
	return PageResult[*ledger.Donation]{Items: rows, Page: page, Total: total}, nil
}

func (s *donationService) Stats(ctx context.Context, actor Actor) (repos.DonationStats, error) {
	const op = "DonationService.Stats"
	if err := requireAdmin(op, actor); err != nil {
		return repos.DonationStats{}, err
	}
	stats, err := s.donations.Stats(dbctx.Context{Ctx: ctx}, s.now().Add(-statsWindow))
	if err != nil {
		return repos.DonationStats{}, fmt.Errorf("donation stats: %w", err)
	}
	return stats, nil
}
