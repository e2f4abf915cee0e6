package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/fundtracer/fundtracer-backend/internal/data/repos"
	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
)

// CampaignLedgerView is an unlocked snapshot of a campaign total.
type CampaignLedgerView struct {
	CampaignID         uuid.UUID
	Title              string
	IsActive           bool
	GoalAmount         decimal.Decimal
	RaisedAmount       decimal.Decimal
	ProgressPercentage decimal.Decimal
}

type RegisterCampaignRequest struct {
	CampaignID uuid.UUID
	OwnerID    uuid.UUID
	Title      string
	GoalAmount string
	IsActive   *bool
}

type ReconcileAllOptions struct {
	Repair  bool
	Workers int
}

type CampaignLedgerService interface {
	Ledger(ctx context.Context, campaignID uuid.UUID) (CampaignLedgerView, error)

	Register(ctx context.Context, actor Actor, req RegisterCampaignRequest) (*ledger.Campaign, error)
	Delete(ctx context.Context, actor Actor, campaignID uuid.UUID) error

	Reconcile(ctx context.Context, actor Actor, campaignID uuid.UUID) (domainagg.ReconcileResult, error)
	Verify(ctx context.Context, actor Actor, campaignID uuid.UUID) (domainagg.ReconcileResult, error)
	// ReconcileAll checks every campaign with a bounded worker pool. Results are
	// returned in campaign id order as listed by the store.
	ReconcileAll(ctx context.Context, opts ReconcileAllOptions) ([]domainagg.ReconcileResult, error)
}

type campaignLedgerService struct {
	log       *logger.Logger
	ledger    domainagg.DonationLedgerAggregate
	campaigns repos.CampaignRepo
}

func NewCampaignLedgerService(log *logger.Logger, agg domainagg.DonationLedgerAggregate, campaigns repos.CampaignRepo) CampaignLedgerService {
	if log == nil {
		log = logger.Nop()
	}
	return &campaignLedgerService{
		log:       log.With("service", "CampaignLedgerService"),
		ledger:    agg,
		campaigns: campaigns,
	}
}

func (s *campaignLedgerService) Ledger(ctx context.Context, campaignID uuid.UUID) (CampaignLedgerView, error) {
	const op = "CampaignLedgerService.Ledger"
	c, err := s.campaigns.GetByID(dbctx.Context{Ctx: ctx}, campaignID)
	if err != nil {
		return CampaignLedgerView{}, fmt.Errorf("load campaign: %w", err)
	}
	if c == nil {
		return CampaignLedgerView{}, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("campaign not found: %s", campaignID), nil)
	}
	return CampaignLedgerView{
		CampaignID:         c.ID,
		Title:              c.Title,
		IsActive:           c.IsActive,
		GoalAmount:         c.GoalAmount,
		RaisedAmount:       c.RaisedAmount,
		ProgressPercentage: c.ProgressPercentage(),
	}, nil
}

func (s *campaignLedgerService) Register(ctx context.Context, actor Actor, req RegisterCampaignRequest) (*ledger.Campaign, error) {
	const op = "CampaignLedgerService.Register"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	goal := decimal.Zero
	if raw := strings.TrimSpace(req.GoalAmount); raw != "" {
		g, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("invalid goal_amount %q", req.GoalAmount), err)
		}
		goal = g
	}
	owner := req.OwnerID
	if owner == uuid.Nil {
		owner = actor.ID
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return s.ledger.RegisterCampaign(ctx, domainagg.RegisterCampaignInput{
		CampaignID: req.CampaignID,
		OwnerID:    owner,
		Title:      req.Title,
		GoalAmount: goal,
		IsActive:   active,
	})
}

func (s *campaignLedgerService) Delete(ctx context.Context, actor Actor, campaignID uuid.UUID) error {
	if err := requireAdmin("CampaignLedgerService.Delete", actor); err != nil {
		return err
	}
	return s.ledger.DeleteCampaign(ctx, campaignID)
}

func (s *campaignLedgerService) Reconcile(ctx context.Context, actor Actor, campaignID uuid.UUID) (domainagg.ReconcileResult, error) {
	if err := requireAdmin("CampaignLedgerService.Reconcile", actor); err != nil {
		return domainagg.ReconcileResult{}, err
	}
	return s.ledger.Reconcile(ctx, campaignID)
}

func (s *campaignLedgerService) Verify(ctx context.Context, actor Actor, campaignID uuid.UUID) (domainagg.ReconcileResult, error) {
	if err := requireAdmin("CampaignLedgerService.Verify", actor); err != nil {
		return domainagg.ReconcileResult{}, err
	}
	return s.ledger.Verify(ctx, campaignID)
}

func (s *campaignLedgerService) ReconcileAll(ctx context.Context, opts ReconcileAllOptions) ([]domainagg.ReconcileResult, error) {
	ids, err := s.campaigns.ListIDs(dbctx.Context{Ctx: ctx})
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	started := time.Now()

	results := make([]domainagg.ReconcileResult, len(ids))
	var (
		mu      sync.Mutex
		drifted int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			var (
				res domainagg.ReconcileResult
				err error
			)
			if opts.Repair {
				res, err = s.ledger.Reconcile(gctx, id)
			} else {
				res, err = s.ledger.Verify(gctx, id)
			}
			if domainagg.IsCode(err, domainagg.CodeNotFound) {
				// deleted since listing
				res = domainagg.ReconcileResult{CampaignID: id, CheckedAt: time.Now().UTC()}
				err = nil
			}
			if err != nil {
				return fmt.Errorf("campaign %s: %w", id, err)
			}
			results[i] = res
			if !res.Consistent() {
				mu.Lock()
				drifted++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.log.Info("Campaign totals checked",
		"campaigns", len(ids),
		"drifted", drifted,
		"repair", opts.Repair,
		"duration", time.Since(started).String(),
	)
	return results, nil
}
