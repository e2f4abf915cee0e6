package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/fundtracer/fundtracer-backend/internal/data/repos"
	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/domain/ledger"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
)

const donationTable = "donation"

type DonationLedgerAggregateDeps struct {
	Base BaseDeps

	Donations   repos.DonationRepo
	Campaigns   repos.CampaignRepo
	Transitions repos.DonationTransitionRepo
}

type donationLedgerAggregate struct {
	deps DonationLedgerAggregateDeps
}

func NewDonationLedgerAggregate(deps DonationLedgerAggregateDeps) domainagg.DonationLedgerAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.CASGuard = deps.Base.CASGuard.ForContract(domainagg.DonationLedgerAggregateContract)
	deps.Base.Log = deps.Base.Log.With("aggregate", "DonationLedger")
	return &donationLedgerAggregate{deps: deps}
}

func (a *donationLedgerAggregate) Contract() domainagg.Contract {
	return domainagg.DonationLedgerAggregateContract
}

func (a *donationLedgerAggregate) configured() bool {
	return a.deps.Donations != nil && a.deps.Campaigns != nil && a.deps.Transitions != nil
}

func (a *donationLedgerAggregate) CreateDonation(ctx context.Context, in domainagg.CreateDonationInput) (domainagg.CreateDonationResult, error) {
	const op = "Ledger.Donation.Create"
	var out domainagg.CreateDonationResult

	if in.DonorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing donor_id", nil)
	}
	if in.CampaignID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing campaign_id", nil)
	}
	if err := ledger.ValidateAmount(in.Amount); err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	method, ok := ledger.ParsePaymentMethod(string(in.PaymentMethod))
	if !ok {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown payment method %q", in.PaymentMethod), nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "donation ledger repos not configured", nil)
	}

	id := in.DonationID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		createdAt = a.deps.Base.Now().UTC()
	}
	var message *string
	if in.Message != nil {
		if m := strings.TrimSpace(*in.Message); m != "" {
			message = &m
		}
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.CreateDonationResult{}
		// Shared lock so a concurrent DeleteCampaign cannot remove the row
		// between this check and the insert.
		campaign, err := a.deps.Campaigns.ShareLockByID(dbc, in.CampaignID)
		if err != nil {
			return err
		}
		if campaign == nil {
			return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("campaign does not exist: %s", in.CampaignID), nil)
		}
		row := &ledger.Donation{
			ID:            id,
			DonorID:       in.DonorID,
			CampaignID:    in.CampaignID,
			Amount:        in.Amount.Round(ledger.AmountScale),
			PaymentMethod: method,
			Status:        ledger.StatusPending,
			Message:       message,
			IsAnonymous:   in.IsAnonymous,
			CreatedAt:     createdAt,
			UpdatedAt:     createdAt,
		}
		if _, err := a.deps.Donations.Create(dbc, []*ledger.Donation{row}); err != nil {
			return err
		}
		out.Donation = row
		return nil
	})
	if err != nil {
		return domainagg.CreateDonationResult{}, err
	}
	a.deps.Base.Log.Info("Donation created", "op", op, "donation_id", out.Donation.ID, "campaign_id", in.CampaignID, "donor_id", in.DonorID)
	return out, nil
}

func (a *donationLedgerAggregate) Transition(ctx context.Context, in domainagg.TransitionDonationInput) (domainagg.TransitionDonationResult, error) {
	const op = "Ledger.Donation.Transition"
	var out domainagg.TransitionDonationResult

	if in.DonationID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing donation_id", nil)
	}
	target, ok := ledger.ParseStatus(string(in.To))
	if !ok {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown status %q", in.To), nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "donation ledger repos not configured", nil)
	}
	txID := strings.TrimSpace(in.TransactionID)
	at := in.At.UTC()
	if in.At.IsZero() {
		at = a.deps.Base.Now().UTC()
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.TransitionDonationResult{}

		d, err := a.deps.Donations.LockByID(dbc, in.DonationID)
		if err != nil {
			return err
		}
		if d == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("donation not found: %s", in.DonationID), nil)
		}
		if in.Authorize != nil {
			if err := in.Authorize(d, target, txID); err != nil {
				return err
			}
		}

		if txID != "" {
			holder, err := a.deps.Donations.FindByTransactionID(dbc, txID)
			if err != nil {
				return err
			}
			if holder != nil && holder.ID != d.ID {
				return DuplicateTransactionError(fmt.Sprintf("transaction_id %q already bound to another donation", txID))
			}
		}

		plan, err := ledger.Plan(d, target, txID)
		if err != nil {
			a.deps.Base.Log.Warn("Rejected donation transition",
				"donation_id", d.ID,
				"from", d.Status,
				"to", target,
				"actor_id", in.ActorID,
				"actor_role", in.ActorRole,
			)
			return err
		}
		out.Plan = plan

		if plan.Replay {
			campaign, err := a.deps.Campaigns.GetByID(dbc, d.CampaignID)
			if err != nil {
				return err
			}
			out.Donation = d
			out.Campaign = campaign
			return nil
		}

		updates := map[string]any{
			"status":     plan.To,
			"version":    d.Version + 1,
			"updated_at": at,
		}
		if plan.BindTransactionID != "" {
			updates["transaction_id"] = plan.BindTransactionID
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatusVersion(dbc, donationTable, d.ID, string(plan.From), d.Version, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "donation changed concurrently"); err != nil {
			return err
		}

		clamped := false
		if !plan.Delta.IsZero() {
			outcome, err := a.deps.Campaigns.AdjustRaised(dbc, d.CampaignID, plan.Delta, at)
			if err != nil {
				return err
			}
			switch outcome {
			case repos.AdjustMissing:
				return InvariantError(fmt.Sprintf("donation %s references missing campaign %s", d.ID, d.CampaignID))
			case repos.AdjustClamped:
				clamped = true
			}
		}

		audit, err := a.appendAudit(dbc, d, plan, in, at, clamped)
		if err != nil {
			return err
		}

		d.Status = plan.To
		d.Version++
		d.UpdatedAt = at
		if plan.BindTransactionID != "" {
			bound := plan.BindTransactionID
			d.TransactionID = &bound
		}
		campaign, err := a.deps.Campaigns.GetByID(dbc, d.CampaignID)
		if err != nil {
			return err
		}

		out.Donation = d
		out.Campaign = campaign
		out.Audit = audit
		out.Clamped = clamped
		return nil
	})
	if err != nil {
		return domainagg.TransitionDonationResult{}, err
	}

	if out.Plan.Replay {
		a.deps.Base.Log.Info("Donation transition replayed", "donation_id", in.DonationID, "status", target)
		return out, nil
	}
	a.deps.Base.Log.Info("Donation transitioned",
		"donation_id", out.Donation.ID,
		"campaign_id", out.Donation.CampaignID,
		"from", out.Plan.From,
		"to", out.Plan.To,
		"delta", out.Plan.Delta.String(),
		"actor_id", in.ActorID,
	)
	if out.Clamped {
		a.deps.Base.Hooks.IncConsistencyAnomaly(op)
		a.deps.Base.Log.Error("Campaign raised amount would have gone negative",
			"donation_id", out.Donation.ID,
			"campaign_id", out.Donation.CampaignID,
			"delta", out.Plan.Delta.String(),
		)
		return out, domainagg.NewError(
			domainagg.CodeInternalConsistency,
			op,
			fmt.Sprintf("campaign %s raised amount clamped to zero", out.Donation.CampaignID),
			nil,
		)
	}
	return out, nil
}

func (a *donationLedgerAggregate) appendAudit(
	dbc dbctx.Context,
	d *ledger.Donation,
	plan ledger.TransitionPlan,
	in domainagg.TransitionDonationInput,
	at time.Time,
	clamped bool,
) (*ledger.DonationTransition, error) {
	txID := plan.BindTransactionID
	if txID == "" {
		txID = d.TxID()
	}
	meta := map[string]any{
		"version": d.Version + 1,
		"effect":  plan.Effect.String(),
	}
	if plan.ExternalRef != "" {
		meta["external_ref"] = plan.ExternalRef
	}
	if clamped {
		meta["clamped"] = true
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}
	row := &ledger.DonationTransition{
		ID:            uuid.New(),
		DonationID:    d.ID,
		CampaignID:    d.CampaignID,
		FromStatus:    plan.From,
		ToStatus:      plan.To,
		Delta:         plan.Delta,
		TransactionID: txID,
		ActorID:       in.ActorID,
		ActorRole:     strings.TrimSpace(in.ActorRole),
		Reason:        strings.TrimSpace(in.Reason),
		Metadata:      datatypes.JSON(raw),
		CreatedAt:     at,
	}
	if _, err := a.deps.Transitions.Create(dbc, []*ledger.DonationTransition{row}); err != nil {
		return nil, err
	}
	return row, nil
}

func (a *donationLedgerAggregate) RegisterCampaign(ctx context.Context, in domainagg.RegisterCampaignInput) (*ledger.Campaign, error) {
	const op = "Ledger.Campaign.Register"
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing title", nil)
	}
	if err := ledger.ValidateGoal(in.GoalAmount); err != nil {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}
	if a.deps.Campaigns == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "campaign repo not configured", nil)
	}
	id := in.CampaignID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := in.CreatedAt.UTC()
	if in.CreatedAt.IsZero() {
		createdAt = a.deps.Base.Now().UTC()
	}

	var out *ledger.Campaign
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		row := &ledger.Campaign{
			ID:           id,
			OwnerID:      in.OwnerID,
			Title:        title,
			GoalAmount:   in.GoalAmount.Round(ledger.AmountScale),
			RaisedAmount: decimal.Zero,
			IsActive:     in.IsActive,
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		}
		if _, err := a.deps.Campaigns.Create(dbc, []*ledger.Campaign{row}); err != nil {
			return err
		}
		out = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *donationLedgerAggregate) DeleteCampaign(ctx context.Context, campaignID uuid.UUID) error {
	const op = "Ledger.Campaign.Delete"
	if campaignID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing campaign_id", nil)
	}
	if !a.configured() {
		return domainagg.NewError(domainagg.CodeInternal, op, "donation ledger repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		c, err := a.deps.Campaigns.LockByID(dbc, campaignID)
		if err != nil {
			return err
		}
		if c == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("campaign not found: %s", campaignID), nil)
		}
		n, err := a.deps.Donations.CountByCampaign(dbc, campaignID)
		if err != nil {
			return err
		}
		if n > 0 {
			return PreconditionError(fmt.Sprintf("campaign has %d donations", n))
		}
		_, err = a.deps.Campaigns.Delete(dbc, campaignID)
		return err
	})
	if err != nil {
		return err
	}
	a.deps.Base.Log.Info("Campaign deleted", "campaign_id", campaignID)
	return nil
}

func (a *donationLedgerAggregate) Reconcile(ctx context.Context, campaignID uuid.UUID) (domainagg.ReconcileResult, error) {
	return a.checkTotals(ctx, "Ledger.Campaign.Reconcile", campaignID, true)
}

func (a *donationLedgerAggregate) Verify(ctx context.Context, campaignID uuid.UUID) (domainagg.ReconcileResult, error) {
	return a.checkTotals(ctx, "Ledger.Campaign.Verify", campaignID, false)
}

// checkTotals recomputes the completed sum under the campaign row lock, which
// every increment also needs, so no transition can commit halfway through the check.
func (a *donationLedgerAggregate) checkTotals(ctx context.Context, op string, campaignID uuid.UUID, repair bool) (domainagg.ReconcileResult, error) {
	var out domainagg.ReconcileResult
	if campaignID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing campaign_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "donation ledger repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		now := a.deps.Base.Now().UTC()
		out = domainagg.ReconcileResult{CampaignID: campaignID, CheckedAt: now}

		c, err := a.deps.Campaigns.LockByID(dbc, campaignID)
		if err != nil {
			return err
		}
		if c == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("campaign not found: %s", campaignID), nil)
		}
		computed, err := a.deps.Donations.SumCompleted(dbc, campaignID)
		if err != nil {
			return err
		}
		out.Recorded = c.RaisedAmount.Round(ledger.AmountScale)
		out.Computed = computed.Round(ledger.AmountScale)
		out.Drift = out.Recorded.Sub(out.Computed)
		if out.Drift.IsZero() || !repair {
			return nil
		}
		if err := a.deps.Campaigns.SetRaised(dbc, campaignID, computed, now); err != nil {
			return err
		}
		out.Repaired = true
		return nil
	})
	if err != nil {
		return domainagg.ReconcileResult{}, err
	}
	if !out.Consistent() {
		a.deps.Base.Hooks.IncConsistencyAnomaly(op)
		a.deps.Base.Log.Warn("Campaign raised amount drifted from completed donations",
			"campaign_id", campaignID,
			"recorded", out.Recorded.String(),
			"computed", out.Computed.String(),
			"repaired", out.Repaired,
		)
	}
	return out, nil
}
