package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/fundtracer/fundtracer-backend/internal/data/aggregates"
	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/observability"
	"github.com/fundtracer/fundtracer-backend/internal/platform/logger"
	"github.com/fundtracer/fundtracer-backend/internal/services"
)

type Services struct {
	Ledger    domainagg.DonationLedgerAggregate
	Donation  services.DonationService
	Campaign  services.CampaignLedgerService
	Authorize services.TransitionAuthorizer
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, metrics *observability.Metrics, reposet Repos, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	policy, err := services.LoadTransitionPolicy(cfg.TransitionPolicyFile)
	if err != nil {
		return Services{}, fmt.Errorf("load transition policy: %w", err)
	}
	authz := services.NewTransitionAuthorizer(policy)

	retry := aggregates.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Ledger.MaxAttempts
	retry.MinBackoff = cfg.Ledger.RetryMinBackoff
	retry.MaxBackoff = cfg.Ledger.RetryMaxBackoff
	retry.AttemptTimeout = cfg.Ledger.LockTimeout

	ledgerAgg := aggregates.NewDonationLedgerAggregate(aggregates.DonationLedgerAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:     db,
			Log:    log,
			Runner: aggregates.NewGormTxRunner(db, aggregates.WithLockTimeout(cfg.Ledger.LockTimeout)),
			Hooks:  aggregates.NewObservabilityHooks(metrics),
			Retry:  retry,
		},
		Donations:   reposet.Donation,
		Campaigns:   reposet.Campaign,
		Transitions: reposet.DonationTransition,
	})

	donations := services.NewDonationService(services.DonationServiceDeps{
		Log:         log,
		Ledger:      ledgerAgg,
		Donations:   reposet.Donation,
		Campaigns:   reposet.Campaign,
		Transitions: reposet.DonationTransition,
		Authorizer:  authz,
		Events:      clients.Events,
		Metrics:     metrics,
	})
	campaigns := services.NewCampaignLedgerService(log, ledgerAgg, reposet.Campaign)

	return Services{
		Ledger:    ledgerAgg,
		Donation:  donations,
		Campaign:  campaigns,
		Authorize: authz,
	}, nil
}
