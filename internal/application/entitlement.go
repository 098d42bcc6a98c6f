package application

import (
	"context"
	"fmt"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
)

// Decision is the outcome of an entitlement check.
type Decision struct {
	Allowed   bool
	Reason    domain.DenialCode
	Plan      domain.PlanID
	Feature   domain.Feature
	Quota     domain.Quota
	Used      int64
	Remaining domain.Remaining
}

// Denial converts a refused decision into the error returned to callers.
func (d Decision) Denial() *domain.Denial {
	if d.Allowed {
		return nil
	}
	return &domain.Denial{Code: d.Reason, Feature: d.Feature, Remaining: d.Remaining}
}

type Evaluator struct {
	catalog domain.PlanCatalog
	repo    ports.AccountRepository
	ledger  *Ledger
}

func NewEvaluator(catalog domain.PlanCatalog, repo ports.AccountRepository, ledger *Ledger) *Evaluator {
	return &Evaluator{catalog: catalog, repo: repo, ledger: ledger}
}

func (e *Evaluator) Catalog() domain.PlanCatalog { return e.catalog }

func (e *Evaluator) Check(ctx context.Context, id domain.AccountID, feature domain.Feature) (Decision, error) {
	if !feature.Valid() {
		return Decision{}, fmt.Errorf("%w: %q", domain.ErrUnknownFeature, feature)
	}

	account, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return Decision{}, fmt.Errorf("get account by id: %w", err)
	}

	return e.decide(account, feature)
}

func (e *Evaluator) decide(account domain.Account, feature domain.Feature) (Decision, error) {
	plan := account.Plan()
	quota, err := e.catalog.Lookup(plan, feature)
	if err != nil {
		return Decision{}, err
	}

	used := e.ledger.UsageOf(account, feature)
	decision := Decision{
		Plan:      plan,
		Feature:   feature,
		Quota:     quota,
		Used:      used,
		Remaining: domain.RemainingFor(quota, used),
	}

	switch {
	case !account.Active():
		decision.Reason = domain.DenialSubscriptionInactive
	case quota.Allows(used):
		decision.Allowed = true
	default:
		decision.Reason = domain.DenialQuotaExceeded
	}

	return decision, nil
}

func (e *Evaluator) CanUse(ctx context.Context, id domain.AccountID, feature domain.Feature) (bool, error) {
	decision, err := e.Check(ctx, id, feature)
	if err != nil {
		return false, err
	}
	return decision.Allowed, nil
}

// Remaining reports what is left this period. It is readable for inactive
// subscriptions too.
func (e *Evaluator) Remaining(ctx context.Context, id domain.AccountID, feature domain.Feature) (domain.Remaining, error) {
	decision, err := e.Check(ctx, id, feature)
	if err != nil {
		return domain.Remaining{}, err
	}
	return decision.Remaining, nil
}

func (e *Evaluator) PlanSummary(ctx context.Context, id domain.AccountID) (PlanSummary, error) {
	account, err := e.repo.GetByID(ctx, id)
	if err != nil {
		return PlanSummary{}, fmt.Errorf("get account by id: %w", err)
	}

	return e.summarize(account)
}

func (e *Evaluator) PlanSummaries(ctx context.Context) ([]PlanSummary, error) {
	accounts, err := e.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	summaries := make([]PlanSummary, 0, len(accounts))
	for _, account := range accounts {
		summary, err := e.summarize(account)
		if err != nil {
			return nil, fmt.Errorf("summarize account %s: %w", account.ID, err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

func (e *Evaluator) summarize(account domain.Account) (PlanSummary, error) {
	period := e.ledger.Period()
	periodStart := period.Start(e.ledger.Now())

	summary := PlanSummary{
		AccountID:          account.ID,
		AccountName:        account.Name,
		Plan:               account.Plan(),
		Status:             domain.EffectiveStatus(account.Subscription),
		PeriodStart:        periodStart,
		NextReset:          period.Next(periodStart),
		ConnectedPlatforms: append([]domain.Platform(nil), account.Connections.Platforms...),
	}

	for _, feature := range domain.Features() {
		decision, err := e.decide(account, feature)
		if err != nil {
			return PlanSummary{}, err
		}
		summary.Features = append(summary.Features, FeatureSummary{
			Feature:   feature,
			Quota:     decision.Quota,
			Used:      decision.Used,
			Remaining: decision.Remaining,
			Allowed:   decision.Allowed,
		})
	}

	return summary, nil
}
