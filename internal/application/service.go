package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	"github.com/google/uuid"
)

var ErrInvalidAccount = errors.New("invalid account")

// AccountService creates accounts and manages their subscription.
type AccountService struct {
	repo    ports.AccountRepository
	catalog domain.PlanCatalog
	clock   ports.Clock
	period  domain.Period
}

func NewAccountService(repo ports.AccountRepository, catalog domain.PlanCatalog, clock ports.Clock, period domain.Period) *AccountService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if period == nil {
		period = domain.MonthlyPeriod{}
	}

	return &AccountService{
		repo:    repo,
		catalog: catalog,
		clock:   clock,
		period:  period,
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, cmd CreateAccountCommand) (domain.Account, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Account{}, fmt.Errorf("%w: name is required", ErrInvalidAccount)
	}

	plan := cmd.Plan
	if plan == "" {
		plan = domain.LowestPlan
	}
	if _, err := s.catalog.Quotas(plan); err != nil {
		return domain.Account{}, err
	}

	id := cmd.ID
	if id == "" {
		id = domain.AccountID(uuid.NewString())
	}

	now := s.clock.Now()
	account := domain.Account{
		ID:    id,
		Name:  name,
		Email: strings.TrimSpace(cmd.Email),
		Business: domain.Business{
			Name: strings.TrimSpace(cmd.BusinessName),
			Type: strings.TrimSpace(cmd.BusinessType),
		},
		Subscription: &domain.Subscription{
			Plan:      plan,
			Status:    domain.StatusActive,
			StartedAt: now,
		},
		Usage:       domain.NewUsageRecord(s.period.Start(now)),
		Connections: domain.NewConnections(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	return account, nil
}

// SetSubscription changes plan and status. Usage counters are left alone; the
// new quotas apply to what was already used this period.
func (s *AccountService) SetSubscription(ctx context.Context, cmd SetSubscriptionCommand) (domain.Account, error) {
	if cmd.Plan != "" {
		if _, err := s.catalog.Quotas(cmd.Plan); err != nil {
			return domain.Account{}, err
		}
	}
	if cmd.Status != "" && !cmd.Status.Valid() {
		return domain.Account{}, fmt.Errorf("%w: unknown subscription status %q", ErrInvalidAccount, cmd.Status)
	}

	now := s.clock.Now()
	account, err := s.repo.Update(ctx, cmd.ID, func(account *domain.Account) error {
		sub := domain.Subscription{Plan: domain.LowestPlan, Status: domain.StatusActive, StartedAt: now}
		if account.Subscription != nil {
			sub = *account.Subscription
		}
		if cmd.Plan != "" && cmd.Plan != sub.Plan {
			sub.Plan = cmd.Plan
			sub.StartedAt = now
		}
		if cmd.Status != "" {
			sub.Status = cmd.Status
		}
		account.Subscription = &sub
		account.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Account{}, fmt.Errorf("save account subscription: %w", err)
	}

	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account by id: %w", err)
	}
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}
