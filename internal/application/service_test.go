package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAccountServiceCreateAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	account, err := f.accounts.CreateAccount(ctx, CreateAccountCommand{
		Name:         "  Rosa's Bakery  ",
		Email:        "rosa@example.com",
		BusinessName: "Rosa's Bakery",
		BusinessType: "bakery",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "Rosa's Bakery", account.Name)
	assert.Equal(t, domain.Business{Name: "Rosa's Bakery", Type: "bakery"}, account.Business)
	require.NotNil(t, account.Subscription)
	assert.Equal(t, domain.PlanFree, account.Subscription.Plan)
	assert.Equal(t, domain.StatusActive, account.Subscription.Status)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), account.Usage.ResetWatermark)
	assert.Len(t, account.Connections.ByPlatform, len(domain.Platforms()))

	stored, err := f.accounts.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account, stored)
}

func TestAccountServiceCreateAccountValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.accounts.CreateAccount(ctx, CreateAccountCommand{Name: "   "})
	require.ErrorIs(t, err, ErrInvalidAccount)

	_, err = f.accounts.CreateAccount(ctx, CreateAccountCommand{Name: "A", Plan: "gold"})
	require.ErrorIs(t, err, domain.ErrUnknownPlan)

	f.createAccount(t, "dup", domain.PlanFree)
	_, err = f.accounts.CreateAccount(ctx, CreateAccountCommand{ID: "dup", Name: "Again"})
	require.ErrorIs(t, err, domain.ErrAccountExists)
}

func TestAccountServiceSetSubscription(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.createAccount(t, "acc-1", domain.PlanLocalBoost)

	for i := 0; i < 10; i++ {
		_, err := f.ledger.RecordUsage(ctx, "acc-1", domain.FeatureAIContent)
		require.NoError(t, err)
	}

	*f.now = march10.Add(24 * time.Hour)
	account, err := f.accounts.SetSubscription(ctx, SetSubscriptionCommand{ID: "acc-1", Plan: domain.PlanGrowthAccelerator})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanGrowthAccelerator, account.Subscription.Plan)
	assert.Equal(t, domain.StatusActive, account.Subscription.Status)
	assert.Equal(t, *f.now, account.Subscription.StartedAt)

	remaining, err := f.evaluator.Remaining(ctx, "acc-1", domain.FeatureAIContent)
	require.NoError(t, err)
	assert.Equal(t, domain.Finite(40), remaining)

	account, err = f.accounts.SetSubscription(ctx, SetSubscriptionCommand{ID: "acc-1", Status: domain.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanGrowthAccelerator, account.Subscription.Plan)
	assert.Equal(t, domain.StatusCancelled, account.Subscription.Status)

	_, err = f.accounts.SetSubscription(ctx, SetSubscriptionCommand{ID: "acc-1", Status: "paused"})
	require.ErrorIs(t, err, ErrInvalidAccount)

	_, err = f.accounts.SetSubscription(ctx, SetSubscriptionCommand{ID: "acc-1", Plan: "gold"})
	require.ErrorIs(t, err, domain.ErrUnknownPlan)

	_, err = f.accounts.SetSubscription(ctx, SetSubscriptionCommand{ID: "ghost", Plan: domain.PlanScale})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountServiceListAccountsWrapsRepositoryError(t *testing.T) {
	t.Parallel()

	repo := mocks.NewMockAccountRepository(t)
	listErr := errors.New("connection reset")
	repo.EXPECT().List(mock.Anything).Return(nil, listErr).Once()

	svc := NewAccountService(repo, domain.DefaultPlanCatalog(), nil, nil)
	_, err := svc.ListAccounts(context.Background())
	require.ErrorIs(t, err, listErr)
	assert.Contains(t, err.Error(), "list accounts")
}
