package application

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/marketwin/internal/adapters/repo/memory"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var march10 = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func mockAnyContext() interface{} {
	return mock.MatchedBy(func(context.Context) bool { return true })
}

// newTestClock returns a clock reading *now on every call.
func newTestClock(t *testing.T, now *time.Time) *mocks.MockClock {
	t.Helper()

	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().RunAndReturn(func() time.Time { return *now }).Maybe()
	return clock
}

type fixture struct {
	now       *time.Time
	repo      *memory.Repository
	accounts  *AccountService
	ledger    *Ledger
	evaluator *Evaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	now := march10
	clock := newTestClock(t, &now)
	repo := memory.NewRepository()
	catalog := domain.DefaultPlanCatalog()
	ledger := NewLedger(repo, clock, domain.MonthlyPeriod{})

	return &fixture{
		now:       &now,
		repo:      repo,
		accounts:  NewAccountService(repo, catalog, clock, domain.MonthlyPeriod{}),
		ledger:    ledger,
		evaluator: NewEvaluator(catalog, repo, ledger),
	}
}

func (f *fixture) createAccount(t *testing.T, id domain.AccountID, plan domain.PlanID) domain.Account {
	t.Helper()

	account, err := f.accounts.CreateAccount(context.Background(), CreateAccountCommand{ID: id, Name: "Test " + string(id), Plan: plan})
	require.NoError(t, err)
	return account
}
