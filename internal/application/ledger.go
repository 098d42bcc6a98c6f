package application

import (
	"context"
	"fmt"
	"time"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
)

// Ledger counts feature usage per account and period. It does not enforce
// quotas; callers check entitlement first.
type Ledger struct {
	repo   ports.AccountRepository
	clock  ports.Clock
	period domain.Period
}

func NewLedger(repo ports.AccountRepository, clock ports.Clock, period domain.Period) *Ledger {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if period == nil {
		period = domain.MonthlyPeriod{}
	}

	return &Ledger{repo: repo, clock: clock, period: period}
}

func (l *Ledger) Period() domain.Period { return l.period }

func (l *Ledger) Now() time.Time { return l.clock.Now() }

// CurrentUsage returns the count for the current period without writing.
func (l *Ledger) CurrentUsage(ctx context.Context, id domain.AccountID, feature domain.Feature) (int64, error) {
	if !feature.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownFeature, feature)
	}

	account, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get account by id: %w", err)
	}

	return l.UsageOf(account, feature), nil
}

// UsageOf reads feature's count from an already loaded account.
func (l *Ledger) UsageOf(account domain.Account, feature domain.Feature) int64 {
	return account.Usage.CountAt(feature, l.clock.Now(), l.period)
}

// RecordUsage adds one unit and returns the new count. The read, the rollover
// and the increment happen inside one repository update. Repository errors
// are returned as is.
func (l *Ledger) RecordUsage(ctx context.Context, id domain.AccountID, feature domain.Feature) (int64, error) {
	if !feature.Valid() {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownFeature, feature)
	}

	now := l.clock.Now()
	var count int64

	_, err := l.repo.Update(ctx, id, func(account *domain.Account) error {
		n, err := account.Usage.Record(feature, now, l.period)
		if err != nil {
			return err
		}
		account.UpdatedAt = now
		count = n
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}
