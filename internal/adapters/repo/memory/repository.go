package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
)

// Repository keeps accounts in process memory. It backs tests and the
// "memory" storage driver. Update serializes per account; mu only guards
// the map itself.
type Repository struct {
	mu       sync.RWMutex
	accounts map[domain.AccountID]domain.Account
	locks    *accountLocks
}

var _ ports.AccountRepository = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{
		accounts: make(map[domain.AccountID]domain.Account),
		locks:    newAccountLocks(),
	}
}

func (r *Repository) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	accounts := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r *Repository) Create(ctx context.Context, account domain.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return domain.ErrAccountExists
	}
	r.accounts[account.ID] = account.Clone()
	return nil
}

func (r *Repository) Update(ctx context.Context, id domain.AccountID, fn ports.UpdateFunc) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	unlock := r.locks.lock(id)
	defer unlock()

	r.mu.RLock()
	stored, ok := r.accounts[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	account := stored.Clone()
	if err := fn(&account); err != nil {
		return domain.Account{}, err
	}
	account.ID = id

	r.mu.Lock()
	r.accounts[id] = account.Clone()
	r.mu.Unlock()

	return account, nil
}
