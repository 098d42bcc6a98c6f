package ports

import (
	"context"

	"github.com/bnema/marketwin/internal/domain"
)

// UpdateFunc mutates an account inside a repository transaction. Returning an
// error aborts the update and nothing is written.
type UpdateFunc func(account *domain.Account) error

type AccountRepository interface {
	GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	Create(ctx context.Context, account domain.Account) error
	// Update runs fn against the latest stored account and persists the result.
	// Concurrent updates of the same account are serialized.
	Update(ctx context.Context, id domain.AccountID, fn UpdateFunc) (domain.Account, error)
}
