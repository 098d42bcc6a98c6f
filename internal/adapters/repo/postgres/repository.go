package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/marketwin/internal/adapters/repo/document"
	"github.com/bnema/marketwin/internal/domain"
	"github.com/bnema/marketwin/internal/ports"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	document   JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Repository stores accounts as JSONB documents. Update locks the row with
// SELECT ... FOR UPDATE for the duration of the callback.
type Repository struct {
	db *sql.DB
}

var _ ports.AccountRepository = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate accounts table: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id domain.AccountID) (domain.Account, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT document FROM accounts WHERE id = $1`, string(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("select account %s: %w", id, err)
	}

	return document.Unmarshal(data)
}

func (r *Repository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT document FROM accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("select accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		account, err := document.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}

	return accounts, nil
}

func (r *Repository) Create(ctx context.Context, account domain.Account) error {
	data, err := document.Marshal(account)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, document) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		string(account.ID), data,
	)
	if err != nil {
		return fmt.Errorf("insert account %s: %w", account.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert account %s: %w", account.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID)
	}

	return nil
}

func (r *Repository) Update(ctx context.Context, id domain.AccountID, fn ports.UpdateFunc) (domain.Account, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Account{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT document FROM accounts WHERE id = $1 FOR UPDATE`, string(id)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("lock account %s: %w", id, err)
	}

	account, err := document.Unmarshal(data)
	if err != nil {
		return domain.Account{}, err
	}
	if err := fn(&account); err != nil {
		return domain.Account{}, err
	}
	account.ID = id

	encoded, err := document.Marshal(account)
	if err != nil {
		return domain.Account{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET document = $2, updated_at = now() WHERE id = $1`,
		string(id), encoded,
	); err != nil {
		return domain.Account{}, fmt.Errorf("update account %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Account{}, fmt.Errorf("commit account %s: %w", id, err)
	}

	return account, nil
}
