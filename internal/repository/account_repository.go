package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/spec-kit/petcare-service/internal/domain"
)

// AccountRepository defines persistence access for accounts, the source of
// truth for identities and roles.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	Delete(ctx context.Context, id int64) error
}

type accountRepository struct {
	db      DBTX
	timeout time.Duration
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db DBTX, timeout time.Duration) AccountRepository {
	return &accountRepository{db: db, timeout: timeout}
}

const accountColumns = `id, email, name, password_hash, roles, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (email, name, password_hash, roles)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	err := r.db.QueryRow(ctx, query,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.Roles,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return r.get(ctx, query, id)
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`
	return r.get(ctx, query, email)
}

func (r *accountRepository) get(ctx context.Context, query string, arg any) (*domain.Account, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var account domain.Account
	if err := pgxscan.Get(ctx, r.db, &account, query, arg); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &account, nil
}

// Delete removes the account. Its refresh token row goes with it through the
// foreign key cascade.
func (r *accountRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM accounts WHERE id=$1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
