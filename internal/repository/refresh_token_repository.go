package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/petcare-service/internal/domain"
)

// RefreshTokenRepository persists the single live refresh token of each account.
type RefreshTokenRepository interface {
	// Upsert stores token as the account's refresh token, replacing any previous one.
	Upsert(ctx context.Context, accountID int64, token string) error
	FindByAccount(ctx context.Context, accountID int64) (string, error)
	FindByToken(ctx context.Context, token string) (*domain.StoredRefreshToken, error)
	// Delete is idempotent.
	Delete(ctx context.Context, accountID int64) error
}

type refreshTokenRepository struct {
	db      DBTX
	timeout time.Duration
}

// NewRefreshTokenRepository returns a Postgres-backed implementation.
func NewRefreshTokenRepository(db DBTX, timeout time.Duration) RefreshTokenRepository {
	return &refreshTokenRepository{db: db, timeout: timeout}
}

// Upsert relies on the unique account_id constraint: concurrent calls for the
// same account serialize on the row lock and the last committed write wins.
func (r *refreshTokenRepository) Upsert(ctx context.Context, accountID int64, token string) error {
	const query = `
        INSERT INTO refresh_tokens (account_id, token)
        VALUES ($1, $2)
        ON CONFLICT (account_id) DO UPDATE
        SET token = EXCLUDED.token, updated_at = NOW()`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.Exec(ctx, query, accountID, token); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) FindByAccount(ctx context.Context, accountID int64) (string, error) {
	const query = `SELECT token FROM refresh_tokens WHERE account_id=$1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var token string
	if err := r.db.QueryRow(ctx, query, accountID).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

func (r *refreshTokenRepository) FindByToken(ctx context.Context, token string) (*domain.StoredRefreshToken, error) {
	const query = `
        SELECT id, account_id, token, created_at, updated_at
        FROM refresh_tokens WHERE token=$1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	var stored domain.StoredRefreshToken
	if err := r.db.QueryRow(ctx, query, token).Scan(
		&stored.ID,
		&stored.AccountID,
		&stored.Token,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &stored, nil
}

func (r *refreshTokenRepository) Delete(ctx context.Context, accountID int64) error {
	const query = `DELETE FROM refresh_tokens WHERE account_id=$1`

	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
