package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/cache"
	"github.com/spec-kit/petcare-service/internal/domain"
	"github.com/spec-kit/petcare-service/internal/repository"
)

// RoleCache is the advisory authorization cache.
type RoleCache interface {
	Put(ctx context.Context, accountID string, roles []string, ttl time.Duration) error
	Get(ctx context.Context, accountID string) ([]string, error)
	Evict(ctx context.Context, accountID string) error
}

// RoleLookupRecorder receives role lookup outcomes.
type RoleLookupRecorder interface {
	RecordRoleLookup(outcome string)
}

// RoleResolver answers role queries from the cache and falls back to the
// account store on a miss or a cache failure.
type RoleResolver struct {
	cache    RoleCache
	accounts repository.AccountRepository
	ttl      time.Duration
	logger   *zap.Logger
	recorder RoleLookupRecorder
}

// NewRoleResolver builds a resolver.
func NewRoleResolver(c RoleCache, accounts repository.AccountRepository, ttl time.Duration, logger *zap.Logger, recorder RoleLookupRecorder) *RoleResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleResolver{cache: c, accounts: accounts, ttl: ttl, logger: logger, recorder: recorder}
}

var _ auth.RoleSource = (*RoleResolver)(nil)

// ResolveRoles returns the roles of subject.
func (r *RoleResolver) ResolveRoles(ctx context.Context, subject string) ([]string, error) {
	if r.cache != nil {
		roles, err := r.cache.Get(ctx, subject)
		switch {
		case err == nil:
			r.record("hit")
			return roles, nil
		case errors.Is(err, cache.ErrMiss):
			r.record("miss")
		default:
			r.record("error")
			r.logger.Warn("role cache unavailable; using account store", zap.Error(err))
		}
	}

	account, err := r.accounts.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	roles := domain.NormalizeRoles(account.Roles)
	r.remember(ctx, subject, roles)
	return roles, nil
}

func (r *RoleResolver) remember(ctx context.Context, subject string, roles []string) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	if err := r.cache.Put(ctx, subject, roles, r.ttl); err != nil {
		r.logger.Warn("unable to populate role cache", zap.Error(err))
	}
}

func (r *RoleResolver) record(outcome string) {
	if r.recorder != nil {
		r.recorder.RecordRoleLookup(outcome)
	}
}
