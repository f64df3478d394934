package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/domain"
	"github.com/spec-kit/petcare-service/internal/events"
	"github.com/spec-kit/petcare-service/internal/repository"
)

// RenewalRecorder receives renewal outcomes.
type RenewalRecorder interface {
	RecordRenewal(outcome string)
}

// SessionService issues, renews and revokes sessions for confirmed identities.
// It never checks passwords.
type SessionService struct {
	tokens        *auth.TokenManager
	validator     *auth.TokenValidator
	refresh       repository.RefreshTokenRepository
	accounts      repository.AccountRepository
	roles         RoleCache
	roleTTL       time.Duration
	rotateOnRenew bool
	dispatcher    events.Dispatcher
	logger        *zap.Logger
	recorder      RenewalRecorder
	now           func() time.Time
}

// SessionDependencies encapsulates collaborators of the session service.
type SessionDependencies struct {
	Tokens       *auth.TokenManager
	Validator    *auth.TokenValidator
	RefreshRepo  repository.RefreshTokenRepository
	AccountRepo  repository.AccountRepository
	RoleCache    RoleCache
	Dispatcher   events.Dispatcher
	Logger       *zap.Logger
	Recorder     RenewalRecorder
	RoleCacheTTL time.Duration
	// RotateRefreshOnRenew also replaces the refresh token on every renewal.
	RotateRefreshOnRenew bool
}

// NewSessionService builds the service.
func NewSessionService(deps SessionDependencies) *SessionService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		tokens:        deps.Tokens,
		validator:     deps.Validator,
		refresh:       deps.RefreshRepo,
		accounts:      deps.AccountRepo,
		roles:         deps.RoleCache,
		roleTTL:       deps.RoleCacheTTL,
		rotateOnRenew: deps.RotateRefreshOnRenew,
		dispatcher:    deps.Dispatcher,
		logger:        logger,
		recorder:      deps.Recorder,
		now:           time.Now,
	}
}

// RenewResult carries the new access token and, when rotation is enabled,
// the replacement refresh token.
type RenewResult struct {
	Access  auth.IssuedToken
	Refresh *auth.IssuedToken
}

// Login starts a session for an identity already confirmed by the credential
// check. Any previous refresh token of the account stops working.
func (s *SessionService) Login(ctx context.Context, identity string) (*domain.TokenPair, error) {
	account, err := s.accounts.GetByEmail(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, err := s.tokens.IssueAccess(account.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(account.Email)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.refresh.Upsert(ctx, account.ID, refresh.Value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if s.roles != nil && s.roleTTL > 0 {
		if err := s.roles.Put(ctx, account.Email, domain.NormalizeRoles(account.Roles), s.roleTTL); err != nil {
			s.logger.Warn("unable to populate role cache at login", zap.Int64("account_id", account.ID), zap.Error(err))
		}
	}

	s.publish(ctx, events.EventSessionStarted, account, nil)

	return &domain.TokenPair{
		AccessToken:      access.Value,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refresh.Value,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// Renew exchanges a refresh token for a new access token. The owning account
// is taken from the stored row, not from the token's subject claim.
func (s *SessionService) Renew(ctx context.Context, refreshToken string) (*RenewResult, error) {
	result, err := s.renew(ctx, refreshToken)
	s.recordRenewal(err)
	return result, err
}

func (s *SessionService) renew(ctx context.Context, refreshToken string) (*RenewResult, error) {
	if !s.validator.Validate(refreshToken) {
		return nil, auth.ErrInvalidRefreshToken
	}

	stored, err := s.refresh.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	account, err := s.accounts.GetByID(ctx, stored.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, err := s.tokens.IssueAccess(account.Email)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	result := &RenewResult{Access: access}

	if s.rotateOnRenew {
		next, err := s.tokens.IssueRefresh(account.Email)
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}
		if err := s.refresh.Upsert(ctx, account.ID, next.Value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		result.Refresh = &next
	}

	s.publish(ctx, events.EventSessionRenewed, account, events.SessionRenewedPayload{
		RefreshRotated: result.Refresh != nil,
		AccessExpires:  access.ExpiresAt,
	})
	return result, nil
}

// Logout invalidates the session of the account identified by subject: the
// stored refresh token is deleted and the cached roles are evicted before
// returning.
func (s *SessionService) Logout(ctx context.Context, subject string) error {
	account, err := s.accounts.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.evict(ctx, subject)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := s.revoke(ctx, account); err != nil {
		return err
	}
	s.publish(ctx, events.EventSessionEnded, account, nil)
	return nil
}

func (s *SessionService) revoke(ctx context.Context, account *domain.Account) error {
	if err := s.refresh.Delete(ctx, account.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.evict(ctx, account.Email)
	return nil
}

func (s *SessionService) evict(ctx context.Context, subject string) {
	if s.roles == nil {
		return
	}
	if err := s.roles.Evict(ctx, subject); err != nil {
		s.logger.Warn("unable to evict role cache entry", zap.String("subject", subject), zap.Error(err))
	}
}

func (s *SessionService) publish(ctx context.Context, eventType events.EventType, account *domain.Account, payload interface{}) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: account.ID,
		Subject:   account.Email,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func (s *SessionService) recordRenewal(err error) {
	if s.recorder == nil {
		return
	}
	switch {
	case err == nil:
		s.recorder.RecordRenewal("ok")
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		s.recorder.RecordRenewal("invalid_refresh_token")
	case errors.Is(err, auth.ErrAccountNotFound):
		s.recorder.RecordRenewal("account_not_found")
	case errors.Is(err, ErrStoreUnavailable):
		s.recorder.RecordRenewal("store_unavailable")
	default:
		s.recorder.RecordRenewal("error")
	}
}
