package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/domain"
	"github.com/spec-kit/petcare-service/internal/events"
	"github.com/spec-kit/petcare-service/internal/repository"
)

// AuthService coordinates registration, credential checks and account
// lifecycle. Sessions are delegated to SessionService.
type AuthService struct {
	accounts   repository.AccountRepository
	sessions   *SessionService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AuthDependencies encapsulates collaborators of the auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	Sessions    *SessionService
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	BcryptCost  int
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		accounts:   deps.AccountRepo,
		sessions:   deps.Sessions,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: deps.BcryptCost,
	}
}

// Register creates a ROLE_USER account and starts its first session.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.Account, *domain.TokenPair, error) {
	email = normalizeEmail(email)

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	account := &domain.Account{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Roles:        []string{domain.RoleUser},
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, nil, ErrEmailTaken
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	pair, err := s.sessions.Login(ctx, account.Email)
	if err != nil {
		return nil, nil, err
	}
	return account, pair, nil
}

// Authenticate checks credentials and returns the confirmed identity. Unknown
// emails and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (string, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return "", ErrInvalidCredentials
	}
	return account.Email, nil
}

// Login authenticates and starts a session in one step.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.TokenPair, error) {
	identity, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.sessions.Login(ctx, identity)
}

// GetAccount returns the account owning subject.
func (s *AuthService) GetAccount(ctx context.Context, subject string) (*domain.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, subject)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return account, nil
}

// GetAccountByID returns an account by its numeric id.
func (s *AuthService) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return account, nil
}

// DeleteAccount ends the session of subject and removes the account.
func (s *AuthService) DeleteAccount(ctx context.Context, subject string) error {
	account, err := s.accounts.GetByEmail(ctx, subject)
	if err != nil {
		return s.lookupError(err)
	}
	if err := s.sessions.revoke(ctx, account); err != nil {
		return err
	}
	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return auth.ErrAccountNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if s.dispatcher != nil {
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventAccountDeleted,
			AccountID: account.ID,
			Subject:   account.Email,
			Timestamp: time.Now().UTC(),
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
		}
	}
	return nil
}

func (s *AuthService) lookupError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return auth.ErrAccountNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
