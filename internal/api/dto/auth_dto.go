package dto

import (
	"time"

	"github.com/spec-kit/petcare-service/internal/domain"
)

// RegisterRequest payload for new accounts.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest payload for session renewal.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPairResponse is returned after register and login.
type TokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	TokenType        string    `json:"token_type"`
}

// RefreshResponse is returned by the renewal endpoint. RefreshToken is only
// set when rotation is enabled.
type RefreshResponse struct {
	AccessToken      string     `json:"access_token"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RefreshToken     string     `json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time `json:"refresh_expires_at,omitempty"`
	TokenType        string     `json:"token_type"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTokenPairResponse maps a token pair.
func NewTokenPairResponse(pair *domain.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		TokenType:        "Bearer",
	}
}

// NewAccountResponse maps an account without its password hash.
func NewAccountResponse(account *domain.Account) AccountResponse {
	roles := domain.NormalizeRoles(account.Roles)
	return AccountResponse{
		ID:        account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Roles:     roles,
		CreatedAt: account.CreatedAt,
	}
}
