package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/petcare-service/internal/api/dto"
	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/domain"
	"github.com/spec-kit/petcare-service/internal/service"
	apperrors "github.com/spec-kit/petcare-service/pkg/util/errorutil"
)

// AccountAuthenticator registers accounts and checks credentials.
type AccountAuthenticator interface {
	Register(ctx context.Context, name, email, password string) (*domain.Account, *domain.TokenPair, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// SessionManager starts, renews and ends sessions.
type SessionManager interface {
	Login(ctx context.Context, identity string) (*domain.TokenPair, error)
	Renew(ctx context.Context, refreshToken string) (*service.RenewResult, error)
	Logout(ctx context.Context, subject string) error
}

// AuthHandler exposes session endpoints.
type AuthHandler struct {
	accounts AccountAuthenticator
	sessions SessionManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(accounts AccountAuthenticator, sessions SessionManager) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	account, pair, err := h.accounts.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return mapError(err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"account": dto.NewAccountResponse(account),
			"auth":    dto.NewTokenPairResponse(pair),
		},
	})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	identity, err := h.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapError(err)
	}
	pair, err := h.sessions.Login(c.UserContext(), identity)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(fiber.Map{"data": dto.NewTokenPairResponse(pair)})
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return apperrors.NewValidationError("refresh_token required", nil)
	}

	result, err := h.sessions.Renew(c.UserContext(), req.RefreshToken)
	if err != nil {
		return mapError(err)
	}

	resp := dto.RefreshResponse{
		AccessToken: result.Access.Value,
		ExpiresAt:   result.Access.ExpiresAt,
		TokenType:   "Bearer",
	}
	if result.Refresh != nil {
		resp.RefreshToken = result.Refresh.Value
		resp.RefreshExpiresAt = &result.Refresh.ExpiresAt
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.sessions.Logout(c.UserContext(), principal.Subject); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}
