package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/petcare-service/internal/api/dto"
	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/domain"
	apperrors "github.com/spec-kit/petcare-service/pkg/util/errorutil"
)

// AccountReader loads and removes accounts.
type AccountReader interface {
	GetAccount(ctx context.Context, subject string) (*domain.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*domain.Account, error)
	DeleteAccount(ctx context.Context, subject string) error
}

// AccountsHandler exposes account endpoints for authenticated callers.
type AccountsHandler struct {
	accounts AccountReader
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(accounts AccountReader) *AccountsHandler {
	return &AccountsHandler{accounts: accounts}
}

// Me handles GET /api/accounts/me.
func (h *AccountsHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	account, err := h.accounts.GetAccount(c.UserContext(), principal.Subject)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"account":   dto.NewAccountResponse(account),
			"principal": fiber.Map{"subject": principal.Subject, "roles": principal.Roles},
		},
	})
}

// DeleteMe handles DELETE /api/accounts/me.
func (h *AccountsHandler) DeleteMe(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.accounts.DeleteAccount(c.UserContext(), principal.Subject); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetByID handles GET /api/admin/accounts/:id.
func (h *AccountsHandler) GetByID(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return apperrors.NewValidationError("invalid account id", map[string]any{"id": c.Params("id")})
	}
	account, err := h.accounts.GetAccountByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			return apperrors.NewNotFound("account", map[string]any{"id": id})
		}
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.NewAccountResponse(account)})
}
