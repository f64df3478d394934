package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/petcare-service/pkg/util/errorutil"
)

// RequireAuthenticated rejects requests that carry no principal.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}

// RequireRole ensures the principal holds at least one of the allowed roles.
func RequireRole(allowed ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		for _, role := range allowed {
			if principal.HasRole(role) {
				return c.Next()
			}
		}
		return apperrors.NewForbidden("insufficient role")
	}
}
