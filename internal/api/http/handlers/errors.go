package handlers

import (
	"errors"

	"github.com/spec-kit/petcare-service/internal/auth"
	"github.com/spec-kit/petcare-service/internal/service"
	apperrors "github.com/spec-kit/petcare-service/pkg/util/errorutil"
)

// mapError translates service and auth sentinels into HTTP-facing domain
// errors. Authentication failures share one generic message.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrInvalidRefreshToken),
		errors.Is(err, auth.ErrMalformedToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrAccountNotFound):
		return apperrors.NewUnauthorized("invalid or expired credentials")
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid email or password")
	case errors.Is(err, service.ErrEmailTaken):
		return apperrors.NewConflict("email already registered", nil)
	case errors.Is(err, service.ErrStoreUnavailable):
		return apperrors.NewServiceUnavailable(err)
	default:
		return apperrors.MapError(err)
	}
}
