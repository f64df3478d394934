package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	principalKey = "auth_principal"
	bearerScheme = "Bearer"
)

type principalContextKey struct{}

// Principal represents the authenticated caller for a single request.
type Principal struct {
	Subject string
	Roles   []string
}

// HasRole reports whether the principal was granted role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// RoleSource resolves the roles of an account identity.
type RoleSource interface {
	ResolveRoles(ctx context.Context, subject string) ([]string, error)
}

// ValidationRecorder receives the outcome of every token check.
type ValidationRecorder interface {
	RecordTokenValidation(outcome string)
}

// AuthMiddleware attaches a principal to requests carrying a valid bearer token.
// It never rejects a request; guards further down the chain do that.
type AuthMiddleware struct {
	validator *TokenValidator
	roles     RoleSource
	logger    *zap.Logger
	recorder  ValidationRecorder
	skipPaths map[string]struct{}
}

// NewAuthMiddleware constructs middleware. Requests to skipPaths are passed
// through without looking at the Authorization header. A nil roles source
// attaches principals without roles.
func NewAuthMiddleware(validator *TokenValidator, roles RoleSource, logger *zap.Logger, recorder ValidationRecorder, skipPaths ...string) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}
	return &AuthMiddleware{validator: validator, roles: roles, logger: logger, recorder: recorder, skipPaths: skip}
}

// Handle runs once per request.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if _, skip := m.skipPaths[c.Path()]; skip {
		return c.Next()
	}

	token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.Next()
	}

	claims, err := m.validator.Parse(token)
	if err != nil {
		m.record(outcomeFor(err))
		return c.Next()
	}
	m.record("valid")

	var roles []string
	if m.roles != nil {
		roles, err = m.roles.ResolveRoles(c.UserContext(), claims.Subject)
		if err != nil {
			m.logger.Warn("unable to resolve roles; continuing unauthenticated",
				zap.String("subject", claims.Subject), zap.Error(err))
			return c.Next()
		}
	}

	principal := &Principal{Subject: claims.Subject, Roles: roles}
	c.Locals(principalKey, principal)
	c.SetUserContext(WithPrincipal(c.UserContext(), principal))
	return c.Next()
}

func (m *AuthMiddleware) record(outcome string) {
	if m.recorder != nil {
		m.recorder.RecordTokenValidation(outcome)
	}
}

func outcomeFor(err error) string {
	if errors.Is(err, ErrExpiredToken) {
		return "expired"
	}
	return "malformed"
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// WithPrincipal stores principal in ctx for code below the HTTP layer.
func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFrom returns the principal stored by WithPrincipal.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(*Principal)
	return principal, ok && principal != nil
}
