package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/petcare-service/pkg/util/errorutil"
)

type fakeRoleSource struct {
	roles map[string][]string
	err   error
	calls int
}

func (f *fakeRoleSource) ResolveRoles(_ context.Context, subject string) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	roles, ok := f.roles[subject]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return roles, nil
}

type recordingValidations struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingValidations) RecordTokenValidation(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type middlewareFixture struct {
	app      *fiber.App
	tokens   *TokenManager
	clock    *fakeClock
	roles    *fakeRoleSource
	recorder *recordingValidations
}

func newMiddlewareFixture(t *testing.T) *middlewareFixture {
	t.Helper()

	clock := newClock()
	tm, v := newPair(clock)
	roles := &fakeRoleSource{roles: map[string][]string{
		"u1@example.com":    {"ROLE_USER"},
		"admin@example.com": {"ROLE_USER", "ROLE_ADMIN"},
	}}
	recorder := &recordingValidations{}
	mw := NewAuthMiddleware(v, roles, nil, recorder, "/auth/login")

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
		},
	})
	app.Use(mw.Handle)

	whoami := func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return c.SendString("anonymous")
		}
		ctxPrincipal, ok := PrincipalFrom(c.UserContext())
		if !ok || ctxPrincipal != principal {
			return errors.New("principal missing from user context")
		}
		return c.SendString(principal.Subject)
	}
	app.Get("/whoami", whoami)
	app.Post("/auth/login", whoami)
	app.Get("/protected", RequireAuthenticated(), whoami)
	app.Get("/admin", RequireRole("ROLE_ADMIN"), whoami)

	return &middlewareFixture{app: app, tokens: tm, clock: clock, roles: roles, recorder: recorder}
}

func (f *middlewareFixture) do(t *testing.T, method, path, authHeader string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func (f *middlewareFixture) bearer(t *testing.T, subject string) string {
	t.Helper()
	tok, err := f.tokens.IssueAccess(subject)
	require.NoError(t, err)
	return "Bearer " + tok.Value
}

func TestMiddleware_NoHeaderPassesThrough(t *testing.T) {
	f := newMiddlewareFixture(t)

	status, body := f.do(t, http.MethodGet, "/whoami", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
	assert.Empty(t, f.recorder.outcomes)
}

func TestMiddleware_NoHeaderOnProtectedResourceIsDenied(t *testing.T) {
	f := newMiddlewareFixture(t)

	status, body := f.do(t, http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "UNAUTHORIZED")
}

func TestMiddleware_MalformedHeaderIsTreatedAsMissing(t *testing.T) {
	f := newMiddlewareFixture(t)
	tok := f.bearer(t, "u1@example.com")[len("Bearer "):]

	for _, header := range []string{
		"Token " + tok,
		"Bearer",
		"Bearer ",
		"Basic dXNlcjpwYXNz",
		"Bearer " + tok + " extra",
	} {
		status, body := f.do(t, http.MethodGet, "/whoami", header)
		assert.Equal(t, http.StatusOK, status, header)
		assert.Equal(t, "anonymous", body, header)
	}
	assert.Empty(t, f.recorder.outcomes)
	assert.Zero(t, f.roles.calls)
}

func TestMiddleware_ValidTokenAttachesPrincipal(t *testing.T) {
	f := newMiddlewareFixture(t)

	status, body := f.do(t, http.MethodGet, "/protected", f.bearer(t, "u1@example.com"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "u1@example.com", body)
	assert.Equal(t, []string{"valid"}, f.recorder.outcomes)
}

func TestMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	f := newMiddlewareFixture(t)
	tok := f.bearer(t, "u1@example.com")[len("Bearer "):]

	status, body := f.do(t, http.MethodGet, "/whoami", "bearer "+tok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "u1@example.com", body)
}

func TestMiddleware_InvalidTokenPassesThroughUnauthenticated(t *testing.T) {
	f := newMiddlewareFixture(t)

	status, body := f.do(t, http.MethodGet, "/whoami", "Bearer not.a.token")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)

	status, _ = f.do(t, http.MethodGet, "/protected", "Bearer not.a.token")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, []string{"malformed", "malformed"}, f.recorder.outcomes)
	assert.Zero(t, f.roles.calls)
}

func TestMiddleware_ExpiredToken(t *testing.T) {
	f := newMiddlewareFixture(t)
	header := f.bearer(t, "u1@example.com")
	f.clock.Advance(2 * time.Minute)

	status, body := f.do(t, http.MethodGet, "/whoami", header)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
	assert.Equal(t, []string{"expired"}, f.recorder.outcomes)
}

func TestMiddleware_UnresolvableRolesLeaveRequestUnauthenticated(t *testing.T) {
	f := newMiddlewareFixture(t)

	status, body := f.do(t, http.MethodGet, "/whoami", f.bearer(t, "ghost@example.com"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)

	f.roles.err = errors.New("store down")
	status, _ = f.do(t, http.MethodGet, "/protected", f.bearer(t, "u1@example.com"))
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMiddleware_SkipPathIgnoresHeader(t *testing.T) {
	f := newMiddlewareFixture(t)

	status, body := f.do(t, http.MethodPost, "/auth/login", f.bearer(t, "u1@example.com"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body)
	assert.Empty(t, f.recorder.outcomes)
	assert.Zero(t, f.roles.calls)
}

func TestRequireRole(t *testing.T) {
	f := newMiddlewareFixture(t)

	status, _ := f.do(t, http.MethodGet, "/admin", f.bearer(t, "u1@example.com"))
	assert.Equal(t, http.StatusForbidden, status)

	status, body := f.do(t, http.MethodGet, "/admin", f.bearer(t, "admin@example.com"))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "admin@example.com", body)

	status, _ = f.do(t, http.MethodGet, "/admin", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"BEARER abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic abc", "", false},
		{"Bearerabc", "", false},
		{"Bearer a b", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestMiddleware_NilRoleSourceAttachesPrincipalWithoutRoles(t *testing.T) {
	clock := newClock()
	tm, v := newPair(clock)
	mw := NewAuthMiddleware(v, nil, nil, nil)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"code": de.Code})
		},
	})
	app.Use(mw.Handle)
	app.Get("/protected", RequireAuthenticated(), func(c *fiber.Ctx) error {
		principal, _ := PrincipalFromContext(c)
		return c.SendString(principal.Subject)
	})
	app.Get("/admin", RequireRole("ROLE_ADMIN"), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	tok, err := tm.IssueAccess("u1@example.com")
	require.NoError(t, err)

	call := func(path string) (int, string) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+tok.Value)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := call("/protected")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "u1@example.com", body)

	status, _ = call("/admin")
	assert.Equal(t, http.StatusForbidden, status)
}
