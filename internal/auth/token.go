package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ClaimsVersion is the schema version stamped into every issued token.
const ClaimsVersion = 1

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

// Claims describes the JWT payload. Roles are deliberately absent; they are
// resolved per request from the role cache or the account store.
type Claims struct {
	Version int `json:"ver"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token together with its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenManager issues signed access and refresh tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        Clock
}

// TokenOption customizes a TokenManager or TokenValidator.
type TokenOption func(*tokenOptions)

type tokenOptions struct {
	now    Clock
	leeway time.Duration
}

// WithClock overrides the wall clock.
func WithClock(now Clock) TokenOption {
	return func(o *tokenOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLeeway tolerates clock skew when checking expiry. Zero by default.
func WithLeeway(leeway time.Duration) TokenOption {
	return func(o *tokenOptions) {
		if leeway > 0 {
			o.leeway = leeway
		}
	}
}

func buildOptions(opts []TokenOption) tokenOptions {
	o := tokenOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewTokenManager builds a new manager. Non-positive TTLs fall back to defaults.
func NewTokenManager(secret []byte, issuer string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) *TokenManager {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	o := buildOptions(opts)
	return &TokenManager{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        o.now,
	}
}

// Issue builds and signs a token for subject that expires validFor from now.
// Token timestamps have whole-second precision, so the expiry is rounded up
// to the next second and never precedes now+validFor.
func (tm *TokenManager) Issue(subject string, validFor time.Duration) (IssuedToken, error) {
	if subject == "" {
		return IssuedToken{}, errors.New("token subject is required")
	}
	if validFor <= 0 {
		return IssuedToken{}, errors.New("token validity must be positive")
	}

	now := tm.now()
	expiresAt := ceilSecond(now.Add(validFor))
	claims := &Claims{
		Version: ClaimsVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tm.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Value: tokenString, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Before(t) {
		return truncated.Add(time.Second)
	}
	return truncated
}

// IssueAccess issues a short-lived access token.
func (tm *TokenManager) IssueAccess(subject string) (IssuedToken, error) {
	return tm.Issue(subject, tm.accessTTL)
}

// IssueRefresh issues a long-lived refresh token.
func (tm *TokenManager) IssueRefresh(subject string) (IssuedToken, error) {
	return tm.Issue(subject, tm.refreshTTL)
}

// AccessTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}
