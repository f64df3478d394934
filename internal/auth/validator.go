package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// TokenValidator verifies tokens issued by a TokenManager sharing the same secret.
type TokenValidator struct {
	secret []byte
	parser *jwt.Parser
}

// NewTokenValidator builds a validator. An empty issuer disables the issuer check.
func NewTokenValidator(secret []byte, issuer string, opts ...TokenOption) *TokenValidator {
	o := buildOptions(opts)
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(o.now),
	}
	if o.leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(o.leeway))
	}
	if issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(issuer))
	}
	return &TokenValidator{secret: secret, parser: jwt.NewParser(parserOpts...)}
}

// Validate reports whether token has a valid signature, is unexpired and well formed.
func (v *TokenValidator) Validate(token string) bool {
	_, err := v.Parse(token)
	return err == nil
}

// Parse verifies token and returns its claims. Failures are reported as
// ErrExpiredToken or ErrMalformedToken.
func (v *TokenValidator) Parse(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformedToken
	}

	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.Version != ClaimsVersion || claims.Subject == "" || claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: unsupported claims", ErrMalformedToken)
	}
	return claims, nil
}

// Claims returns the claims of a token that is expected to be valid. Any
// failure is reported as ErrMalformedToken.
func (v *TokenValidator) Claims(token string) (*Claims, error) {
	claims, err := v.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return claims, nil
}

// Expiry returns the expiry instant, or the zero time when absent.
func (c *Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
