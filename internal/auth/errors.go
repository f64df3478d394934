package auth

import "errors"

var (
	// ErrMalformedToken covers unparsable tokens, bad signatures and unknown claim schemas.
	ErrMalformedToken = errors.New("malformed token")
	// ErrExpiredToken is returned when the signature verifies but the token is past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrInvalidRefreshToken is returned when a refresh token fails validation or is not the
	// current stored token for its account.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrAccountNotFound is returned when the account owning a session no longer exists.
	ErrAccountNotFound = errors.New("account not found")
)
