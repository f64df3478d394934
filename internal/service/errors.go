package service

import "errors"

var (
	// ErrStoreUnavailable wraps transient persistence failures; clients may retry.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrInvalidCredentials is returned by the credential check on any mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")
)
