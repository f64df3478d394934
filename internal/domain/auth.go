package domain

import "time"

// StoredRefreshToken is the single live refresh token persisted for an account.
type StoredRefreshToken struct {
	ID        int64
	AccountID int64
	Token     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenPair is returned to clients after login.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
