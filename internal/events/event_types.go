package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventSessionRenewed EventType = "session_renewed"
	EventSessionEnded   EventType = "session_ended"
	EventAccountDeleted EventType = "account_deleted"
)

// Event represents a session lifecycle event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID int64       `json:"account_id"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// SessionRenewedPayload payload.
type SessionRenewedPayload struct {
	RefreshRotated bool      `json:"refresh_rotated"`
	AccessExpires  time.Time `json:"access_expires"`
}
