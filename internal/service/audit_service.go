package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/petcare-service/internal/events"
)

// AuditService records session lifecycle events.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventSessionStarted, a.handleSessionEvent)
	a.dispatcher.Subscribe(events.EventSessionRenewed, a.handleSessionRenewed)
	a.dispatcher.Subscribe(events.EventSessionEnded, a.handleSessionEvent)
	a.dispatcher.Subscribe(events.EventAccountDeleted, a.handleSessionEvent)
}

func (a *AuditService) handleSessionEvent(_ context.Context, event events.Event) error {
	a.logger.Info(string(event.Type), eventFields(event)...)
	return nil
}

func (a *AuditService) handleSessionRenewed(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if payload, ok := event.Payload.(events.SessionRenewedPayload); ok {
		fields = append(fields,
			zap.Bool("refresh_rotated", payload.RefreshRotated),
			zap.Time("access_expires", payload.AccessExpires))
	}
	a.logger.Info(string(event.Type), fields...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.Int64("account_id", event.AccountID),
		zap.Time("at", event.Timestamp),
	}
}
