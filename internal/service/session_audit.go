package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/events"
	"github.com/spec-kit/portal-auth/internal/observability"
)

// SessionAudit writes an audit line for every session lifecycle event.
type SessionAudit struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewSessionAudit creates the service.
func NewSessionAudit(dispatcher events.Dispatcher, logger *zap.Logger) *SessionAudit {
	return &SessionAudit{
		dispatcher: dispatcher,
		logger:     observability.OrNop(logger).Named("session_audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *SessionAudit) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventSessionEstablished, a.handleEstablished)
	a.dispatcher.Subscribe(events.EventSessionRefreshed, a.handleRefreshed)
	a.dispatcher.Subscribe(events.EventSessionExpiring, a.handleExpiring)
	a.dispatcher.Subscribe(events.EventSessionExpired, a.handleExpired)
	a.dispatcher.Subscribe(events.EventSessionCleared, a.handleCleared)
	a.dispatcher.Subscribe(events.EventAuthFailed, a.handleAuthFailed)
}

func (a *SessionAudit) handleEstablished(_ context.Context, event events.Event) error {
	a.logger.Info("SessionEstablished", a.fields(event)...)
	return nil
}

func (a *SessionAudit) handleRefreshed(_ context.Context, event events.Event) error {
	a.logger.Info("SessionRefreshed", a.fields(event)...)
	return nil
}

func (a *SessionAudit) handleExpiring(_ context.Context, event events.Event) error {
	fields := a.fields(event)
	if payload, ok := event.Payload.(events.ExpiringPayload); ok {
		fields = append(fields,
			zap.Time("expires_at", payload.ExpiresAt),
			zap.Duration("remaining", payload.Remaining))
	}
	a.logger.Info("SessionExpiring", fields...)
	return nil
}

func (a *SessionAudit) handleExpired(_ context.Context, event events.Event) error {
	a.logger.Warn("SessionExpired", a.fields(event)...)
	return nil
}

func (a *SessionAudit) handleCleared(_ context.Context, event events.Event) error {
	fields := a.fields(event)
	if payload, ok := event.Payload.(events.ClearedPayload); ok {
		fields = append(fields, zap.String("reason", payload.Reason))
	}
	a.logger.Info("SessionCleared", fields...)
	return nil
}

func (a *SessionAudit) handleAuthFailed(_ context.Context, event events.Event) error {
	fields := a.fields(event)
	if payload, ok := event.Payload.(events.AuthFailedPayload); ok {
		fields = append(fields, zap.String("code", payload.Code))
	}
	a.logger.Warn("AuthFailed", fields...)
	return nil
}

func (a *SessionAudit) fields(event events.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("state", event.State.String()),
		zap.Time("at", event.Timestamp),
	}
	if event.SubjectID != "" {
		fields = append(fields, zap.String("subject_id", event.SubjectID))
	}
	if event.Role != "" {
		fields = append(fields, zap.String("role", string(event.Role)))
	}
	return fields
}
