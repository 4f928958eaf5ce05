package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/events"
)

func TestSessionAuditLogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewSessionAudit(dispatcher, zap.New(core)).RegisterHandlers()

	established := events.NewEvent(events.EventSessionEstablished, domain.SessionAuthenticated)
	established.SubjectID = "u-1"
	established.Role = domain.RoleAdmin
	require.NoError(t, dispatcher.Publish(context.Background(), established))

	expiring := events.NewEvent(events.EventSessionExpiring, domain.SessionExpiringSoon)
	expiring.Payload = events.ExpiringPayload{ExpiresAt: time.Now().Add(4 * time.Minute), Remaining: 4 * time.Minute}
	require.NoError(t, dispatcher.Publish(context.Background(), expiring))

	cleared := events.NewEvent(events.EventSessionCleared, domain.SessionUnauthenticated)
	cleared.Payload = events.ClearedPayload{Reason: "logout"}
	require.NoError(t, dispatcher.Publish(context.Background(), cleared))

	failed := events.NewEvent(events.EventAuthFailed, domain.SessionUnauthenticated)
	failed.Payload = events.AuthFailedPayload{Code: "INVALID_CREDENTIALS"}
	require.NoError(t, dispatcher.Publish(context.Background(), failed))

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, "SessionEstablished", entries[0].Message)
	assert.Equal(t, "u-1", entries[0].ContextMap()["subject_id"])
	assert.Equal(t, "admin", entries[0].ContextMap()["role"])

	assert.Equal(t, "SessionExpiring", entries[1].Message)
	assert.Equal(t, 4*time.Minute, entries[1].ContextMap()["remaining"])

	assert.Equal(t, "SessionCleared", entries[2].Message)
	assert.Equal(t, "logout", entries[2].ContextMap()["reason"])
	assert.NotContains(t, entries[2].ContextMap(), "subject_id")

	assert.Equal(t, "AuthFailed", entries[3].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[3].Level)
	assert.Equal(t, "INVALID_CREDENTIALS", entries[3].ContextMap()["code"])
}

func TestSessionAuditWithoutDispatcher(t *testing.T) {
	assert.NotPanics(t, func() { NewSessionAudit(nil, nil).RegisterHandlers() })
}
