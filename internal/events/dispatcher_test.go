package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/portal-auth/internal/domain"
)

func TestPublishInvokesAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string

	d.Subscribe(EventSessionCleared, func(_ context.Context, e Event) error {
		calls = append(calls, "first")
		return errors.New("first failed")
	})
	d.Subscribe(EventSessionCleared, func(_ context.Context, e Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventSessionEstablished, func(_ context.Context, e Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), NewEvent(EventSessionCleared, domain.SessionUnauthenticated))
	assert.EqualError(t, err, "first failed")
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestSubscribeAllCoversEveryType(t *testing.T) {
	d := NewInMemoryDispatcher()
	seen := map[EventType]int{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		seen[e.Type]++
		return nil
	})

	for _, eventType := range []EventType{EventSessionEstablished, EventSessionRefreshed, EventSessionCleared, EventSessionExpiring, EventSessionExpired, EventAuthFailed} {
		assert.NoError(t, d.Publish(context.Background(), NewEvent(eventType, domain.SessionAuthenticated)))
	}
	assert.Len(t, seen, 6)
}

func TestNewEventStampsIDAndTime(t *testing.T) {
	e := NewEvent(EventSessionExpired, domain.SessionExpired)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, domain.SessionExpired, e.State)
}
