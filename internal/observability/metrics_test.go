package observability

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordOperation("login", "", 10*time.Millisecond)
	m.RecordOperation("login", "INVALID_CREDENTIALS", time.Millisecond)
	m.RecordDecision("render")
	m.RecordDecision("render")
	m.RecordRequest("/admin", "GET", 303, time.Millisecond)
	m.RecordError("/login", "POST", "INVALID_CREDENTIALS")

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.Operations["login|ok"])
	assert.Equal(t, int64(1), snap.Operations["login|INVALID_CREDENTIALS"])
	assert.Equal(t, int64(2), snap.Decisions["render"])
	assert.Equal(t, int64(1), snap.Requests["/admin|GET|303"])
	assert.Equal(t, int64(1), snap.Errors["/login|POST|INVALID_CREDENTIALS"])
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordOperation("logout", "", 0)
	m.RecordDecision("loading")
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "INTERNAL_ERROR")
	assert.Empty(t, m.Snapshot().Operations)
}

func TestRequestLoggerCountsRoutes(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(nil, m))
	app.Get("/admin/:section", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/admin/staff", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int64(1), m.Snapshot().Requests["/admin/:section|GET|204"])
}
