package guard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/config"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/events"
	"github.com/spec-kit/portal-auth/internal/observability"
	"github.com/spec-kit/portal-auth/internal/repository"
	"github.com/spec-kit/portal-auth/internal/session"
)

type fixedState session.Snapshot

func (f fixedState) Snapshot() session.Snapshot { return session.Snapshot(f) }

func signedIn(role domain.Role) fixedState {
	return fixedState{
		Token:    "tok",
		Identity: &domain.Identity{SubjectID: "u-1", Role: role},
		State:    domain.SessionAuthenticated,
	}
}

func expiring(role domain.Role) fixedState {
	s := signedIn(role)
	s.State = domain.SessionExpiringSoon
	return s
}

var adminRoute = Requirement{Roles: []domain.Role{domain.RoleAdmin}}

func newGuard(state StateReader) *Guard {
	return New(state, config.SessionConfig{}, zap.NewNop(), observability.NewMetrics())
}

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name     string
		state    fixedState
		target   string
		req      Requirement
		expected Decision
	}{
		{
			name:     "admin renders admin route",
			state:    signedIn(domain.RoleAdmin),
			target:   "/admin/staff",
			req:      adminRoute,
			expected: Decision{Outcome: OutcomeRender},
		},
		{
			name:     "staff is sent to unauthorized",
			state:    signedIn(domain.RoleStaff),
			target:   "/admin/staff",
			req:      adminRoute,
			expected: Decision{Outcome: OutcomeUnauthorized, RedirectTo: "/unauthorized"},
		},
		{
			name:     "initializing shows loading",
			state:    fixedState{Initializing: true, Loading: true},
			target:   "/admin/staff",
			req:      adminRoute,
			expected: Decision{Outcome: OutcomeLoading},
		},
		{
			name:     "unauthenticated beats role check",
			state:    fixedState{State: domain.SessionUnauthenticated},
			target:   "/admin/staff",
			req:      adminRoute,
			expected: Decision{Outcome: OutcomeRedirectLogin, RedirectTo: "/login?next=%2Fadmin%2Fstaff"},
		},
		{
			name:     "identity without token is unauthenticated",
			state:    fixedState{Identity: &domain.Identity{Role: domain.RoleAdmin}},
			target:   "/admin",
			req:      adminRoute,
			expected: Decision{Outcome: OutcomeRedirectLogin, RedirectTo: "/login?next=%2Fadmin"},
		},
		{
			name:     "permission held",
			state:    signedIn(domain.RoleStaff),
			target:   "/staff/timesheet",
			req:      Requirement{Permissions: []auth.Permission{auth.PermLogTime}},
			expected: Decision{Outcome: OutcomeRender},
		},
		{
			name:     "any permission suffices",
			state:    signedIn(domain.RoleStaff),
			target:   "/clients",
			req:      Requirement{Permissions: []auth.Permission{auth.PermManageClients, auth.PermViewClients}},
			expected: Decision{Outcome: OutcomeRender},
		},
		{
			name:     "permission missing",
			state:    signedIn(domain.RoleStaff),
			target:   "/blog/new",
			req:      Requirement{Permissions: []auth.Permission{auth.PermManageBlog}},
			expected: Decision{Outcome: OutcomeUnauthorized, RedirectTo: "/unauthorized"},
		},
		{
			name:     "unknown role fails closed",
			state:    signedIn(domain.Role("owner")),
			target:   "/staff/timesheet",
			req:      Requirement{Permissions: []auth.Permission{auth.PermLogTime}},
			expected: Decision{Outcome: OutcomeUnauthorized, RedirectTo: "/unauthorized"},
		},
		{
			name:     "no requirement only needs a session",
			state:    signedIn(domain.Role("owner")),
			target:   "/dashboard",
			req:      Requirement{},
			expected: Decision{Outcome: OutcomeRender},
		},
		{
			name:     "expiring session still renders",
			state:    expiring(domain.RoleAdmin),
			target:   "/admin",
			req:      adminRoute,
			expected: Decision{Outcome: OutcomeRender},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, newGuard(tc.state).Evaluate(tc.target, tc.req))
		})
	}
}

func TestEvaluateRecordsDecisions(t *testing.T) {
	metrics := observability.NewMetrics()
	g := New(signedIn(domain.RoleStaff), config.SessionConfig{UnauthorizedPath: "/denied"}, nil, metrics)

	decision := g.Evaluate("/admin", adminRoute)
	assert.Equal(t, "/denied", decision.RedirectTo)
	g.Evaluate("/staff", Requirement{})

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Decisions["unauthorized"])
	assert.Equal(t, int64(1), snap.Decisions["render"])
}

func TestScenarioLoadingThenLogin(t *testing.T) {
	store := session.NewStore(repository.NewMemoryTokenRepository(), events.NewInMemoryDispatcher(), zap.NewNop())
	g := newGuard(store)

	assert.Equal(t, OutcomeLoading, g.Evaluate("/admin/staff", adminRoute).Outcome)

	require.NoError(t, store.Init(context.Background()))
	decision := g.Evaluate("/admin/staff", adminRoute)
	assert.Equal(t, OutcomeRedirectLogin, decision.Outcome)
	assert.Equal(t, "/login?next=%2Fadmin%2Fstaff", decision.RedirectTo)

	token, _, err := auth.NewTokenManager("guard-secret", 10).GenerateTokenAt("u-1", domain.RoleAdmin, time.Now())
	require.NoError(t, err)
	_, err = store.Set(context.Background(), token, domain.Identity{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeRender, g.Evaluate("/admin/staff", adminRoute).Outcome)
}

func TestAllowsAndFragment(t *testing.T) {
	staff := newGuard(signedIn(domain.RoleStaff))
	assert.True(t, staff.Allows(auth.PermLogTime))
	assert.False(t, staff.Allows(auth.PermManageStaff))
	assert.True(t, staff.Allows())

	assert.Equal(t, "delete", Fragment(staff, "delete", "", auth.PermViewClients))
	assert.Equal(t, "", Fragment(staff, "manage", "", auth.PermManageStaff))
	assert.Equal(t, "read-only", Fragment(staff, "editor", "read-only", auth.PermManageBlog))

	anonymous := newGuard(fixedState{})
	assert.False(t, anonymous.Allows())
	assert.Nil(t, Fragment[*string](anonymous, new(string), nil, auth.PermLogTime))

	loading := newGuard(fixedState{Initializing: true})
	assert.False(t, loading.Allows(auth.PermLogTime))
}

func TestReturnPath(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"/admin/staff":          "/admin/staff",
		"/clients?page=2":       "/clients?page=2",
		"https://evil.example/": "/",
		"//evil.example/path":   "/",
		`/\evil.example`:        "/",
		"admin":                 "/",
		"  /schedule  ":         "/schedule",
		"javascript:alert(1)":   "/",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, ReturnPath(input), "input %q", input)
	}
}

func TestRequireMiddleware(t *testing.T) {
	build := func(state StateReader) *fiber.App {
		g := newGuard(state)
		app := fiber.New()
		admin := app.Group("/admin", g.RequireRole(domain.RoleAdmin))
		admin.Get("/staff", func(c *fiber.Ctx) error {
			identity, ok := IdentityFromContext(c)
			if !ok {
				return fiber.ErrInternalServerError
			}
			return c.SendString("hello " + identity.SubjectID)
		})
		app.Get("/timesheet", g.RequirePermission(auth.PermLogTime), func(c *fiber.Ctx) error {
			return c.SendString("timesheet")
		})
		return app
	}

	cases := []struct {
		name     string
		state    fixedState
		path     string
		status   int
		location string
	}{
		{name: "admin", state: signedIn(domain.RoleAdmin), path: "/admin/staff", status: http.StatusOK},
		{name: "staff denied", state: signedIn(domain.RoleStaff), path: "/admin/staff", status: http.StatusSeeOther, location: "/unauthorized"},
		{name: "anonymous", state: fixedState{}, path: "/admin/staff?tab=2", status: http.StatusSeeOther, location: "/login?next=%2Fadmin%2Fstaff%3Ftab%3D2"},
		{name: "loading", state: fixedState{Initializing: true}, path: "/admin/staff", status: http.StatusServiceUnavailable},
		{name: "staff timesheet", state: signedIn(domain.RoleStaff), path: "/timesheet", status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := build(tc.state).Test(httptest.NewRequest(http.MethodGet, tc.path, nil), -1)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.location != "" {
				assert.Equal(t, tc.location, resp.Header.Get("Location"))
			}
			if tc.status == http.StatusServiceUnavailable {
				assert.Equal(t, "1", resp.Header.Get("Retry-After"))
			}
		})
	}
}
