package guard

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/config"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/observability"
	"github.com/spec-kit/portal-auth/internal/session"
)

// Outcome is the result of evaluating a navigation attempt.
type Outcome string

const (
	OutcomeLoading       Outcome = "loading"
	OutcomeRedirectLogin Outcome = "redirect_login"
	OutcomeUnauthorized  Outcome = "unauthorized"
	OutcomeRender        Outcome = "render"
)

// Requirement lists what a target demands. Empty lists impose nothing.
type Requirement struct {
	Roles       []domain.Role
	Permissions []auth.Permission
}

// Decision tells the caller what to do with a navigation attempt.
type Decision struct {
	Outcome    Outcome
	RedirectTo string
}

// StateReader is the read side of the session store.
type StateReader interface {
	Snapshot() session.Snapshot
}

// Guard decides whether a target or fragment is visible for the current session.
type Guard struct {
	state            StateReader
	loginPath        string
	unauthorizedPath string
	logger           *zap.Logger
	metrics          *observability.Metrics
}

// New builds a guard reading from state.
func New(state StateReader, cfg config.SessionConfig, logger *zap.Logger, metrics *observability.Metrics) *Guard {
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	unauthorizedPath := cfg.UnauthorizedPath
	if unauthorizedPath == "" {
		unauthorizedPath = "/unauthorized"
	}
	return &Guard{
		state:            state,
		loginPath:        loginPath,
		unauthorizedPath: unauthorizedPath,
		logger:           observability.OrNop(logger),
		metrics:          metrics,
	}
}

// Evaluate runs the checks in order: initializing, authenticated, role,
// permission. The first failing check decides.
func (g *Guard) Evaluate(requested string, req Requirement) Decision {
	decision, _ := g.evaluate(g.state.Snapshot(), requested, req)
	return decision
}

func (g *Guard) evaluate(snap session.Snapshot, requested string, req Requirement) (Decision, *domain.Identity) {
	decision := g.decide(snap, requested, req)
	g.metrics.RecordDecision(string(decision.Outcome))
	if decision.Outcome != OutcomeRender && decision.Outcome != OutcomeLoading {
		g.logger.Debug("navigation denied",
			zap.String("target", requested),
			zap.String("outcome", string(decision.Outcome)))
	}
	return decision, snap.Identity
}

func (g *Guard) decide(snap session.Snapshot, requested string, req Requirement) Decision {
	if snap.Initializing {
		return Decision{Outcome: OutcomeLoading}
	}
	if !snap.IsAuthenticated() {
		return Decision{Outcome: OutcomeRedirectLogin, RedirectTo: g.LoginRedirect(requested)}
	}

	role := snap.Identity.Role
	if len(req.Roles) > 0 && !containsRole(req.Roles, role) {
		return Decision{Outcome: OutcomeUnauthorized, RedirectTo: g.unauthorizedPath}
	}
	if len(req.Permissions) > 0 && !auth.HasAnyPermission(role, req.Permissions...) {
		return Decision{Outcome: OutcomeUnauthorized, RedirectTo: g.unauthorizedPath}
	}
	return Decision{Outcome: OutcomeRender}
}

// LoginRedirect builds the sign-in URL carrying requested as the return path.
func (g *Guard) LoginRedirect(requested string) string {
	return g.loginPath + "?next=" + url.QueryEscape(ReturnPath(requested))
}

// Allows reports whether the current identity holds any of perms. With no
// perms it only requires an authenticated session.
func (g *Guard) Allows(perms ...auth.Permission) bool {
	snap := g.state.Snapshot()
	if snap.Initializing || !snap.IsAuthenticated() {
		return false
	}
	if len(perms) == 0 {
		return true
	}
	return auth.HasAnyPermission(snap.Identity.Role, perms...)
}

// Fragment returns content when the current identity holds any of perms and
// fallback otherwise. It never redirects.
func Fragment[T any](g *Guard, content, fallback T, perms ...auth.Permission) T {
	if g.Allows(perms...) {
		return content
	}
	return fallback
}

// ReturnPath sanitizes a post-login replay target. Only local absolute paths
// survive; anything else becomes "/".
func ReturnPath(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return "/"
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return "/"
	}
	return next
}

func containsRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
