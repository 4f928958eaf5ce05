package guard

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/domain"
)

const identityKey = "portal_identity"

// Require gates a route group. While the session is still being restored it
// answers 503 with Retry-After; denials redirect with 303.
func (g *Guard) Require(req Requirement) fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision, identity := g.evaluate(g.state.Snapshot(), c.OriginalURL(), req)
		switch decision.Outcome {
		case OutcomeLoading:
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "loading"})
		case OutcomeRedirectLogin, OutcomeUnauthorized:
			return c.Redirect(decision.RedirectTo, fiber.StatusSeeOther)
		}
		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// RequireRole gates on role membership only.
func (g *Guard) RequireRole(roles ...domain.Role) fiber.Handler {
	return g.Require(Requirement{Roles: roles})
}

// RequirePermission gates on holding any of perms.
func (g *Guard) RequirePermission(perms ...auth.Permission) fiber.Handler {
	return g.Require(Requirement{Permissions: perms})
}

// IdentityFromContext retrieves the identity admitted by Require.
func IdentityFromContext(c *fiber.Ctx) (*domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}
