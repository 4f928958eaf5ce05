package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-auth/internal/api/http/handlers"
	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/guard"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Session *handlers.SessionHandler
	Guard   *guard.Guard
}

// RegisterRoutes wires portal routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/login", cfg.Session.LoginPage)
	app.Post("/login", cfg.Session.Login)
	app.Post("/logout", cfg.Session.Logout)
	app.Post("/register", cfg.Session.Register)
	app.Post("/forgot-password", cfg.Session.ForgotPassword)
	app.Post("/reset-password", cfg.Session.ResetPassword)
	app.Get("/unauthorized", cfg.Session.Unauthorized)

	sessionGroup := app.Group("/session")
	sessionGroup.Get("", cfg.Session.Session)
	sessionGroup.Post("/extend", cfg.Session.Extend)
	sessionGroup.Post("/exit", cfg.Session.Exit)

	app.Get("/dashboard", cfg.Guard.Require(guard.Requirement{}), cfg.Session.Area)

	admin := app.Group("/admin", cfg.Guard.RequireRole(domain.RoleAdmin))
	admin.Get("/*", cfg.Session.Area)

	staff := app.Group("/staff", cfg.Guard.RequirePermission(auth.PermLogTime))
	staff.Get("/*", cfg.Session.Area)

	clients := app.Group("/clients", cfg.Guard.RequirePermission(auth.PermManageClients, auth.PermViewClients))
	clients.Get("/*", cfg.Session.Area)
}
