package identitymock

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/portal-auth/internal/api/http"
	"github.com/spec-kit/portal-auth/internal/observability"
)

// NewApp builds the fiber application serving the identity endpoints.
func NewApp(service *Service, logger *zap.Logger, metrics *observability.Metrics) *fiber.App {
	logger = observability.OrNop(logger)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)

	handler := NewHandler(service, logger)
	app.Get("/health/live", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "alive", "service": "identity-mock"})
	})

	group := app.Group("/auth")
	group.Post("/login", handler.Login)
	group.Post("/logout", handler.Logout)
	group.Post("/register", handler.Register)
	group.Post("/forgot-password", handler.ForgotPassword)
	group.Post("/reset-password", handler.ResetPassword)
	group.Post("/refresh-token", handler.RefreshToken)
	group.Get("/validate-token", handler.ValidateToken)
	return app
}
