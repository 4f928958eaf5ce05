package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portal-auth/internal/api/dto"
	"github.com/spec-kit/portal-auth/internal/auth"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/expiry"
	"github.com/spec-kit/portal-auth/internal/gateway"
	"github.com/spec-kit/portal-auth/internal/guard"
	"github.com/spec-kit/portal-auth/internal/session"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// SessionHandler exposes sign-in, sign-out and the expiry prompt actions.
type SessionHandler struct {
	gateway   *gateway.Gateway
	store     *session.Store
	notifier  *expiry.Notifier
	banner    *expiry.Banner
	guard     *guard.Guard
	loginPath string
}

// NewSessionHandler constructs handler.
func NewSessionHandler(gw *gateway.Gateway, store *session.Store, notifier *expiry.Notifier, banner *expiry.Banner, g *guard.Guard, loginPath string) *SessionHandler {
	if loginPath == "" {
		loginPath = "/login"
	}
	return &SessionHandler{
		gateway:   gw,
		store:     store,
		notifier:  notifier,
		banner:    banner,
		guard:     g,
		loginPath: loginPath,
	}
}

// LoginPage handles GET /login. A signed-in operator is sent on to next.
func (h *SessionHandler) LoginPage(c *fiber.Ctx) error {
	next := guard.ReturnPath(c.Query("next"))
	if h.store.IsAuthenticated() {
		return c.Redirect(next, http.StatusSeeOther)
	}
	resp := fiber.Map{"next": next}
	if err := h.store.Snapshot().Err; err != nil {
		resp["error"] = apperrors.ToDomainError(err).Message
	}
	return c.JSON(resp)
}

// Login handles POST /login from a form or a JSON client.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	result, err := h.gateway.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	if c.Is("json") {
		return c.JSON(dto.LoginResponse{
			Token: h.store.Token(),
			User:  userPayload(&result.Identity),
		})
	}
	next := c.FormValue("next", c.Query("next"))
	return c.Redirect(guard.ReturnPath(next), http.StatusSeeOther)
}

// Logout handles POST /logout. It always succeeds.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	h.gateway.Logout(c.UserContext())
	if c.Is("json") {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.Redirect(h.loginPath, http.StatusSeeOther)
}

// Register handles POST /register.
func (h *SessionHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" || strings.TrimSpace(req.Name) == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	receipt, err := h.gateway.Register(c.UserContext(), gateway.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.ParseRole(req.Role),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(receipt)
}

// ForgotPassword handles POST /forgot-password.
func (h *SessionHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	receipt, err := h.gateway.RequestPasswordReset(c.UserContext(), req.Email)
	if err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(receipt)
}

// ResetPassword handles POST /reset-password.
func (h *SessionHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and newPassword required", nil)
	}

	receipt, err := h.gateway.ResetPassword(c.UserContext(), req.Token, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(receipt)
}

// Session handles GET /session.
func (h *SessionHandler) Session(c *fiber.Ctx) error {
	snap := h.store.Snapshot()
	resp := dto.SessionResponse{
		Authenticated: snap.IsAuthenticated(),
		State:         snap.State.String(),
		Initializing:  snap.Initializing,
		Loading:       snap.Loading,
		Permissions:   []string{},
	}
	if snap.IsAuthenticated() {
		user := userPayload(snap.Identity)
		resp.User = &user
		for _, perm := range auth.PermissionsFor(snap.Identity.Role) {
			resp.Permissions = append(resp.Permissions, string(perm))
		}
	}
	if snap.Claims != nil {
		expiresAt := snap.Claims.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	if banner := h.banner.State(); banner.Visible {
		resp.Warning = &dto.ExpiryWarning{
			RemainingSeconds: int64(banner.Remaining.Seconds()),
			Message:          banner.Message,
		}
	}
	if snap.Err != nil {
		resp.Error = apperrors.CodeOf(snap.Err)
	}
	return c.JSON(resp)
}

// Extend handles POST /session/extend from the expiry prompt.
func (h *SessionHandler) Extend(c *fiber.Ctx) error {
	if !h.notifier.Extend(c.UserContext()) {
		if ctxErr := c.UserContext().Err(); ctxErr != nil {
			return apperrors.NewCanceled(ctxErr)
		}
		return apperrors.NewSessionExpired(nil)
	}
	return h.Session(c)
}

// Exit handles POST /session/exit from the expiry prompt.
func (h *SessionHandler) Exit(c *fiber.Ctx) error {
	h.notifier.Exit(c.UserContext())
	if c.Is("json") {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.Redirect(h.loginPath, http.StatusSeeOther)
}

// Unauthorized handles GET /unauthorized.
func (h *SessionHandler) Unauthorized(c *fiber.Ctx) error {
	return apperrors.NewUnauthorized("you do not have access to this page")
}

// Area renders a guarded portal section with the widgets the caller may use.
func (h *SessionHandler) Area(c *fiber.Ctx) error {
	identity, ok := guard.IdentityFromContext(c)
	if !ok {
		return fiber.ErrUnauthorized
	}

	widgets := []string{}
	for _, w := range []struct {
		name string
		perm auth.Permission
	}{
		{"staff-directory", auth.PermManageStaff},
		{"client-editor", auth.PermManageClients},
		{"client-list", auth.PermViewClients},
		{"schedule-editor", auth.PermManageSchedules},
		{"schedule", auth.PermViewSchedule},
		{"blog-editor", auth.PermManageBlog},
		{"reports", auth.PermViewReports},
		{"timesheet", auth.PermLogTime},
	} {
		if name := guard.Fragment(h.guard, w.name, "", w.perm); name != "" {
			widgets = append(widgets, name)
		}
	}

	return c.JSON(fiber.Map{
		"path":    c.Path(),
		"user":    userPayload(identity),
		"widgets": widgets,
	})
}

func userPayload(identity *domain.Identity) dto.UserPayload {
	return dto.UserPayload{
		ID:    identity.SubjectID,
		Name:  identity.DisplayName,
		Email: identity.Email,
		Role:  string(identity.Role),
	}
}
