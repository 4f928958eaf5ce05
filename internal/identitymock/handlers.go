package identitymock

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/api/dto"
	"github.com/spec-kit/portal-auth/internal/domain"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// Handler exposes the identity endpoints the portal gateway calls.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler constructs handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	account, token, _, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(dto.LoginResponse{Token: token, User: userPayload(account)})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}
	if err := h.service.Logout(c.UserContext(), token); err != nil {
		return mapError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	// Admin accounts only come from seeding.
	if role := domain.ParseRole(req.Role); role != "" && role != domain.RoleStaff {
		return apperrors.NewValidationError("self-registration creates staff accounts only", map[string]any{"role": req.Role})
	}

	account, err := h.service.Register(c.UserContext(), req.Name, req.Email, req.Password, domain.RoleStaff)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(dto.Receipt{Message: "account " + account.ID + " created"})
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}

	token, _, err := h.service.RequestPasswordReset(c.UserContext(), req.Email)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusAccepted).JSON(dto.Receipt{Message: "reset instructions sent", ResetToken: token})
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and new password required", nil)
	}

	if err := h.service.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return mapError(err)
	}
	return c.JSON(dto.Receipt{Message: "password reset"})
}

// RefreshToken handles POST /auth/refresh-token.
func (h *Handler) RefreshToken(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}
	fresh, _, err := h.service.Refresh(c.UserContext(), token)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(dto.RefreshResponse{Token: fresh})
}

// ValidateToken handles GET /auth/validate-token.
func (h *Handler) ValidateToken(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}
	account, err := h.service.Validate(c.UserContext(), token)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(dto.ValidateResponse{User: userPayload(account)})
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperrors.NewUnauthenticated("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthenticated("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return apperrors.NewInvalidCredentials(nil)
	case errors.Is(err, ErrInvalidToken):
		return apperrors.NewUnauthenticated(err.Error())
	case errors.Is(err, ErrEmailTaken):
		return apperrors.NewRequestRejected(err.Error(), http.StatusConflict, nil)
	case errors.Is(err, ErrAccountNotFound):
		return apperrors.NewRequestRejected(err.Error(), http.StatusNotFound, nil)
	case errors.Is(err, ErrResetTokenInvalid), errors.Is(err, ErrUnknownRole), errors.Is(err, ErrWeakPassword):
		return apperrors.NewRequestRejected(err.Error(), http.StatusBadRequest, nil)
	default:
		return apperrors.MapError(err)
	}
}

func userPayload(account *Account) dto.UserPayload {
	return dto.UserPayload{
		ID:    account.ID,
		Name:  account.Name,
		Email: account.Email,
		Role:  string(account.Role),
	}
}
