package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/portal-auth/internal/api/dto"
	"github.com/spec-kit/portal-auth/internal/domain"
	"github.com/spec-kit/portal-auth/internal/observability"
	"github.com/spec-kit/portal-auth/internal/session"
	apperrors "github.com/spec-kit/portal-auth/pkg/util"
)

// Identity service endpoints.
const (
	PathLogin          = "/auth/login"
	PathLogout         = "/auth/logout"
	PathRegister       = "/auth/register"
	PathForgotPassword = "/auth/forgot-password"
	PathResetPassword  = "/auth/reset-password"
	PathRefreshToken   = "/auth/refresh-token"
	PathValidateToken  = "/auth/validate-token"
)

// Gateway performs credential exchanges against the identity service and
// records their outcome in the session store.
type Gateway struct {
	client  *Client
	store   *session.Store
	logger  *zap.Logger
	metrics *observability.Metrics
}

// LoginResult describes the session established by Login.
type LoginResult struct {
	Identity  domain.Identity
	Role      domain.Role
	ExpiresAt time.Time
}

// NewUser carries registration fields.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// New constructs a Gateway.
func New(client *Client, store *session.Store, logger *zap.Logger, metrics *observability.Metrics) *Gateway {
	return &Gateway{
		client:  client,
		store:   store,
		logger:  observability.OrNop(logger),
		metrics: metrics,
	}
}

// Login exchanges email and password for a token. Rejections surface as
// INVALID_CREDENTIALS; outages as SERVICE_UNAVAILABLE. Never retried.
func (g *Gateway) Login(ctx context.Context, email, password string) (LoginResult, error) {
	start := time.Now()
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		err := apperrors.NewValidationError("email and password required", nil)
		g.record("login", start, err)
		return LoginResult{}, err
	}

	g.store.BeginAuthentication()
	var resp dto.LoginResponse
	err := g.client.DoJSON(ctx, http.MethodPost, PathLogin, "", dto.LoginRequest{Email: email, Password: password}, &resp)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = apperrors.NewCanceled(ctxErr)
		g.store.FailAuthentication(ctx, err)
		g.record("login", start, err)
		return LoginResult{}, err
	}
	if err != nil {
		mapped := apperrors.NewServiceUnavailable(err)
		if status := RejectedStatus(err); status >= 400 && status < 500 {
			mapped = apperrors.NewInvalidCredentials(err)
		}
		g.logger.Warn("login failed", zap.String("code", apperrors.CodeOf(mapped)), zap.Error(err))
		g.store.FailAuthentication(ctx, mapped)
		g.record("login", start, mapped)
		return LoginResult{}, mapped
	}

	snap, err := g.store.Set(ctx, resp.Token, domain.Identity{
		DisplayName: resp.User.Name,
		Email:       resp.User.Email,
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeMalformedToken) {
			err = apperrors.NewInternalError(err)
		}
		g.store.FailAuthentication(ctx, err)
		g.record("login", start, err)
		return LoginResult{}, err
	}

	g.logger.Info("login succeeded", zap.String("subject_id", snap.Identity.SubjectID), zap.String("role", string(snap.Identity.Role)))
	g.record("login", start, nil)
	return LoginResult{
		Identity:  *snap.Identity,
		Role:      snap.Identity.Role,
		ExpiresAt: snap.Claims.ExpiresAt,
	}, nil
}

// Logout signs out locally no matter what the identity service answers.
func (g *Gateway) Logout(ctx context.Context) {
	g.EndSession(ctx, session.ReasonLogout)
}

// EndSession revokes the token remotely on a best-effort basis and always
// clears the store. Without a token it makes no remote call.
func (g *Gateway) EndSession(ctx context.Context, reason string) {
	start := time.Now()
	token := g.store.Token()
	if token != "" {
		err := g.client.DoJSON(ctx, http.MethodPost, PathLogout, token, nil, nil)
		if err != nil {
			mapped := apperrors.NewServiceUnavailable(err)
			if status := RejectedStatus(err); status >= 400 && status < 500 {
				mapped = apperrors.NewRequestRejected(RemoteMessage(err), status, err)
			}
			g.logger.Warn("remote logout failed", zap.String("reason", reason), zap.Error(err))
			g.record("logout", start, mapped)
		} else {
			g.record("logout", start, nil)
		}
	}

	if err := g.store.Clear(ctx, reason); err != nil {
		g.logger.Warn("local logout incomplete", zap.Error(err))
	}
}

// Register forwards a new account request.
func (g *Gateway) Register(ctx context.Context, user NewUser) (dto.Receipt, error) {
	return g.forward(ctx, "register", PathRegister, dto.RegisterRequest{
		Name:     strings.TrimSpace(user.Name),
		Email:    strings.TrimSpace(user.Email),
		Password: user.Password,
		Role:     string(user.Role),
	})
}

// RequestPasswordReset asks the identity service to send reset instructions.
func (g *Gateway) RequestPasswordReset(ctx context.Context, email string) (dto.Receipt, error) {
	return g.forward(ctx, "forgot_password", PathForgotPassword, dto.ForgotPasswordRequest{Email: strings.TrimSpace(email)})
}

// ResetPassword completes a reset with the emailed token.
func (g *Gateway) ResetPassword(ctx context.Context, token, newPassword string) (dto.Receipt, error) {
	return g.forward(ctx, "reset_password", PathResetPassword, dto.ResetPasswordRequest{Token: token, NewPassword: newPassword})
}

// forward relays a stateless request; the session store is not touched.
func (g *Gateway) forward(ctx context.Context, op, path string, body interface{}) (dto.Receipt, error) {
	start := time.Now()
	var receipt dto.Receipt
	err := g.client.DoJSON(ctx, http.MethodPost, path, "", body, &receipt)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = apperrors.NewCanceled(ctxErr)
		g.record(op, start, err)
		return dto.Receipt{}, err
	}
	if err != nil {
		mapped := apperrors.NewServiceUnavailable(err)
		if status := RejectedStatus(err); status >= 400 && status < 500 {
			mapped = apperrors.NewRequestRejected(RemoteMessage(err), status, err)
		}
		g.logger.Warn("identity request failed", zap.String("op", op), zap.String("code", apperrors.CodeOf(mapped)), zap.Error(err))
		g.record(op, start, mapped)
		return dto.Receipt{}, mapped
	}

	g.record(op, start, nil)
	return receipt, nil
}

// Refresh trades the current token for a new one, keeping profile fields.
// A failure leaves the session as it was. When the session is cleared or
// replaced while the call is in flight the new token is revoked and dropped,
// and the error wraps session.ErrSessionReplaced.
func (g *Gateway) Refresh(ctx context.Context) (session.Snapshot, error) {
	start := time.Now()
	current := g.store.Snapshot()
	if !current.IsAuthenticated() {
		err := apperrors.NewUnauthenticated("no session to refresh")
		g.record("refresh", start, err)
		return session.Snapshot{}, err
	}

	g.store.SetLoading(true)
	var resp dto.RefreshResponse
	err := g.client.DoJSON(ctx, http.MethodPost, PathRefreshToken, current.Token, nil, &resp)
	if ctxErr := ctx.Err(); ctxErr != nil {
		g.store.SetLoading(false)
		err = apperrors.NewCanceled(ctxErr)
		g.record("refresh", start, err)
		return session.Snapshot{}, err
	}
	if err != nil {
		mapped := apperrors.NewServiceUnavailable(err)
		if status := RejectedStatus(err); status >= 400 && status < 500 {
			mapped = apperrors.NewSessionExpired(err)
		}
		g.logger.Warn("token refresh failed", zap.String("code", apperrors.CodeOf(mapped)), zap.Error(err))
		g.store.SetLoading(false)
		g.store.SetError(mapped)
		g.record("refresh", start, mapped)
		return session.Snapshot{}, mapped
	}

	snap, err := g.store.Replace(ctx, current.Token, resp.Token, *current.Identity)
	if errors.Is(err, session.ErrSessionReplaced) {
		g.store.SetLoading(false)
		g.logger.Info("refreshed token discarded, session changed in flight")
		g.revoke(ctx, resp.Token)
		g.record("refresh", start, err)
		return session.Snapshot{}, err
	}
	if err != nil {
		g.store.SetLoading(false)
		if !apperrors.HasCode(err, apperrors.CodeMalformedToken) && !apperrors.HasCode(err, apperrors.CodeSessionExpired) {
			err = apperrors.NewInternalError(err)
		}
		g.store.SetError(err)
		g.record("refresh", start, err)
		return session.Snapshot{}, err
	}

	g.logger.Info("token refreshed", zap.String("subject_id", snap.Identity.SubjectID), zap.Time("expires_at", snap.Claims.ExpiresAt))
	g.record("refresh", start, nil)
	return snap, nil
}

// ValidateToken asks the identity service whether the stored token is still
// honored. Any non-2xx answer clears the session and yields (nil, nil); a
// transport failure yields SERVICE_UNAVAILABLE and leaves the session untouched.
// A session that replaced the validated token while the call was in flight is
// left alone on either outcome.
func (g *Gateway) ValidateToken(ctx context.Context) (*domain.Identity, error) {
	start := time.Now()
	current := g.store.Snapshot()
	if !current.IsAuthenticated() {
		return nil, nil
	}

	var resp dto.ValidateResponse
	err := g.client.DoJSON(ctx, http.MethodGet, PathValidateToken, current.Token, nil, &resp)
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = apperrors.NewCanceled(ctxErr)
		g.record("validate", start, err)
		return nil, err
	}
	if err != nil {
		if status := RejectedStatus(err); status > 0 {
			g.logger.Info("stored token rejected", zap.Int("status", status))
			cleared, clearErr := g.store.ClearIf(ctx, current.Token, session.ReasonInvalidated)
			if clearErr != nil {
				g.logger.Warn("clear rejected token failed", zap.Error(clearErr))
			}
			g.record("validate", start, apperrors.NewSessionExpired(err))
			if !cleared {
				return g.store.Snapshot().Identity, nil
			}
			return nil, nil
		}
		mapped := apperrors.NewServiceUnavailable(err)
		g.logger.Warn("token validation unavailable", zap.Error(err))
		g.record("validate", start, mapped)
		return nil, mapped
	}

	identity := *current.Identity
	if resp.User.Name != "" {
		identity.DisplayName = resp.User.Name
	}
	if resp.User.Email != "" {
		identity.Email = resp.User.Email
	}
	snap, err := g.store.Replace(ctx, current.Token, current.Token, identity)
	if errors.Is(err, session.ErrSessionReplaced) {
		g.record("validate", start, nil)
		return g.store.Snapshot().Identity, nil
	}
	if err != nil {
		err = apperrors.NewInternalError(err)
		g.record("validate", start, err)
		return nil, err
	}

	g.record("validate", start, nil)
	return snap.Identity, nil
}

// revoke ends a token the store never took ownership of.
func (g *Gateway) revoke(ctx context.Context, token string) {
	if err := g.client.DoJSON(context.WithoutCancel(ctx), http.MethodPost, PathLogout, token, nil, nil); err != nil {
		g.logger.Warn("revoke discarded token failed", zap.Error(err))
	}
}

func (g *Gateway) record(op string, start time.Time, err error) {
	g.metrics.RecordOperation(op, apperrors.CodeOf(err), time.Since(start))
	g.logger.Debug("identity call", zap.String("op", op), zap.Duration("duration", time.Since(start)), zap.String("code", apperrors.CodeOf(err)))
}
