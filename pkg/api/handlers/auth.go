package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	apimiddleware "github.com/jordanlanch/estatecrm/pkg/api/middleware"
	"github.com/jordanlanch/estatecrm/pkg/auth"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/metrics"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/jordanlanch/estatecrm/pkg/users"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/labstack/echo/v4"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users     *users.Service
	tokens    *auth.Tokens
	validator *validation.Validator
	mailer    domain.Mailer
	metrics   *metrics.Metrics
	log       logger.Logger
}

// NewAuthHandler creates a new auth handler. mailer may be nil.
func NewAuthHandler(us *users.Service, tokens *auth.Tokens, v *validation.Validator, mailer domain.Mailer, m *metrics.Metrics, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		users:     us,
		tokens:    tokens,
		validator: v,
		mailer:    mailer,
		metrics:   m,
		log:       logger.OrNop(log),
	}
}

func (h *AuthHandler) issue(u *schema.User) (*models.AuthResponse, error) {
	token, expiresAt, err := h.tokens.Issue(u)
	if err != nil {
		return nil, domain.NewInternalError(err)
	}
	info := models.NewUserInfo(u)
	info.Capabilities = session.NewIdentity(u).Capabilities()
	return &models.AuthResponse{Token: token, ExpiresAt: expiresAt, User: info}, nil
}

// Login godoc
// @Summary Login user
// @Description Authenticate with email and password, returns a JWT
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	u, err := h.users.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		if domain.IsUnauthorized(err) {
			h.metrics.RecordLoginAttempt(false)
		}
		return err
	}
	h.metrics.RecordLoginAttempt(true)

	resp, err := h.issue(u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh godoc
// @Summary Refresh token
// @Description Exchange a valid or recently expired token for a new one. The old token is revoked.
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	token, ok := apimiddleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	if !ok {
		return domain.NewUnauthorizedError("Authorization header is required")
	}

	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	claims, err := h.tokens.VerifyForRefresh(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			return domain.NewUnauthorizedError("Token is too old to refresh")
		case errors.Is(err, auth.ErrRevokedToken):
			return domain.NewUnauthorizedError("Token has been revoked")
		case errors.Is(err, auth.ErrInvalidToken):
			return domain.NewUnauthorizedError("Invalid token")
		default:
			return domain.NewInternalError(err)
		}
	}

	u, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil || !u.IsActive {
		return domain.NewUnauthorizedError("User account not found")
	}

	resp, err := h.issue(u)
	if err != nil {
		return err
	}
	if err := h.tokens.Revoke(ctx, token, claims); err != nil {
		h.log.Warn("failed to revoke refreshed token", "user_id", u.ID, "error", err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.UserInfo
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	u, err := h.users.GetByID(ctx, id.ID)
	if err != nil {
		return err
	}
	info := models.NewUserInfo(u)
	info.Capabilities = id.Capabilities()
	return c.JSON(http.StatusOK, info)
}

// ChangePassword godoc
// @Summary Change password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.PasswordChangeRequest true "Current and new password"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/auth/password [put]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	id, err := identity(c)
	if err != nil {
		return err
	}
	var req models.PasswordChangeRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	if err := h.users.ChangePassword(ctx, id.ID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Password updated"})
}

// Logout godoc
// @Summary Logout
// @Description Revoke the current token
// @Tags Authentication
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Security BearerAuth
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	token, _ := c.Get(apimiddleware.KeyToken).(string)
	claims, _ := c.Get(apimiddleware.KeyClaims).(*auth.Claims)

	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	if token != "" {
		if err := h.tokens.Revoke(ctx, token, claims); err != nil {
			return domain.NewInternalError(err)
		}
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Logged out"})
}

// Register godoc
// @Summary Register a user
// @Description Create an admin or agent account. Admin only.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Account data"
// @Success 201 {object} models.UserInfo
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	u, err := h.users.Create(ctx, req)
	if err != nil {
		return err
	}
	h.metrics.RecordUserRegistered()

	if h.mailer != nil {
		go func(u *schema.User) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := h.mailer.SendAccountCreated(ctx, u); err != nil {
				h.log.Warn("failed to send account email", "user_id", u.ID, "error", err)
			}
		}(u)
	}
	return c.JSON(http.StatusCreated, models.NewUserInfo(u))
}
