package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	apierrors "github.com/jordanlanch/estatecrm/pkg/api/errors"
	"github.com/jordanlanch/estatecrm/pkg/auth"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/labstack/echo/v4"
)

// Context keys holding the raw token and its claims.
const (
	KeyToken  = "token"
	KeyClaims = "claims"
)

// UserLookup loads the account behind a token.
type UserLookup interface {
	GetByID(ctx context.Context, id uint) (*schema.User, error)
}

// JWTMiddleware authenticates requests carrying "Authorization: Bearer <jwt>".
func JWTMiddleware(tokens *auth.Tokens, users UserLookup) echo.MiddlewareFunc {
	return authenticate(tokens, users, false)
}

// JWTFromQueryOrHeader also accepts ?token=, for websocket upgrades and
// download links where headers cannot be set.
func JWTFromQueryOrHeader(tokens *auth.Tokens, users UserLookup) echo.MiddlewareFunc {
	return authenticate(tokens, users, true)
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func authenticate(tokens *auth.Tokens, users UserLookup, allowQuery bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := BearerToken(header)
			if !ok && allowQuery {
				token = c.QueryParam("token")
				ok = token != ""
			}
			if !ok {
				if header != "" {
					return apierrors.UnauthorizedError(c, "Authorization header must be 'Bearer {token}'")
				}
				return apierrors.UnauthorizedError(c, "Authorization header is required")
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			claims, err := tokens.Verify(ctx, token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					return apierrors.UnauthorizedError(c, "Token has expired")
				case errors.Is(err, auth.ErrRevokedToken):
					return apierrors.UnauthorizedError(c, "Token has been revoked")
				case errors.Is(err, auth.ErrInvalidToken):
					return apierrors.UnauthorizedError(c, "Invalid token")
				default:
					return apierrors.InternalError(c, err)
				}
			}

			user, err := users.GetByID(ctx, claims.UserID)
			if err != nil || user == nil {
				return apierrors.UnauthorizedError(c, "User account not found")
			}
			if !user.IsActive {
				return apierrors.UnauthorizedError(c, "User account is disabled")
			}

			c.Set(KeyToken, token)
			c.Set(KeyClaims, claims)
			session.Attach(c, session.NewIdentity(user))

			return next(c)
		}
	}
}

// OptionalJWT attaches the identity when a valid bearer token is present and
// lets anonymous requests through otherwise. Invalid tokens are ignored.
func OptionalJWT(tokens *auth.Tokens, users UserLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			claims, err := tokens.Verify(ctx, token)
			if err != nil {
				return next(c)
			}
			user, err := users.GetByID(ctx, claims.UserID)
			if err != nil || user == nil || !user.IsActive {
				return next(c)
			}

			c.Set(KeyToken, token)
			c.Set(KeyClaims, claims)
			session.Attach(c, session.NewIdentity(user))
			return next(c)
		}
	}
}
