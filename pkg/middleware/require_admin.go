package middleware

import (
	"slices"

	apierrors "github.com/jordanlanch/estatecrm/pkg/api/errors"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/labstack/echo/v4"
)

// RequireAdmin rejects non-admin users with 403.
// Apply it after the JWT middleware.
func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(schema.RoleAdmin)
}

// RequireRole allows only the listed roles.
func RequireRole(roles ...schema.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := session.FromEcho(c)
			if !ok {
				return apierrors.UnauthorizedError(c, "Authentication required")
			}
			if !slices.Contains(roles, id.Role) {
				if slices.Equal(roles, []schema.Role{schema.RoleAdmin}) {
					return apierrors.ForbiddenError(c, "Admin access required")
				}
				return apierrors.ForbiddenError(c, "Insufficient permissions")
			}
			return next(c)
		}
	}
}

// RequireCapability allows only identities holding capability.
func RequireCapability(capability session.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := session.FromEcho(c)
			if !ok {
				return apierrors.UnauthorizedError(c, "Authentication required")
			}
			if !id.Can(capability) {
				return apierrors.ForbiddenError(c, "Insufficient permissions")
			}
			return next(c)
		}
	}
}
