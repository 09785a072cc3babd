package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/labstack/echo/v4"
)

const defaultTimeout = 10 * time.Second

// requestContext bounds the request context. The identity attached by the
// auth middleware travels with it.
func requestContext(c echo.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), timeout)
}

// identity returns the authenticated caller or a 401.
func identity(c echo.Context) (session.Identity, error) {
	id, ok := session.FromEcho(c)
	if !ok {
		return session.Identity{}, domain.NewUnauthorizedError("Authentication required")
	}
	return id, nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name, resource string) (uint, error) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, domain.NewBadRequestError("Invalid " + resource + " ID")
	}
	return uint(n), nil
}

// queryBool reads a boolean query parameter, false when absent or malformed.
func queryBool(c echo.Context, name string) bool {
	v, err := strconv.ParseBool(c.QueryParam(name))
	return err == nil && v
}

// queryInt reads an integer query parameter clamped to [1, max], or def.
func queryInt(c echo.Context, name string, def, max int) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil || n < 1 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
