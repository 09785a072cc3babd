package errors

import (
	"errors"
	"net/http"
	"runtime/debug"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/labstack/echo/v4"
)

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeValidation, domain.ErrCodeBadRequest:
		return http.StatusBadRequest
	case domain.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case domain.ErrCodeForbidden:
		return http.StatusForbidden
	case domain.ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// UnauthorizedError writes a 401
func UnauthorizedError(c echo.Context, message string) error {
	if message == "" {
		message = "Authentication required"
	}
	return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: message})
}

// ForbiddenError writes a 403
func ForbiddenError(c echo.Context, message string) error {
	if message == "" {
		message = "You do not have permission to access this resource"
	}
	return c.JSON(http.StatusForbidden, models.ErrorResponse{Error: message})
}

// InternalError logs err and writes a generic 500
func InternalError(c echo.Context, err error) error {
	logger.FromContext(c, nil).Error("internal error", "path", c.Request().URL.Path, "error", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error: "An internal error occurred. Please try again later.",
	})
}

// Handler renders every error leaving a handler as {"error": ...}.
type Handler struct {
	log         logger.Logger
	development bool
}

// NewHandler creates the error renderer. In development 500 bodies carry a stack.
func NewHandler(log logger.Logger, development bool) *Handler {
	return &Handler{log: logger.OrNop(log), development: development}
}

// HTTPErrorHandler satisfies echo.HTTPErrorHandler.
func (h *Handler) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := h.Render(err)

	if status >= http.StatusInternalServerError {
		logger.FromContext(c, h.log).Error("request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err)
		if hub := sentryecho.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		if h.development {
			body.Stack = err.Error() + "\n" + string(debug.Stack())
		}
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		h.log.Error("failed writing error response", "error", writeErr)
	}
}

// Render converts err into a status and response body.
func (h *Handler) Render(err error) (int, models.ErrorResponse) {
	if de, ok := domain.AsDomainError(err); ok {
		status := StatusFor(de.Code)
		body := models.ErrorResponse{Error: de.Message, Details: de.Fields}
		if status == http.StatusInternalServerError {
			body.Error = "An internal error occurred. Please try again later."
		}
		return status, body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" {
			msg = s
		}
		if he.Code >= http.StatusInternalServerError {
			msg = "An internal error occurred. Please try again later."
		}
		return he.Code, models.ErrorResponse{Error: msg}
	}

	return http.StatusInternalServerError, models.ErrorResponse{
		Error: "An internal error occurred. Please try again later.",
	}
}
