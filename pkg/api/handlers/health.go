package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/labstack/echo/v4"
)

// Pinger is a dependency the health check pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health
type HealthHandler struct {
	db      Pinger
	cache   Pinger
	version string
}

// NewHealthHandler creates a health handler. cache may be nil.
func NewHealthHandler(db, cache Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, version: version}
}

func ping(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// Health godoc
// @Summary Health check
// @Description 503 when the database is unreachable. Redis is reported but not required.
// @Tags System
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Failure 503 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Status:   "ok",
		Database: ping(ctx, h.db),
		Redis:    ping(ctx, h.cache),
		Version:  h.version,
	}
	status := http.StatusOK
	if resp.Database != "healthy" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, resp)
}
