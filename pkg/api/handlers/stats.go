package handlers

import (
	"net/http"

	"github.com/jordanlanch/estatecrm/pkg/analytics"
	"github.com/jordanlanch/estatecrm/pkg/leadscoring"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/labstack/echo/v4"
)

// StatsHandler serves CRM statistics. Figures are scoped to the caller's
// leads unless the caller may view all leads.
type StatsHandler struct {
	analytics *analytics.Service
	scoring   *leadscoring.Service
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(a *analytics.Service, scoring *leadscoring.Service) *StatsHandler {
	return &StatsHandler{analytics: a, scoring: scoring}
}

// CRM godoc
// @Summary CRM statistics
// @Tags Stats
// @Produce json
// @Success 200 {object} models.CRMStats
// @Security BearerAuth
// @Router /api/stats/crm [get]
func (h *StatsHandler) CRM(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	stats, err := h.analytics.CRM(ctx, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// Dashboard godoc
// @Summary Dashboard figures
// @Tags Stats
// @Produce json
// @Success 200 {object} models.DashboardStats
// @Security BearerAuth
// @Router /api/stats/dashboard [get]
func (h *StatsHandler) Dashboard(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	stats, err := h.analytics.Dashboard(ctx, actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// Agents godoc
// @Summary Agent performance
// @Tags Stats
// @Produce json
// @Success 200 {object} models.DataResponse[models.AgentStats]
// @Security BearerAuth
// @Router /api/stats/agents [get]
func (h *StatsHandler) Agents(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, err := h.analytics.Agents(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.DataResponse[models.AgentStats]{Data: rows})
}

// Scores godoc
// @Summary Score distribution
// @Description Lead counts per 20-point score band
// @Tags Stats
// @Produce json
// @Success 200 {object} map[string]int64
// @Security BearerAuth
// @Router /api/stats/scores [get]
func (h *StatsHandler) Scores(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	dist, err := h.scoring.Distribution(ctx, actor.OwnerScope())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dist)
}
