package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/leads"
	"github.com/jordanlanch/estatecrm/pkg/leadscoring"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LeadHandler handles lead endpoints
type LeadHandler struct {
	leads     *leads.Service
	scoring   *leadscoring.Service
	validator *validation.Validator
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(ls *leads.Service, scoring *leadscoring.Service, v *validation.Validator) *LeadHandler {
	return &LeadHandler{leads: ls, scoring: scoring, validator: v}
}

func (h *LeadHandler) bindQuery(c echo.Context) (models.LeadListQuery, error) {
	var q models.LeadListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return q, domain.NewBadRequestError("Invalid query parameters")
	}
	if err := h.validator.SanitizeAndValidate(&q); err != nil {
		return q, err
	}
	return q, nil
}

// List godoc
// @Summary List leads
// @Description Agents only ever see leads assigned to them
// @Tags Leads
// @Produce json
// @Param status query string false "Pipeline status"
// @Param urgency query string false "Urgency"
// @Param source query string false "Source"
// @Param assigned_to query string false "Agent id, or 'unassigned'"
// @Param search query string false "Name, email or phone"
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size (max 100)" default(20)
// @Success 200 {object} models.ListResponse[schema.Lead]
// @Security BearerAuth
// @Router /api/leads [get]
func (h *LeadHandler) List(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	q, err := h.bindQuery(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, page, err := h.leads.List(ctx, actor, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.ListResponse[schema.Lead]{Data: rows, Pagination: page})
}

// Get godoc
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Param id path int true "Lead ID"
// @Success 200 {object} schema.Lead
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/leads/{id} [get]
func (h *LeadHandler) Get(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	lead, err := h.leads.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lead)
}

// Create godoc
// @Summary Create lead
// @Description Agents' leads are assigned to themselves; admin leads without an assignee are auto-assigned
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body models.LeadCreateRequest true "Lead"
// @Success 201 {object} schema.Lead
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/leads [post]
func (h *LeadHandler) Create(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	var req models.LeadCreateRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	lead, err := h.leads.Create(ctx, actor, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, lead)
}

// Update godoc
// @Summary Update lead
// @Description Partial update. A status change is logged as an activity.
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path int true "Lead ID"
// @Param request body models.LeadUpdateRequest true "Changes"
// @Success 200 {object} schema.Lead
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/leads/{id} [put]
func (h *LeadHandler) Update(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}
	var req models.LeadUpdateRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	lead, err := h.leads.Update(ctx, actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lead)
}

// ChangeStatus godoc
// @Summary Change lead status
// @Description Any stage may follow any other; the reason is kept on the status history
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path int true "Lead ID"
// @Param request body models.StatusChangeRequest true "New status"
// @Success 200 {object} schema.Lead
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/leads/{id}/status [put]
func (h *LeadHandler) ChangeStatus(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}
	var req models.StatusChangeRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	lead, err := h.leads.ChangeStatus(ctx, actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, lead)
}

// History godoc
// @Summary Lead status history
// @Tags Leads
// @Produce json
// @Param id path int true "Lead ID"
// @Success 200 {object} models.DataResponse[schema.LeadActivity]
// @Security BearerAuth
// @Router /api/leads/{id}/history [get]
func (h *LeadHandler) History(c echo.Context) error {
	return h.trail(c, h.leads.StatusHistory)
}

// Assignments godoc
// @Summary Lead assignment history
// @Tags Leads
// @Produce json
// @Param id path int true "Lead ID"
// @Success 200 {object} models.DataResponse[schema.LeadActivity]
// @Security BearerAuth
// @Router /api/leads/{id}/assignments [get]
func (h *LeadHandler) Assignments(c echo.Context) error {
	return h.trail(c, h.leads.AssignmentHistory)
}

func (h *LeadHandler) trail(c echo.Context, fetch func(context.Context, session.Identity, uint) ([]schema.LeadActivity, error)) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, err := fetch(ctx, actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.DataResponse[schema.LeadActivity]{Data: rows})
}

// Delete godoc
// @Summary Delete lead
// @Description Soft delete, or permanent removal with its activities when hard=true. Admin only.
// @Tags Leads
// @Produce json
// @Param id path int true "Lead ID"
// @Param hard query bool false "Remove permanently"
// @Success 200 {object} models.SuccessResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/leads/{id} [delete]
func (h *LeadHandler) Delete(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.leads.Delete(ctx, actor, id, queryBool(c, "hard")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: "Lead deleted"})
}

// AddActivity godoc
// @Summary Log activity
// @Description Task activities need a due date and a priority
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path int true "Lead ID"
// @Param request body models.ActivityRequest true "Activity"
// @Success 201 {object} schema.LeadActivity
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/leads/{id}/activity [post]
func (h *LeadHandler) AddActivity(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}
	var req models.ActivityRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}
	if req.Type == string(schema.ActivityTask) {
		task := req.Task()
		if fields := h.validator.Check(&task); len(fields) > 0 {
			return domain.NewValidationError("Validation failed", fields...)
		}
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	activity, err := h.leads.AddActivity(ctx, actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, activity)
}

// Activities godoc
// @Summary Lead timeline
// @Tags Leads
// @Produce json
// @Param id path int true "Lead ID"
// @Param limit query int false "Max entries (max 200)" default(50)
// @Success 200 {object} models.DataResponse[schema.LeadActivity]
// @Security BearerAuth
// @Router /api/leads/{id}/activity [get]
func (h *LeadHandler) Activities(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, err := h.leads.Activities(ctx, actor, id, queryInt(c, "limit", 50, 200))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.DataResponse[schema.LeadActivity]{Data: rows})
}

// AddNote godoc
// @Summary Add note
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path int true "Lead ID"
// @Param request body models.NoteRequest true "Note"
// @Success 201 {object} schema.LeadNote
// @Security BearerAuth
// @Router /api/leads/{id}/notes [post]
func (h *LeadHandler) AddNote(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}
	var req models.NoteRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	note, err := h.leads.AddNote(ctx, actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, note)
}

// Export godoc
// @Summary Export leads
// @Description Same filters as the list, returned as an XLSX workbook
// @Tags Leads
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Security BearerAuth
// @Router /api/leads/export [get]
func (h *LeadHandler) Export(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	if !actor.Can(session.ExportLeads) {
		return domain.NewForbiddenError("You cannot export leads")
	}
	q, err := h.bindQuery(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, 60*time.Second)
	defer cancel()

	data, n, err := h.leads.Export(ctx, actor, q)
	if err != nil {
		return err
	}
	filename := fmt.Sprintf("leads-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Response().Header().Set("X-Total-Count", fmt.Sprint(n))
	return c.Blob(http.StatusOK, xlsxContentType, data)
}

// Score godoc
// @Summary Score breakdown
// @Tags Leads
// @Produce json
// @Param id path int true "Lead ID"
// @Success 200 {object} leadscoring.ScoreResponse
// @Security BearerAuth
// @Router /api/leads/{id}/score [get]
func (h *LeadHandler) Score(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "lead")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.scoring.CalculateScore(ctx, id, actor.OwnerScope())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Rescore godoc
// @Summary Recalculate scores
// @Description Rewrites every stored score that no longer matches the scoring rules. Admin only.
// @Tags Leads
// @Produce json
// @Success 200 {object} models.CountResponse
// @Security BearerAuth
// @Router /api/leads/rescore [post]
func (h *LeadHandler) Rescore(c echo.Context) error {
	ctx, cancel := requestContext(c, 2*time.Minute)
	defer cancel()

	n, err := h.scoring.RecalculateAll(ctx, 500)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.CountResponse{Count: int64(n)})
}
