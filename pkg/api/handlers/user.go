package handlers

import (
	"net/http"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/jordanlanch/estatecrm/pkg/users"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/labstack/echo/v4"
)

// UserHandler handles user and agent endpoints
type UserHandler struct {
	users     *users.Service
	validator *validation.Validator
}

// NewUserHandler creates a new user handler
func NewUserHandler(us *users.Service, v *validation.Validator) *UserHandler {
	return &UserHandler{users: us, validator: v}
}

// List godoc
// @Summary List users
// @Tags Users
// @Produce json
// @Param role query string false "admin or agent"
// @Param is_active query bool false "Active flag"
// @Param search query string false "Name or email"
// @Success 200 {object} models.ListResponse[models.UserInfo]
// @Security BearerAuth
// @Router /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	var q models.UserListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return domain.NewBadRequestError("Invalid query parameters")
	}
	if err := h.validator.SanitizeAndValidate(&q); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, page, err := h.users.List(ctx, q)
	if err != nil {
		return err
	}
	out := make([]models.UserInfo, 0, len(rows))
	for i := range rows {
		out = append(out, *models.NewUserInfo(&rows[i]))
	}
	return c.JSON(http.StatusOK, models.ListResponse[models.UserInfo]{Data: out, Pagination: page})
}

// Agents godoc
// @Summary List agents
// @Description Agents with their open lead count, for assignment pickers
// @Tags Users
// @Produce json
// @Param active query bool false "Only active agents"
// @Success 200 {object} models.DataResponse[models.AgentSummary]
// @Security BearerAuth
// @Router /api/users/agents [get]
func (h *UserHandler) Agents(c echo.Context) error {
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	rows, err := h.users.Agents(ctx, queryBool(c, "active"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.DataResponse[models.AgentSummary]{Data: rows})
}

// Get godoc
// @Summary Get user
// @Description Admins may read any user, agents only themselves
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserInfo
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "user")
	if err != nil {
		return err
	}
	if id != actor.ID && !actor.Can(session.ManageUsers) {
		return domain.NewForbiddenError("You can only view your own profile")
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	u, err := h.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewUserInfo(u))
}

// Update godoc
// @Summary Update user
// @Description Admins may change anything; users may change their own full_name and phone
// @Tags Users
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body models.UserUpdateRequest true "Changes"
// @Success 200 {object} models.UserInfo
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "user")
	if err != nil {
		return err
	}
	var req models.UserUpdateRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	u, err := h.users.Update(ctx, actor, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.NewUserInfo(u))
}

// Delete godoc
// @Summary Delete user
// @Description Their leads return to the unassigned pool. Admins cannot delete themselves.
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserDeleteResponse
// @Security BearerAuth
// @Router /api/users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "user")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	n, err := h.users.Delete(ctx, actor.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.UserDeleteResponse{Success: true, UnassignedLeads: n})
}
