package handlers

import (
	"net/http"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/notifications"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/labstack/echo/v4"
)

// NotificationHandler serves the caller's own notifications
type NotificationHandler struct {
	notifications *notifications.Service
	hub           *notifications.Hub
	validator     *validation.Validator
}

// NewNotificationHandler creates a new notification handler. hub may be nil
// when live streaming is disabled.
func NewNotificationHandler(ns *notifications.Service, hub *notifications.Hub, v *validation.Validator) *NotificationHandler {
	return &NotificationHandler{notifications: ns, hub: hub, validator: v}
}

// List godoc
// @Summary List notifications
// @Tags Notifications
// @Produce json
// @Param unread query bool false "Only unread"
// @Param page query int false "Page" default(1)
// @Success 200 {object} models.NotificationListResponse
// @Security BearerAuth
// @Router /api/notifications [get]
func (h *NotificationHandler) List(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	var q models.NotificationListQuery
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, &q); err != nil {
		return domain.NewBadRequestError("Invalid query parameters")
	}
	if err := h.validator.SanitizeAndValidate(&q); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	resp, err := h.notifications.List(ctx, actor.ID, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// MarkRead godoc
// @Summary Mark notification read
// @Tags Notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} schema.Notification
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /api/notifications/{id} [put]
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "notification")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	n, err := h.notifications.MarkRead(ctx, actor.ID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

// MarkAllRead godoc
// @Summary Mark all notifications read
// @Tags Notifications
// @Produce json
// @Success 200 {object} models.CountResponse
// @Security BearerAuth
// @Router /api/notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	n, err := h.notifications.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.CountResponse{Count: n})
}

// Delete godoc
// @Summary Delete notification
// @Tags Notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} models.SuccessResponse
// @Security BearerAuth
// @Router /api/notifications/{id} [delete]
func (h *NotificationHandler) Delete(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id", "notification")
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, defaultTimeout)
	defer cancel()

	if err := h.notifications.Delete(ctx, actor.ID, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, models.SuccessResponse{Success: true})
}

// Stream godoc
// @Summary Live notifications
// @Description Websocket stream of new notifications. The token may be passed as ?token=.
// @Tags Notifications
// @Security BearerAuth
// @Router /api/notifications/ws [get]
func (h *NotificationHandler) Stream(c echo.Context) error {
	actor, err := identity(c)
	if err != nil {
		return err
	}
	if h.hub == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Live notifications are disabled")
	}
	if err := h.hub.Serve(c.Response(), c.Request(), actor.ID); err != nil {
		// The upgrader has already written the HTTP error.
		logger.FromContext(c, nil).Debug("websocket upgrade failed", "user_id", actor.ID, "error", err)
	}
	return nil
}
