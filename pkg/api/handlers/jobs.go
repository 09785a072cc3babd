package handlers

import (
	"net/http"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/jobs"
	"github.com/labstack/echo/v4"
)

// JobsHandler lets admins trigger background jobs on demand
type JobsHandler struct {
	monitor *jobs.LeadMonitor
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(monitor *jobs.LeadMonitor) *JobsHandler {
	return &JobsHandler{monitor: monitor}
}

// JobResult reports what a manual run touched
type JobResult struct {
	Job   string `json:"job"`
	Count int64  `json:"count"`
}

// RemindStaleLeads godoc
// @Summary Send stale lead reminders now
// @Description Reminds agents of assigned leads still waiting for first contact. Requires admin role.
// @Tags Admin Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} JobResult
// @Router /api/admin/jobs/stale-reminders [post]
func (h *JobsHandler) RemindStaleLeads(c echo.Context) error {
	ctx, cancel := requestContext(c, 2*time.Minute)
	defer cancel()

	n, err := h.monitor.RemindStaleLeads(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, JobResult{Job: jobs.JobStaleLeadReminders, Count: int64(n)})
}

// PurgeNotifications godoc
// @Summary Purge old read notifications now
// @Tags Admin Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} JobResult
// @Router /api/admin/jobs/purge-notifications [post]
func (h *JobsHandler) PurgeNotifications(c echo.Context) error {
	ctx, cancel := requestContext(c, 2*time.Minute)
	defer cancel()

	n, err := h.monitor.PurgeNotifications(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, JobResult{Job: jobs.JobNotificationPurge, Count: n})
}
