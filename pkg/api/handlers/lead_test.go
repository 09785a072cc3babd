package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/leadscoring"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *testServer) createLead(t *testing.T, as *schema.User, req models.LeadCreateRequest) schema.Lead {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/leads", as, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[schema.Lead](t, rec)
}

func TestLeadCreate(t *testing.T) {
	s := newTestServer(t)

	t.Run("agent lead is assigned to the agent", func(t *testing.T) {
		lead := s.createLead(t, s.agent, models.LeadCreateRequest{
			FullName: "Maria Lopez",
			Email:    "Maria@Example.com",
			Urgency:  "high",
		})
		require.NotNil(t, lead.AssignedToID)
		assert.Equal(t, s.agent.ID, *lead.AssignedToID)
		assert.Equal(t, "maria@example.com", lead.Email)
		assert.Equal(t, schema.StatusNew, lead.Status)
		assert.Positive(t, lead.Score)
	})

	t.Run("validation failure", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/leads", s.agent, map[string]any{
			"full_name": "X",
			"status":    "archived",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		fields := map[string]bool{}
		for _, d := range decode[models.ErrorResponse](t, rec).Details {
			fields[d.Field] = true
		}
		assert.True(t, fields["full_name"])
		assert.True(t, fields["status"])
	})

	t.Run("inverted budget", func(t *testing.T) {
		lo, hi := 500000.0, 100000.0
		rec := s.do(t, http.MethodPost, "/api/leads", s.agent, models.LeadCreateRequest{
			FullName: "Budget Person", BudgetMin: &lo, BudgetMax: &hi,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		rec := s.do(t, http.MethodPost, "/api/leads", nil, models.LeadCreateRequest{FullName: "Nobody Here"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLeadAgentScoping(t *testing.T) {
	s := newTestServer(t)
	other := s.createUser(t, "other@example.com", schema.RoleAgent, 10)

	mine := s.createLead(t, s.agent, models.LeadCreateRequest{FullName: "Own Lead"})
	theirs := s.createLead(t, s.admin, models.LeadCreateRequest{FullName: "Their Lead", AssignedToID: &other.ID})

	rec := s.do(t, http.MethodGet, "/api/leads", s.agent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.ListResponse[schema.Lead]](t, rec)
	require.Len(t, list.Data, 1)
	assert.Equal(t, mine.ID, list.Data[0].ID)
	assert.EqualValues(t, 1, list.Pagination.Total)

	rec = s.do(t, http.MethodGet, "/api/leads", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.ListResponse[schema.Lead]](t, rec).Data, 2)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/leads/%d", theirs.ID), s.agent, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	status := "contacted"
	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/leads/%d", theirs.ID), s.agent, models.LeadUpdateRequest{Status: &status})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/leads/%d/score", theirs.ID), s.agent, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeadUpdateAndTimeline(t *testing.T) {
	s := newTestServer(t)
	lead := s.createLead(t, s.agent, models.LeadCreateRequest{FullName: "Timeline Lead"})
	path := fmt.Sprintf("/api/leads/%d", lead.ID)

	status := "qualified"
	rec := s.do(t, http.MethodPut, path, s.agent, models.LeadUpdateRequest{Status: &status})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, schema.StatusQualified, decode[schema.Lead](t, rec).Status)

	rec = s.do(t, http.MethodPost, path+"/notes", s.agent, models.NoteRequest{Content: "Prefers evening calls"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decode[schema.LeadNote](t, rec)
	assert.NotEmpty(t, note.ID)
	assert.Equal(t, s.agent.ID, note.AuthorID)

	rec = s.do(t, http.MethodGet, path+"/activity", s.agent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	timeline := decode[models.DataResponse[schema.LeadActivity]](t, rec).Data
	types := map[schema.ActivityType]bool{}
	for _, a := range timeline {
		types[a.Type] = true
	}
	assert.True(t, types[schema.ActivityStatusChange])
	assert.True(t, types[schema.ActivityNote])
}

func TestLeadTaskActivity(t *testing.T) {
	s := newTestServer(t)
	lead := s.createLead(t, s.agent, models.LeadCreateRequest{FullName: "Task Lead"})
	path := fmt.Sprintf("/api/leads/%d/activity", lead.ID)

	rec := s.do(t, http.MethodPost, path, s.agent, models.ActivityRequest{Type: "task", Title: "Call back"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := map[string]bool{}
	for _, d := range decode[models.ErrorResponse](t, rec).Details {
		fields[d.Field] = true
	}
	assert.True(t, fields["due_date"])
	assert.True(t, fields["priority"])

	due := time.Now().Add(24 * time.Hour).UTC()
	rec = s.do(t, http.MethodPost, path, s.agent, models.ActivityRequest{
		Type: "task", Title: "Call back", DueDate: &due, Priority: "high",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, schema.ActivityTask, decode[schema.LeadActivity](t, rec).Type)

	rec = s.do(t, http.MethodPost, path, s.agent, models.ActivityRequest{Type: "call", Title: "Left voicemail"})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestLeadDelete(t *testing.T) {
	s := newTestServer(t)
	lead := s.createLead(t, s.agent, models.LeadCreateRequest{FullName: "Doomed Lead"})
	path := fmt.Sprintf("/api/leads/%d", lead.ID)

	rec := s.do(t, http.MethodDelete, path, s.agent, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, path, s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.SuccessResponse](t, rec).Success)

	rec = s.do(t, http.MethodGet, path, s.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, path+"?hard=true", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var n int64
	require.NoError(t, s.db.Unscoped().Model(&schema.Lead{}).Where("id = ?", lead.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestLeadBadID(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/leads/abc", s.agent, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid lead ID", decode[models.ErrorResponse](t, rec).Error)
}

func TestLeadExport(t *testing.T) {
	s := newTestServer(t)
	s.createLead(t, s.agent, models.LeadCreateRequest{FullName: "Export Me"})

	rec := s.do(t, http.MethodGet, "/api/leads/export", s.agent, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestLeadScoreAndRescore(t *testing.T) {
	s := newTestServer(t)
	lead := s.createLead(t, s.agent, models.LeadCreateRequest{
		FullName: "Scored Lead", Email: "scored@example.com", Urgency: "critical",
	})

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/leads/%d/score", lead.ID), s.agent, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	score := decode[leadscoring.ScoreResponse](t, rec)
	assert.Equal(t, lead.ID, score.LeadID)
	assert.Equal(t, lead.Score, score.TotalScore)

	require.NoError(t, s.db.Model(&schema.Lead{}).Where("id = ?", lead.ID).Update("score", 0).Error)

	rec = s.do(t, http.MethodPost, "/api/leads/rescore", s.agent, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/leads/rescore", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[models.CountResponse](t, rec).Count)
}

func TestLeadClearFields(t *testing.T) {
	s := newTestServer(t)
	lo, hi := 100000.0, 200000.0
	lead := s.createLead(t, s.agent, models.LeadCreateRequest{FullName: "Clear Lead", BudgetMin: &lo, BudgetMax: &hi})
	path := fmt.Sprintf("/api/leads/%d", lead.ID)

	rec := s.do(t, http.MethodPut, path, s.agent, map[string]any{"clear": []string{"status"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, path, s.agent, map[string]any{"clear": []string{"budget_max"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[schema.Lead](t, rec)
	require.NotNil(t, got.BudgetMin)
	assert.Equal(t, lo, *got.BudgetMin)
	assert.Nil(t, got.BudgetMax)
}

func TestLeadStatusAndTrails(t *testing.T) {
	s := newTestServer(t)
	other := s.createUser(t, "other@example.com", schema.RoleAgent, 10)
	lead := s.createLead(t, s.agent, models.LeadCreateRequest{FullName: "Trail Lead"})
	path := fmt.Sprintf("/api/leads/%d", lead.ID)

	rec := s.do(t, http.MethodPut, path+"/status", s.agent, models.StatusChangeRequest{Status: "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, path+"/status", s.agent, models.StatusChangeRequest{Status: "viewing", Reason: "Booked for Friday"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, schema.StatusViewing, decode[schema.Lead](t, rec).Status)

	rec = s.do(t, http.MethodGet, path+"/history", s.agent, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[models.DataResponse[schema.LeadActivity]](t, rec).Data
	require.Len(t, history, 1)
	assert.Equal(t, schema.ActivityStatusChange, history[0].Type)
	assert.Equal(t, "Booked for Friday", history[0].Description)

	rec = s.do(t, http.MethodPut, path, s.admin, models.LeadUpdateRequest{AssignedToID: &other.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, path+"/assignments", s.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assignments := decode[models.DataResponse[schema.LeadActivity]](t, rec).Data
	require.NotEmpty(t, assignments)
	for _, a := range assignments {
		assert.Equal(t, schema.ActivityAssignment, a.Type)
	}

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path+"/history", s.agent, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path+"/assignments", s.agent, nil).Code)
	rec = s.do(t, http.MethodPut, path+"/status", s.agent, models.StatusChangeRequest{Status: "won"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
