package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jordanlanch/estatecrm/pkg/domain"
	"github.com/jordanlanch/estatecrm/pkg/models"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_LoginAndAuthorizedCalls(t *testing.T) {
	token := signToken(t, time.Now().Add(time.Hour))
	var seen http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			assert.Empty(t, r.Header.Get("Authorization"))
			var req models.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ana@example.com", req.Email)
			writeJSON(w, http.StatusOK, models.AuthResponse{
				Token: token,
				User:  &models.UserInfo{ID: 1, Email: req.Email, Role: schema.RoleAgent},
			})
		case "/api/leads":
			seen = r.Header.Clone()
			assert.Equal(t, "qualified", r.URL.Query().Get("status"))
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "70", r.URL.Query().Get("min_score"))
			assert.False(t, r.URL.Query().Has("search"))
			writeJSON(w, http.StatusOK, models.ListResponse[schema.Lead]{
				Data:       []schema.Lead{{ID: 9, FullName: "Luis"}},
				Pagination: models.NewPaginationInfo(2, 20, 21),
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", nil)
	ctx := context.Background()

	resp, err := c.Login(ctx, "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, token, resp.Token)
	assert.True(t, c.Session().Authenticated())
	assert.Equal(t, schema.RoleAgent, c.Session().Role())

	minScore := 70
	page, err := c.ListLeads(ctx, models.LeadListQuery{Status: "qualified", Page: 2, MinScore: &minScore})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Luis", page.Data[0].FullName)
	assert.True(t, page.Pagination.HasPrev)

	assert.Equal(t, "Bearer "+token, seen.Get("Authorization"))
	assert.Equal(t, "application/json", seen.Get("Accept"))
	assert.Equal(t, "XMLHttpRequest", seen.Get("X-Requested-With"))
}

func TestClient_LeadStatusAndTrails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/api/leads/4/status":
			var req models.StatusChangeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "viewing", req.Status)
			assert.Equal(t, "Booked for Friday", req.Reason)
			writeJSON(w, http.StatusOK, schema.Lead{ID: 4, Status: schema.StatusViewing})
		case r.URL.Path == "/api/leads/4/history":
			writeJSON(w, http.StatusOK, models.DataResponse[schema.LeadActivity]{
				Data: []schema.LeadActivity{{ID: 1, Type: schema.ActivityStatusChange}},
			})
		case r.URL.Path == "/api/leads/4/assignments":
			writeJSON(w, http.StatusOK, models.DataResponse[schema.LeadActivity]{
				Data: []schema.LeadActivity{{ID: 2, Type: schema.ActivityAssignment}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	ctx := context.Background()

	lead, err := c.ChangeLeadStatus(ctx, 4, "viewing", "Booked for Friday")
	require.NoError(t, err)
	assert.Equal(t, schema.StatusViewing, lead.Status)

	history, err := c.StatusHistory(ctx, 4)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, schema.ActivityStatusChange, history[0].Type)

	assignments, err := c.AssignmentHistory(ctx, 4)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, schema.ActivityAssignment, assignments[0].Type)
}

func TestClient_UnauthorizedClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Token has been revoked"})
	}))
	defer srv.Close()

	session := NewSession(nil, "")
	require.NoError(t, session.Start(signToken(t, time.Now().Add(time.Hour)), &models.UserInfo{ID: 1}))

	loggedOut := false
	c := New(srv.URL, session, OnLogout(func() { loggedOut = true }))
	_, err := c.Me(context.Background())

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Token has been revoked", err.(*APIError).Message)
	assert.False(t, session.Authenticated())
	assert.True(t, loggedOut)
}

func TestClient_ValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:   "Validation failed",
			Details: []domain.FieldError{{Field: "full_name", Message: "is required", Code: "required"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.SubmitContact(context.Background(), models.ContactFormRequest{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	apiErr := err.(*APIError)
	require.Len(t, apiErr.Details, 1)
	assert.Equal(t, "full_name", apiErr.Details[0].Field)
}

func TestClient_PublicPresetOmitsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok"})
	}))
	defer srv.Close()

	session := NewSession(nil, "")
	require.NoError(t, session.Start(signToken(t, time.Now().Add(time.Hour)), nil))
	health, err := New(srv.URL, session).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}

func TestClient_ImportUploadsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "props.csv", hdr.Filename)
		assert.Equal(t, "title,category\n", string(data))
		writeJSON(w, http.StatusOK, models.ImportResponse{Imported: 3})
	}))
	defer srv.Close()

	res, err := New(srv.URL, nil).ImportProperties(context.Background(), "props.csv", strings.NewReader("title,category\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
}

func TestClient_EnsureFresh(t *testing.T) {
	fresh := signToken(t, time.Now().Add(24*time.Hour))
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/api/auth/refresh", r.URL.Path)
		writeJSON(w, http.StatusOK, models.AuthResponse{Token: fresh})
	}))
	defer srv.Close()

	session := NewSession(nil, "")
	require.NoError(t, session.Start(signToken(t, time.Now().Add(2*time.Minute)), &models.UserInfo{ID: 4}))
	c := New(srv.URL, session)

	require.NoError(t, c.EnsureFresh(context.Background(), 0))
	assert.Equal(t, 1, calls)
	assert.Equal(t, fresh, session.Token())
	u, ok := session.User()
	require.True(t, ok)
	assert.Equal(t, uint(4), u.ID)

	require.NoError(t, c.EnsureFresh(context.Background(), 0))
	assert.Equal(t, 1, calls)
}

func TestEncode(t *testing.T) {
	featured := false
	price := 1500.5
	q := Encode(&models.PropertyListQuery{City: "Madrid", Featured: &featured, MinPrice: &price, Limit: 10})
	assert.Equal(t, "Madrid", q.Get("city"))
	assert.Equal(t, "false", q.Get("featured"))
	assert.Equal(t, "1500.5", q.Get("min_price"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.False(t, q.Has("page"))
	assert.False(t, q.Has("include_inactive"))

	assert.Empty(t, Encode(nil))
	assert.Empty(t, Encode((*models.PropertyListQuery)(nil)))
}
