package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jordanlanch/estatecrm/pkg/analytics"
	apierrors "github.com/jordanlanch/estatecrm/pkg/api/errors"
	apimiddleware "github.com/jordanlanch/estatecrm/pkg/api/middleware"
	"github.com/jordanlanch/estatecrm/pkg/auth"
	"github.com/jordanlanch/estatecrm/pkg/cache"
	"github.com/jordanlanch/estatecrm/pkg/chat"
	"github.com/jordanlanch/estatecrm/pkg/database/dbtest"
	"github.com/jordanlanch/estatecrm/pkg/importer"
	"github.com/jordanlanch/estatecrm/pkg/leadassignment"
	"github.com/jordanlanch/estatecrm/pkg/leadlifecycle"
	"github.com/jordanlanch/estatecrm/pkg/leads"
	"github.com/jordanlanch/estatecrm/pkg/leadscoring"
	"github.com/jordanlanch/estatecrm/pkg/notifications"
	"github.com/jordanlanch/estatecrm/pkg/phone"
	"github.com/jordanlanch/estatecrm/pkg/properties"
	"github.com/jordanlanch/estatecrm/pkg/schema"
	"github.com/jordanlanch/estatecrm/pkg/users"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testSecret   = "test-secret-key-minimum-32-characters-long"
	testPassword = "correct-horse-battery"
)

type testServer struct {
	e      *echo.Echo
	db     *gorm.DB
	tokens *auth.Tokens
	admin  *schema.User
	agent  *schema.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	client := dbtest.Open(t)
	db := client.DB
	phones := phone.NewNormalizer(phone.DefaultRegion)
	v := validation.New(phones)
	mr := miniredis.RunT(t)
	redisClient := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), nil)
	t.Cleanup(func() { _ = redisClient.Close() })
	tokens := auth.NewTokens(testSecret, time.Hour, time.Hour, auth.NewTokenBlacklist(redisClient))

	lifecycle := leadlifecycle.NewService(db)
	assignments := leadassignment.NewService(db)
	userService := users.NewService(db, assignments, phones)
	notificationService := notifications.NewService(db, nil, nil, nil)
	leadService := leads.NewService(db, leads.Deps{
		Lifecycle:   lifecycle,
		Assignments: assignments,
		Notifier:    notificationService,
		Chat:        chat.New(chat.Config{}, nil),
		Phones:      phones,
	})
	propertyService := properties.NewService(db, redisClient, nil, nil, nil)
	scoring := leadscoring.NewService(db)

	e := echo.New()
	e.HTTPErrorHandler = apierrors.NewHandler(nil, false).HTTPErrorHandler
	e.Validator = v

	Register(e, Routes{
		Auth:          NewAuthHandler(userService, tokens, v, nil, nil, nil),
		Leads:         NewLeadHandler(leadService, scoring, v),
		Users:         NewUserHandler(userService, v),
		Properties:    NewPropertyHandler(propertyService, importer.New(propertyService, v, nil), v),
		Stats:         NewStatsHandler(analytics.NewService(db, lifecycle), scoring),
		Notifications: NewNotificationHandler(notificationService, nil, v),
		Public:        NewPublicHandler(leadService, v),
		Health:        NewHealthHandler(client, redisClient, "test"),
		Phone:         NewPhoneHandler(phones),
		JWT:           apimiddleware.JWTMiddleware(tokens, userService),
		OptionalJWT:   apimiddleware.OptionalJWT(tokens, userService),
		StreamJWT:     apimiddleware.JWTFromQueryOrHeader(tokens, userService),
	})

	s := &testServer{e: e, db: db, tokens: tokens}
	s.admin = s.createUser(t, "admin@example.com", schema.RoleAdmin, 0)
	s.agent = s.createUser(t, "agent@example.com", schema.RoleAgent, 10)
	return s
}

func (s *testServer) createUser(t *testing.T, email string, role schema.Role, maxLeads int) *schema.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	u := &schema.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     "Test " + string(role),
		Role:         role,
		IsActive:     true,
		MaxLeads:     maxLeads,
	}
	require.NoError(t, s.db.Create(u).Error)
	return u
}

func (s *testServer) tokenFor(t *testing.T, u *schema.User) string {
	t.Helper()
	token, _, err := s.tokens.Issue(u)
	require.NoError(t, err)
	return token
}

// do sends a JSON request. A nil user sends it anonymously.
func (s *testServer) do(t *testing.T, method, path string, u *schema.User, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if u != nil {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.tokenFor(t, u))
	}
	return s.serve(req)
}

func (s *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
