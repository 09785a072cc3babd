package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.RecordLeadCreated("website_form")
	a.RecordLeadCreated("website_form")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.LeadsCreated.WithLabelValues("website_form")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.LeadsCreated.WithLabelValues("website_form")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLeadCreated("manual")
		m.RecordLoginAttempt(true)
		m.RecordPropertiesImported(3)
		m.WebsocketOpened()
	})
}

func TestBusinessCounters(t *testing.T) {
	m := New()
	m.RecordLoginAttempt(true)
	m.RecordLoginAttempt(false)
	m.RecordLoginAttempt(false)
	m.RecordStatusChange("won")
	m.RecordPropertiesImported(5)
	m.RecordPropertiesImported(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LeadStatusChanges.WithLabelValues("won")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.PropertiesImported))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/leads/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leads/7", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/leads/:id", "200")))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "http_requests_total"))
}
