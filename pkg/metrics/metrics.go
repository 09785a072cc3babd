package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Business metrics
	LeadsCreated        *prometheus.CounterVec
	LeadStatusChanges   *prometheus.CounterVec
	LeadsAssigned       prometheus.Counter
	LoginAttempts       *prometheus.CounterVec
	UsersRegistered     prometheus.Counter
	PropertiesImported  prometheus.Counter
	PropertyViews       prometheus.Counter
	NotificationsSent   *prometheus.CounterVec
	ChatMessages        *prometheus.CounterVec
	WebsocketConnection prometheus.Gauge
	JobRuns             *prometheus.CounterVec

	// Database metrics
	DBConnections prometheus.Gauge

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
}

// New creates a Metrics instance registered on its own registry, together
// with the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	sizeBuckets := []float64{100, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}

	return &Metrics{
		registry: reg,

		// HTTP metrics
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: sizeBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: sizeBuckets,
			},
			[]string{"method", "path"},
		),

		// Business metrics
		LeadsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leads_created_total",
				Help: "Total number of leads created",
			},
			[]string{"source"},
		),
		LeadStatusChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lead_status_changes_total",
				Help: "Total number of lead status transitions",
			},
			[]string{"to"},
		),
		LeadsAssigned: f.NewCounter(prometheus.CounterOpts{
			Name: "leads_assigned_total",
			Help: "Total number of lead assignments",
		}),
		LoginAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"}, // success, failed
		),
		UsersRegistered: f.NewCounter(prometheus.CounterOpts{
			Name: "users_registered_total",
			Help: "Total number of users registered",
		}),
		PropertiesImported: f.NewCounter(prometheus.CounterOpts{
			Name: "properties_imported_total",
			Help: "Total number of properties created by bulk import",
		}),
		PropertyViews: f.NewCounter(prometheus.CounterOpts{
			Name: "property_views_total",
			Help: "Total number of property detail views",
		}),
		NotificationsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_sent_total",
				Help: "Total number of notifications created",
			},
			[]string{"type"},
		),
		ChatMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_messages_total",
				Help: "Total number of chatbot messages",
			},
			[]string{"responder"}, // openai, canned
		),
		WebsocketConnection: f.NewGauge(prometheus.GaugeOpts{
			Name: "notification_ws_connections",
			Help: "Number of open notification websocket connections",
		}),
		JobRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "job_runs_total",
				Help: "Total number of scheduled job runs",
			},
			[]string{"job", "status"}, // success, failed, skipped
		),

		// Database metrics
		DBConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		}),

		// Cache metrics
		CacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware creates an Echo middleware for Prometheus metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			// Route pattern, not the raw path (e.g. /api/leads/:id)
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			if req.ContentLength > 0 {
				m.HTTPRequestSize.WithLabelValues(req.Method, path).Observe(float64(req.ContentLength))
			}

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			code := strconv.Itoa(status)
			m.HTTPRequestsTotal.WithLabelValues(req.Method, path, code).Inc()
			m.HTTPRequestDuration.WithLabelValues(req.Method, path, code).Observe(time.Since(start).Seconds())
			m.HTTPResponseSize.WithLabelValues(req.Method, path).Observe(float64(c.Response().Size))

			return err
		}
	}
}

// RecordLeadCreated increments the leads created counter
func (m *Metrics) RecordLeadCreated(source string) {
	if m == nil {
		return
	}
	m.LeadsCreated.WithLabelValues(source).Inc()
}

// RecordStatusChange increments the status change counter
func (m *Metrics) RecordStatusChange(to string) {
	if m == nil {
		return
	}
	m.LeadStatusChanges.WithLabelValues(to).Inc()
}

// RecordLeadAssigned increments the assignment counter
func (m *Metrics) RecordLeadAssigned() {
	if m == nil {
		return
	}
	m.LeadsAssigned.Inc()
}

// RecordLoginAttempt increments login attempts counter
func (m *Metrics) RecordLoginAttempt(success bool) {
	if m == nil {
		return
	}
	status := "failed"
	if success {
		status = "success"
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// RecordUserRegistered increments users registered counter
func (m *Metrics) RecordUserRegistered() {
	if m == nil {
		return
	}
	m.UsersRegistered.Inc()
}

// RecordPropertiesImported adds n to the import counter
func (m *Metrics) RecordPropertiesImported(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PropertiesImported.Add(float64(n))
}

// RecordPropertyView increments the property views counter
func (m *Metrics) RecordPropertyView() {
	if m == nil {
		return
	}
	m.PropertyViews.Inc()
}

// RecordNotification increments the notifications counter
func (m *Metrics) RecordNotification(kind string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(kind).Inc()
}

// RecordChatMessage increments the chatbot counter
func (m *Metrics) RecordChatMessage(responder string) {
	if m == nil {
		return
	}
	m.ChatMessages.WithLabelValues(responder).Inc()
}

// WebsocketOpened tracks a new notification stream
func (m *Metrics) WebsocketOpened() {
	if m == nil {
		return
	}
	m.WebsocketConnection.Inc()
}

// WebsocketClosed tracks a closed notification stream
func (m *Metrics) WebsocketClosed() {
	if m == nil {
		return
	}
	m.WebsocketConnection.Dec()
}

// UpdateDBConnections updates active database connections gauge
func (m *Metrics) UpdateDBConnections(count float64) {
	if m == nil {
		return
	}
	m.DBConnections.Set(count)
}

// RecordCacheHit increments cache hits counter
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss increments cache misses counter
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(cache).Inc()
}

// RecordJobRun increments the scheduled job counter
func (m *Metrics) RecordJobRun(job, status string) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job, status).Inc()
}
