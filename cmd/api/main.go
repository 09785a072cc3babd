package main

// @title Estate CRM API
// @version 1.0
// @description Lead, listing and agent management for real-estate agencies.

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/estatecrm/config"
	"github.com/jordanlanch/estatecrm/pkg/analytics"
	apierrors "github.com/jordanlanch/estatecrm/pkg/api/errors"
	"github.com/jordanlanch/estatecrm/pkg/api/handlers"
	apimiddleware "github.com/jordanlanch/estatecrm/pkg/api/middleware"
	"github.com/jordanlanch/estatecrm/pkg/auth"
	"github.com/jordanlanch/estatecrm/pkg/cache"
	"github.com/jordanlanch/estatecrm/pkg/chat"
	"github.com/jordanlanch/estatecrm/pkg/database"
	"github.com/jordanlanch/estatecrm/pkg/email"
	"github.com/jordanlanch/estatecrm/pkg/importer"
	"github.com/jordanlanch/estatecrm/pkg/jobs"
	"github.com/jordanlanch/estatecrm/pkg/leadassignment"
	"github.com/jordanlanch/estatecrm/pkg/leadlifecycle"
	"github.com/jordanlanch/estatecrm/pkg/leads"
	"github.com/jordanlanch/estatecrm/pkg/leadscoring"
	"github.com/jordanlanch/estatecrm/pkg/logger"
	"github.com/jordanlanch/estatecrm/pkg/metrics"
	custommiddleware "github.com/jordanlanch/estatecrm/pkg/middleware"
	"github.com/jordanlanch/estatecrm/pkg/notifications"
	"github.com/jordanlanch/estatecrm/pkg/phone"
	"github.com/jordanlanch/estatecrm/pkg/properties"
	"github.com/jordanlanch/estatecrm/pkg/secrets"
	"github.com/jordanlanch/estatecrm/pkg/storage"
	"github.com/jordanlanch/estatecrm/pkg/users"
	"github.com/jordanlanch/estatecrm/pkg/validation"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if s, ok := log.(interface{ Sync() error }); ok {
		defer func() { _ = s.Sync() }()
	}
	log.Info("configuration loaded", "environment", cfg.APIEnvironment)

	sm, err := secrets.NewManager(secrets.Config{
		Backend:   cfg.SecretsBackend,
		AWSRegion: cfg.AWSRegion,
		SecretID:  cfg.SecretsID,
	}, log)
	if err == nil {
		err = cfg.ApplySecrets(context.Background(), sm)
	}
	if err != nil {
		log.Error("failed to load secrets", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			Release:          "estatecrm@" + version,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			log.Info("sentry initialized", "environment", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Info("sentry disabled (no DSN configured)")
	}

	db, err := database.Open(cfg.DatabaseURL, database.Options{
		Pool:   database.DefaultPoolConfig(),
		Logger: log,
		SSL: &database.SSLConfig{
			Mode:         cfg.DBSSLMode,
			CertPath:     cfg.DBSSLCertPath,
			KeyPath:      cfg.DBSSLKeyPath,
			RootCertPath: cfg.DBSSLRootCertPath,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Redis backs the token blacklist, the listing cache and job locks. The
	// API keeps serving without it.
	redisClient, err := cache.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Warn("redis unavailable, running without cache and token revocation", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	m := metrics.New()

	var blacklist *auth.TokenBlacklist
	if redisClient != nil {
		blacklist = auth.NewTokenBlacklist(redisClient)
	}
	tokens := auth.NewTokens(cfg.JWTSecret,
		time.Duration(cfg.JWTExpirationHours)*time.Hour,
		time.Duration(cfg.JWTRefreshGraceHours)*time.Hour,
		blacklist)

	media, err := storage.New(ctx, storage.Config{
		Type:               cfg.StorageType,
		LocalPath:          cfg.StorageLocalPath,
		PublicURL:          cfg.StoragePublicURL,
		AWSRegion:          cfg.AWSRegion,
		S3Bucket:           cfg.S3Bucket,
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretAccessKey,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize media storage: %w", err)
	}

	// Services
	phones := phone.NewNormalizer(cfg.PhoneDefaultRegion)
	v := validation.New(phones)
	mailer := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.FrontendURL, cfg.SendGridAPIKey, log)
	hub := notifications.NewHub(cfg.CORSAllowedOrigins, m, log)
	defer hub.Close()

	lifecycle := leadlifecycle.NewService(db.DB)
	assignments := leadassignment.NewService(db.DB)
	userService := users.NewService(db.DB, assignments, phones)
	notificationService := notifications.NewService(db.DB, hub, m, log)
	leadService := leads.NewService(db.DB, leads.Deps{
		Lifecycle:   lifecycle,
		Assignments: assignments,
		Notifier:    notificationService,
		Mailer:      mailer,
		Chat:        chat.New(chat.Config{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel}, log),
		Phones:      phones,
		Metrics:     m,
		Logger:      log,
	})
	propertyService := properties.NewService(db.DB, redisClient, media, m, log)
	scoring := leadscoring.NewService(db.DB)
	analyticsService := analytics.NewService(db.DB, lifecycle)
	monitor := jobs.NewLeadMonitor(leadService, notificationService, notificationService, mailer, redisClient, m, log, jobs.Options{
		StaleAfter: time.Duration(cfg.StaleLeadHours) * time.Hour,
		Retention:  time.Duration(cfg.NotificationRetentionDays) * 24 * time.Hour,
	})

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apierrors.NewHandler(log, cfg.IsDevelopment()).HTTPErrorHandler
	e.Validator = v

	globalLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	intakeLimiter := custommiddleware.NewRateLimiter(10, 5) // login and public forms
	go globalLimiter.Run(ctx)
	go intakeLimiter.Run(ctx)

	e.Use(middleware.RequestID())
	e.Use(logger.Middleware(log))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			l := logger.FromContext(c, log)
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				l.Warn("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			l.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(m.Middleware())
	e.Use(middleware.CORSWithConfig(custommiddleware.CORSConfig(cfg.CORSAllowedOrigins)))
	e.Use(custommiddleware.SecurityHeaders(custommiddleware.DefaultSecurityHeadersConfig()))
	e.Use(middleware.BodyLimit("25M"))
	e.Use(globalLimiter.Middleware())

	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	if cfg.StorageType == "local" {
		e.Static(cfg.StoragePublicURL, cfg.StorageLocalPath)
	}

	var cachePinger handlers.Pinger
	if redisClient != nil {
		cachePinger = redisClient
	}

	handlers.Register(e, handlers.Routes{
		Auth:          handlers.NewAuthHandler(userService, tokens, v, mailer, m, log),
		Leads:         handlers.NewLeadHandler(leadService, scoring, v),
		Users:         handlers.NewUserHandler(userService, v),
		Properties:    handlers.NewPropertyHandler(propertyService, importer.New(propertyService, v, log), v),
		Stats:         handlers.NewStatsHandler(analyticsService, scoring),
		Notifications: handlers.NewNotificationHandler(notificationService, hub, v),
		Public:        handlers.NewPublicHandler(leadService, v),
		Health:        handlers.NewHealthHandler(db, cachePinger, version),
		Phone:         handlers.NewPhoneHandler(phones),
		Jobs:          handlers.NewJobsHandler(monitor),
		JWT:           apimiddleware.JWTMiddleware(tokens, userService),
		OptionalJWT:   apimiddleware.OptionalJWT(tokens, userService),
		StreamJWT:     apimiddleware.JWTFromQueryOrHeader(tokens, userService),
		IntakeLimiter: intakeLimiter.Middleware(),
	})

	// Scheduled jobs
	var cronManager *jobs.CronManager
	if cfg.CronEnabled {
		cronManager = jobs.NewCronManager(monitor, log)
		if err := cronManager.SetupJobs(); err != nil {
			return fmt.Errorf("failed to schedule jobs: %w", err)
		}
		cronManager.Start()
		log.Info("cron jobs started", "entries", cronManager.Entries())
	} else {
		log.Info("cron jobs disabled (CRON_ENABLED=false)")
	}

	go reportPoolStats(ctx, db, m)

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	serverErr := make(chan error, 1)
	go func() {
		log.Info("estate CRM API starting", "address", address, "version", version)
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if cronManager != nil {
		cronManager.Stop(shutdownCtx)
		log.Info("cron jobs stopped")
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server gracefully stopped")
	return nil
}

// reportPoolStats feeds the open connection gauge until ctx ends.
func reportPoolStats(ctx context.Context, db *database.Client, m *metrics.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UpdateDBConnections(float64(db.Stats().OpenConnections))
		}
	}
}
