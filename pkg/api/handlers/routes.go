package handlers

import (
	custommiddleware "github.com/jordanlanch/estatecrm/pkg/middleware"
	"github.com/jordanlanch/estatecrm/pkg/session"
	"github.com/labstack/echo/v4"
)

// Routes collects the handlers and auth middleware mounted by Register.
// Nil handlers leave their routes out.
type Routes struct {
	Auth          *AuthHandler
	Leads         *LeadHandler
	Users         *UserHandler
	Properties    *PropertyHandler
	Stats         *StatsHandler
	Notifications *NotificationHandler
	Public        *PublicHandler
	Health        *HealthHandler
	Phone         *PhoneHandler
	Jobs          *JobsHandler

	// JWT rejects requests without a valid bearer token.
	JWT echo.MiddlewareFunc
	// OptionalJWT attaches the caller when a token is present.
	OptionalJWT echo.MiddlewareFunc
	// StreamJWT also accepts ?token= for websocket upgrades.
	StreamJWT echo.MiddlewareFunc
	// IntakeLimiter throttles login and public intake. May be nil.
	IntakeLimiter echo.MiddlewareFunc
}

// Register mounts every API route on e.
func Register(e *echo.Echo, r Routes) {
	adminOnly := custommiddleware.RequireAdmin()
	manageUsers := custommiddleware.RequireCapability(session.ManageUsers)
	intake := []echo.MiddlewareFunc{}
	if r.IntakeLimiter != nil {
		intake = append(intake, r.IntakeLimiter)
	}
	streamJWT := r.StreamJWT
	if streamJWT == nil {
		streamJWT = r.JWT
	}

	if r.Health != nil {
		e.GET("/health", r.Health.Health)
	}

	api := e.Group("/api")

	if r.Auth != nil {
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/login", r.Auth.Login, intake...)
			authRoutes.POST("/refresh", r.Auth.Refresh)
			authRoutes.GET("/me", r.Auth.Me, r.JWT)
			authRoutes.PUT("/password", r.Auth.ChangePassword, r.JWT)
			authRoutes.POST("/logout", r.Auth.Logout, r.JWT)
			authRoutes.POST("/register", r.Auth.Register, r.JWT, manageUsers)
		}
	}

	if r.Public != nil {
		publicRoutes := api.Group("/public", intake...)
		{
			publicRoutes.POST("/contact", r.Public.Contact)
			publicRoutes.POST("/chat", r.Public.Chat)
		}
	}

	if r.Properties != nil {
		propertyRoutes := api.Group("/properties")
		{
			propertyRoutes.GET("", r.Properties.List, r.OptionalJWT)
			propertyRoutes.GET("/featured", r.Properties.Featured)
			propertyRoutes.GET("/search", r.Properties.Search, r.OptionalJWT)
			propertyRoutes.GET("/stats", r.Properties.Stats, r.JWT, adminOnly) // before /:id
			propertyRoutes.GET("/:id", r.Properties.Get, r.OptionalJWT)

			propertyRoutes.POST("", r.Properties.Create, r.JWT, adminOnly)
			propertyRoutes.POST("/import", r.Properties.Import, r.JWT, adminOnly)
			propertyRoutes.POST("/bulk-update", r.Properties.BulkUpdate, r.JWT, adminOnly)
			propertyRoutes.PUT("/:id", r.Properties.Update, r.JWT, adminOnly)
			propertyRoutes.DELETE("/:id", r.Properties.Delete, r.JWT, adminOnly)
			propertyRoutes.POST("/:id/media", r.Properties.UploadMedia, r.JWT, adminOnly)
		}
	}

	protected := api.Group("", r.JWT)

	if r.Leads != nil {
		leadRoutes := protected.Group("/leads")
		{
			leadRoutes.GET("", r.Leads.List)
			leadRoutes.POST("", r.Leads.Create)
			leadRoutes.GET("/export", r.Leads.Export) // before /:id
			leadRoutes.POST("/rescore", r.Leads.Rescore, adminOnly)
			leadRoutes.GET("/:id", r.Leads.Get)
			leadRoutes.PUT("/:id", r.Leads.Update)
			leadRoutes.PUT("/:id/status", r.Leads.ChangeStatus)
			leadRoutes.DELETE("/:id", r.Leads.Delete, adminOnly)
			leadRoutes.GET("/:id/activity", r.Leads.Activities)
			leadRoutes.POST("/:id/activity", r.Leads.AddActivity)
			leadRoutes.POST("/:id/notes", r.Leads.AddNote)
			leadRoutes.GET("/:id/score", r.Leads.Score)
			leadRoutes.GET("/:id/history", r.Leads.History)
			leadRoutes.GET("/:id/assignments", r.Leads.Assignments)
		}
	}

	if r.Users != nil {
		userRoutes := protected.Group("/users")
		{
			userRoutes.GET("", r.Users.List, manageUsers)
			userRoutes.GET("/agents", r.Users.Agents)
			userRoutes.GET("/:id", r.Users.Get)
			userRoutes.PUT("/:id", r.Users.Update)
			userRoutes.DELETE("/:id", r.Users.Delete, manageUsers)
		}
	}

	if r.Stats != nil {
		statsRoutes := protected.Group("/stats")
		{
			statsRoutes.GET("/crm", r.Stats.CRM)
			statsRoutes.GET("/dashboard", r.Stats.Dashboard)
			statsRoutes.GET("/scores", r.Stats.Scores)
			statsRoutes.GET("/agents", r.Stats.Agents, adminOnly)
		}
	}

	if r.Notifications != nil {
		api.GET("/notifications/ws", r.Notifications.Stream, streamJWT)
		notificationRoutes := protected.Group("/notifications")
		{
			notificationRoutes.GET("", r.Notifications.List)
			notificationRoutes.PUT("/read-all", r.Notifications.MarkAllRead)
			notificationRoutes.PUT("/:id", r.Notifications.MarkRead)
			notificationRoutes.DELETE("/:id", r.Notifications.Delete)
		}
	}

	if r.Phone != nil {
		protected.POST("/phone/validate", r.Phone.ValidatePhone)
	}

	if r.Jobs != nil {
		jobRoutes := protected.Group("/admin/jobs", adminOnly)
		{
			jobRoutes.POST("/stale-reminders", r.Jobs.RemindStaleLeads)
			jobRoutes.POST("/purge-notifications", r.Jobs.PurgeNotifications)
		}
	}
}
