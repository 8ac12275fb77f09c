package routes

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/ev-charging-backend/config"
	"github.com/sharath018/ev-charging-backend/database"
	"github.com/sharath018/ev-charging-backend/internal/auditlog"
	"github.com/sharath018/ev-charging-backend/internal/auth"
	"github.com/sharath018/ev-charging-backend/internal/booking"
	"github.com/sharath018/ev-charging-backend/internal/notification"
	"github.com/sharath018/ev-charging-backend/internal/payment"
	"github.com/sharath018/ev-charging-backend/internal/station"
	"github.com/sharath018/ev-charging-backend/internal/vehicle"
	"github.com/sharath018/ev-charging-backend/middleware"
)

// Setup wires repositories, services and handlers onto the router. The
// returned booking service also drives the background sweeper.
func Setup(r *gin.Engine, cfg *config.Config) booking.Service {
	db := database.DB

	// Repositories
	authRepo := auth.NewRepository(db)
	auditRepo := auditlog.NewRepository(db)
	stationRepo := station.NewRepository(db)
	vehicleRepo := vehicle.NewRepository(db)
	bookingRepo := booking.NewRepository(db)
	notificationRepo := notification.NewRepository(db)

	// Services
	authSvc := auth.NewService(authRepo, cfg)
	auditSvc := auditlog.NewService(auditRepo)
	stationSvc := station.NewService(stationRepo)
	matcher := vehicle.NewMatcher(nil) // default connector association table
	vehicleSvc := vehicle.NewService(vehicleRepo, matcher)
	gateway := payment.NewRazorpayGateway(cfg)
	bookingSvc := booking.NewService(
		bookingRepo, stationSvc, vehicleSvc, gateway, auditSvc,
		time.Duration(cfg.CancellationCutoffMins)*time.Minute,
		time.Duration(cfg.BookingLeadMins)*time.Minute,
		time.Duration(cfg.PendingExpiryMins)*time.Minute,
	)
	notificationSvc := notification.NewService(notificationRepo, authRepo, stationRepo)

	// Handlers
	authHandler := auth.NewHandler(authSvc, auditSvc)
	stationHandler := station.NewHandler(stationSvc)
	vehicleHandler := vehicle.NewHandler(vehicleSvc)
	bookingHandler := booking.NewHandler(bookingSvc, stationSvc, booking.NewExporter())
	notificationHandler := notification.NewHandler(notificationSvc)
	auditHandler := auditlog.NewHandler(auditSvc)

	api := r.Group("/api/v1")
	api.Use(middleware.AuditMiddleware())

	// Public auth routes, rate limited against brute force
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimiter(cfg.AuthRateLimitPerMin))
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/forgot-password", authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.GET("/roles", authHandler.GetPublicRoles)
	}

	// Public station discovery
	api.GET("/stations", stationHandler.GetStations)
	api.GET("/stations/:id", stationHandler.GetStationByID)
	api.GET("/stations/:id/availability", bookingHandler.GetAvailability)

	// Everything below requires a valid token
	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(cfg, authSvc))

	authed.POST("/auth/logout", authHandler.Logout)

	// Vehicles (customer garage)
	vehicles := authed.Group("/vehicles")
	vehicles.Use(middleware.RBACMiddleware(middleware.RoleCustomer))
	{
		vehicles.POST("", vehicleHandler.AddVehicle)
		vehicles.GET("", vehicleHandler.GetMyVehicles)
		vehicles.PUT("/:id", vehicleHandler.UpdateVehicle)
		vehicles.DELETE("/:id", vehicleHandler.DeleteVehicle)
	}

	// Compatibility ranking needs the caller's vehicle, so it sits behind auth
	authed.GET("/stations/:id/compatible-chargers",
		middleware.RBACMiddleware(middleware.RoleCustomer),
		bookingHandler.RankChargerTypes)

	// Bookings (customer)
	bookings := authed.Group("/bookings")
	bookings.Use(middleware.RBACMiddleware(middleware.RoleCustomer))
	{
		bookings.POST("", bookingHandler.CreateBooking)
		bookings.GET("", bookingHandler.ListMyBookings)
		bookings.POST("/verify-payment", bookingHandler.VerifyPayment)
		bookings.GET("/:id", bookingHandler.GetBooking)
		bookings.PUT("/:id", bookingHandler.EditBooking)
		bookings.POST("/:id/cancel", bookingHandler.CancelBooking)
		bookings.GET("/:id/receipt", bookingHandler.DownloadReceipt)
	}

	// Station operations dashboard
	stationOps := authed.Group("/stations/:id")
	stationOps.Use(
		middleware.RBACMiddleware(middleware.RoleSuperAdmin, middleware.RoleFranchiseOwner, middleware.RoleStationManager),
		middleware.RequireStationAccess(),
	)
	{
		stationOps.GET("/bookings", bookingHandler.ListStationBookings)
		stationOps.GET("/bookings/summary", bookingHandler.GetStationDashboard)
		stationOps.GET("/bookings/export", bookingHandler.ExportStationBookings)
	}

	// Franchise owner's station list
	authed.GET("/my-stations",
		middleware.RBACMiddleware(middleware.RoleFranchiseOwner),
		stationHandler.GetMyStations)

	// Notifications
	notifications := authed.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
	}

	// Audit log review (superadmin)
	audit := authed.Group("/auditlogs")
	audit.Use(middleware.RBACMiddleware(middleware.RoleSuperAdmin))
	{
		audit.GET("", auditHandler.GetAuditLogs)
		audit.GET("/stats", auditHandler.GetAuditLogStats)
		audit.GET("/:id", auditHandler.GetAuditLogByID)
	}

	return bookingSvc
}
