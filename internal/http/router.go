package api

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"

	intconfig "loadmatch/internal/config"
	"loadmatch/internal/domain"
	h "loadmatch/internal/http/handlers"
	"loadmatch/internal/http/middleware"
	"loadmatch/internal/utils"
)

func NewRouter(env intconfig.Env, a h.API) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Logger().Sugar().Warnw("failed to set trusted proxies", "error", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", a.Health)
		api.GET("/db-check", a.DBCheck)

		// Auth
		auth := api.Group("/auth")
		auth.POST("/signup", a.Signup)
		auth.POST("/token", a.Login)

		secured := api.Group("", middleware.Auth(a.Auth))

		// Users
		users := secured.Group("/users")
		users.GET("/me", a.Me)
		users.PUT("/me", a.UpdateMe)

		// Vehicles
		vehicles := secured.Group("/vehicles", middleware.RequireRoles(domain.RoleOwner, domain.RoleAdmin))
		vehicles.POST("", a.CreateVehicle)
		vehicles.GET("", a.ListVehicles)
		vehicles.GET("/:id", a.GetVehicle)

		// Trips
		trips := secured.Group("/trips")
		trips.POST("", a.CreateTrip)
		trips.GET("", a.SearchTrips)
		trips.GET("/mine", a.MyTrips)
		trips.GET("/:id", a.GetTrip)
		trips.PUT("/:id/depart", a.DepartTrip)
		trips.GET("/:id/bookings", a.TripBookings)

		// Bookings
		bookings := secured.Group("/bookings")
		bookings.POST("", a.CreateBooking)
		bookings.GET("", a.ListBookings)
		bookings.GET("/:id", a.GetBooking)
		bookings.PUT("/:id/accept", a.AcceptBooking)
		bookings.PUT("/:id/reject", a.RejectBooking)
		bookings.PUT("/:id/cancel", a.CancelBooking)
		bookings.PUT("/:id/status", a.DecideBooking)
		bookings.GET("/:id/confirmation", a.BookingConfirmationPDF)

		// Notifications
		notifications := secured.Group("/notifications")
		notifications.GET("", a.ListNotifications)
		notifications.GET("/unread-count", a.UnreadCount)
		notifications.GET("/stream", a.StreamNotifications)
		notifications.PUT("/read-all", a.MarkAllNotificationsRead)
		notifications.PUT("/:id/read", a.MarkNotificationRead)

		// Admin
		admin := secured.Group("/admin", middleware.RequireRoles(domain.RoleAdmin))
		admin.GET("/users", a.AdminListUsers)
		admin.GET("/stats", a.AdminStats)
		admin.PUT("/users/:id/verify", a.AdminVerifyUser)
		admin.DELETE("/users/:id", a.AdminDeleteUser)
	}

	return r
}
