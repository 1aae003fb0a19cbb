package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/gravadigital/billetterie-api/internal/config"
	"github.com/gravadigital/billetterie-api/internal/handlers"
	"github.com/gravadigital/billetterie-api/internal/logger"
	"github.com/gravadigital/billetterie-api/internal/middleware/requestlog"
	"github.com/gravadigital/billetterie-api/internal/storage/repository"
)

// Handlers groups the HTTP handlers mounted by the server
type Handlers struct {
	Events        *handlers.EventHandler
	Bookers       *handlers.BookerHandler
	Registrations *handlers.RegistrationHandler
	CheckIns      *handlers.CheckInHandler
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	config     *config.Config
	store      repository.Container
	handlers   Handlers
}

// New creates a new server instance
func New(cfg *config.Config, store repository.Container, h Handlers) *Server {
	s := &Server{
		config:   cfg,
		store:    store,
		handlers: h,
	}
	s.httpServer = &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: s.Router(),

		// Timeouts seguros según estándares de Go
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start starts the HTTP server. After Stop it returns nil right away.
func (s *Server) Start() error {
	logger.Get().Info("Starting HTTP server", "port", s.config.Server.Port)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	logger.Get().Info("Shutting down HTTP server...")

	return s.httpServer.Shutdown(ctx)
}

// Router configures the HTTP router with middleware and routes
func (s *Server) Router() *gin.Engine {
	// Configurar Gin
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if s.config.Server.GinMode != "" {
		gin.SetMode(s.config.Server.GinMode)
	}

	router := gin.New()

	// Middleware básico
	router.Use(requestlog.New())
	router.Use(gin.Recovery())
	router.Use(cors.New(s.corsConfig()))

	router.GET("/ping", s.ping)
	router.GET("/img/event/:file", s.handlers.Events.GetImage)

	s.setupAPIRoutes(router)

	return router
}

func (s *Server) corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	origins := config.SplitList(s.config.CORS.AllowOrigins)
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	if methods := config.SplitList(s.config.CORS.AllowMethods); len(methods) > 0 {
		corsConfig.AllowMethods = methods
	}
	if headers := config.SplitList(s.config.CORS.AllowHeaders); len(headers) > 0 {
		corsConfig.AllowHeaders = headers
	}
	corsConfig.ExposeHeaders = []string{requestlog.HeaderRequestID}
	return corsConfig
}

// ping reports liveness together with the storage health
func (s *Server) ping(c *gin.Context) {
	if err := s.store.Health(); err != nil {
		logger.HTTP().Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"message": "Billetterie API storage unavailable",
			"status":  "unhealthy",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Billetterie API is running",
		"status":  "healthy",
	})
}

// setupAPIRoutes configures all API routes
func (s *Server) setupAPIRoutes(router *gin.Engine) {
	h := s.handlers

	api := router.Group("/api")
	{
		bookers := api.Group("/bookers")
		{
			bookers.POST("", h.Bookers.SignUp)
			bookers.POST("/check-returning", h.Bookers.CheckReturning)
		}

		api.GET("/bookings/:signature", h.Bookers.Booking)

		events := api.Group("/events")
		{
			events.GET("/active", h.Events.GetActiveEvent)
			events.POST("/:id/registrations", h.Registrations.RegisterParticipants)
		}

		activities := api.Group("/activities")
		{
			activities.POST("/:activityId/participants", h.Registrations.RegisterParticipant)
			activities.DELETE("/:activityId/participants", h.Registrations.RemoveParticipant)
		}

		admin := api.Group("/admin")
		{
			adminEvents := admin.Group("/events")
			{
				adminEvents.GET("", h.Events.GetAllEvents)
				adminEvents.POST("", h.Events.CreateEvent)
				adminEvents.GET("/:id", h.Events.GetEvent)
				adminEvents.PUT("/:id", h.Events.UpdateEvent)
				adminEvents.DELETE("/:id", h.Events.DeleteEvent)
				adminEvents.POST("/:id/activate", h.Events.ActivateEvent)
				adminEvents.GET("/:id/status", h.Events.GetEventStatus)
				adminEvents.POST("/:id/image", h.Events.UploadImage)

				adminEvents.POST("/:id/activities", h.Events.CreateActivity)
				adminEvents.GET("/:id/activities/:activityId", h.Events.GetActivity)
				adminEvents.PUT("/:id/activities/:activityId", h.Events.UpdateActivity)
				adminEvents.DELETE("/:id/activities/:activityId", h.Events.DeleteActivity)
			}

			admin.DELETE("/activities/:activityId/participants/:participantId", h.Registrations.RemoveRegistration)
			admin.PUT("/checkin", h.CheckIns.CheckIn)
			admin.GET("/bookings/:signature", h.Bookers.CheckInSheet)

			adminBookers := admin.Group("/bookers")
			{
				adminBookers.GET("", h.Bookers.ListBookers)
				adminBookers.POST("", h.Bookers.AddBooker)
				adminBookers.GET("/:email", h.Bookers.GetBooker)
				adminBookers.PUT("/:email", h.Bookers.UpdateBooker)
			}
		}
	}
}
