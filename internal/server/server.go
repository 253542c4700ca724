// Package server exposes the booking engine over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "courtbook/docs" // swagger docs
	"courtbook/internal/cache"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/middleware"
	"courtbook/internal/models"
	"courtbook/internal/repository"
	"courtbook/internal/service"
	"courtbook/internal/worker"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	booking        *service.BookingService
	sweeper        *worker.SanctionSweeper
}

// NewServer creates a new server instance, connecting to the database and Redis.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	redisClient := cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil; caching and rate limiting are then disabled.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)
	models.SetErrorDetail(!cfg.IsProduction())

	booking := service.NewBookingService(
		repository.NewUnitOfWork(db, cfg.DBTxIsolation),
		service.Options{
			Location: cfg.Location(),
			Stacking: cfg.SanctionStacking,
			Cache:    cache.NewAvailability(redisClient, cfg.AvailabilityCacheTTL()),
		},
	)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("courtbook-api"),
		booking:        booking,
		sweeper:        worker.NewSanctionSweeper(booking, cfg.SanctionSweepInterval()),
	}, nil
}

// App builds the fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "Courtbook API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.Response{Message: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.OptionalAuth)
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.Response{
				Message: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Public reads
	venues := api.Group("/venues")
	venues.Get("/", s.ListVenues)
	venues.Get("/:id/availability", s.GetAvailability)
	venues.Get("/:id", s.GetVenue)
	api.Get("/users/:id/block-status", s.CheckBlocked)

	protected := api.Group("", middleware.AuthRequired)

	adminVenues := protected.Group("/venues")
	adminVenues.Post("/", s.CreateVenue)
	adminVenues.Put("/:id", s.UpdateVenue)
	adminVenues.Delete("/:id", s.DeleteVenue)

	slots := protected.Group("/slots")
	slots.Post("/", s.CreateSlot)
	slots.Patch("/:id", s.UpdateSlot)
	slots.Delete("/:id", s.DeleteSlot)

	reservations := protected.Group("/reservations")
	reservations.Post("/", middleware.RateLimit(s.redis, 20, time.Minute, "create_reservation"), s.CreateReservation)
	reservations.Get("/", s.ListReservations)
	reservations.Post("/:id/cancel", s.CancelReservation)
	reservations.Post("/:id/confirm", s.ConfirmReservation)
	reservations.Post("/:id/complete", s.CompleteReservation)
	reservations.Get("/:id", s.GetReservation)

	sanctions := protected.Group("/sanctions")
	sanctions.Post("/", s.CreateSanction)
	sanctions.Get("/active", s.ListActiveSanctions)
	sanctions.Get("/users/:userId", s.ListUserSanctions)
	sanctions.Post("/:id/lift", s.LiftSanction)

	protected.Delete("/users/:id", s.DeleteUser)
}

// LivenessCheck reports whether the process is up
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional: a
// server started without it is ready but reports the cache as unavailable.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start runs the sanction sweeper and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()
	go s.sweeper.Start(s.shutdownCtx)

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
