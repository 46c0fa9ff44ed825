package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/core/config"
	"storefront/internal/core/logger"

	"github.com/gofiber/contrib/fiberzap/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"

	_ "storefront/docs/swagger"
)

// Server holds the Fiber application and configuration.
type Server struct {
	// App is the main Fiber application instance.
	App *fiber.App
	// cfg holds the application configuration.
	cfg *config.AppConfig
}

// ErrorResponse is the envelope written for errors no handler answered.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RayID   string `json:"ray_id"`
}

// HealthCheck is a named dependency probe reported by GET /health.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// New creates a new Server instance with configured middleware.
func New(cfg *config.AppConfig) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "storefront",
		ErrorHandler:          errorHandler,
	})

	app.Use(requestid.New(requestid.Config{
		Header: "X-Ray-ID",
	}))

	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logger.Get(),
	}))

	app.Use(recover.New())
	app.Use(requestContext(cfg.RequestTimeout()))

	app.Get("/swagger/*", swagger.HandlerDefault)

	return &Server{
		App: app,
		cfg: cfg,
	}
}

// requestContext attaches the ray id logger and the request deadline to the
// user context seen by handlers.
func requestContext(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rayID, _ := c.Locals("requestid").(string)
		ctx := logger.WithRayID(c.UserContext(), rayID)

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	rayID, ok := c.Locals("requestid").(string)
	if !ok {
		rayID = "unknown"
	}

	status := http.StatusInternalServerError
	msg := "Server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		msg = fe.Message
	} else {
		logger.Get().Error("Unhandled request error",
			zap.String("ray_id", rayID),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}

	return c.Status(status).JSON(ErrorResponse{
		Message: msg,
		RayID:   rayID,
	})
}

// RegisterHealth mounts GET /health reporting the result of every check.
func (s *Server) RegisterHealth(checks ...HealthCheck) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		status := http.StatusOK
		results := make(map[string]string, len(checks))

		for _, check := range checks {
			if err := check.Ping(c.UserContext()); err != nil {
				logger.FromContext(c.UserContext()).Warn("Health check failed",
					zap.String("check", check.Name),
					zap.Error(err),
				)
				results[check.Name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[check.Name] = "ok"
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status": overall,
			"checks": results,
		})
	})
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.ServerPort)
	logger.Get().Info("Starting server", zap.String("address", addr))
	return s.App.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}
