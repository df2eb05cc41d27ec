// Package web exposes the verification service over HTTP.
package web

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/teslashibe/go-faceverify/pkg/service"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "face-verification"

// Config holds transport settings.
type Config struct {
	Port           string
	AllowedOrigins []string

	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int

	// AccessLog enables per-request logging.
	AccessLog bool
}

// Server is the HTTP front end.
type Server struct {
	app    *fiber.App
	cfg    Config
	svc    *service.Service
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates the server and registers routes.
func NewServer(svc *service.Service, cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "web")

	app := fiber.New(fiber.Config{
		AppName:               ServiceName,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit(svc.MaxImageBytes()),
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	if cfg.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
		}))
	}
	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: time.Minute,
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Detail: "too many requests"})
			},
		}))
	}

	app.Get("/health", s.handleHealth)
	app.Post("/verify", s.handleVerify)
	app.Post("/verify-file", s.handleVerifyFile)
	app.Post("/anti-spoof", s.handleAntiSpoof)

	s.app = app
	return s
}

// bodyLimit admits a base64 (4/3 expansion) data URL of maxBytes plus JSON or
// multipart framing.
func bodyLimit(maxBytes int64) int {
	const framing = 64 * 1024
	return int(maxBytes*4/3) + framing
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowOrigins:     strings.Join(origins, ","),
		AllowMethods:     "GET,POST",
		AllowHeaders:     "Content-Type,Authorization",
		AllowCredentials: true,
	}
	// fiber refuses credentials with a wildcard origin.
	for _, o := range origins {
		if o == "*" {
			cfg.AllowCredentials = false
		}
	}
	return cfg
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured port. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("listening", "port", s.cfg.Port)
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// handleError renders framework errors (404, 405, panics) as {detail}. A body
// over the transport limit is reported like any other oversized image.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	detail := "internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		detail = fe.Message
		if code == fiber.StatusRequestEntityTooLarge {
			code = fiber.StatusBadRequest
			detail = tooLargeDetail(s.svc.MaxImageBytes())
		}
	} else {
		s.logger.Error("unhandled error", "error", err, "request_id", requestID(c))
	}
	return c.Status(code).JSON(ErrorResponse{Detail: detail})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
		return id
	}
	return ""
}
