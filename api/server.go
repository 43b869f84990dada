package api

import (
	"time"

	"github.com/CristiGvl/picoCoreTemp/internal/cpu"
	"github.com/CristiGvl/picoCoreTemp/internal/platform"
	"github.com/CristiGvl/picoCoreTemp/internal/system"
	"github.com/CristiGvl/picoCoreTemp/internal/temps"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// Telemetry is the gathered CPU tree the API serves
type Telemetry interface {
	State() system.State
	Cpus() []*cpu.Cpu
	Cpu(pkg uint32) (*cpu.Cpu, error)
	PackageTemperature(pkg uint32) (float64, error)
	CoreTemperatures(pkg uint32) ([]system.CoreTemperature, error)
}

// Server represents the API server
type Server struct {
	app         *fiber.App
	telemetry   Telemetry
	tempsReader temps.Reader
	host        platform.Host
}

// Option configures a Server
type Option func(*Server)

// WithoutRequestLog disables the request logger middleware
func WithoutRequestLog() Option {
	return func(s *Server) { s.app = newApp(false) }
}

// NewServer creates a new API server serving t, with sensors as the OS
// reference sensors
func NewServer(t Telemetry, sensors temps.Reader, opts ...Option) *Server {
	server := &Server{
		app:         newApp(true),
		telemetry:   t,
		tempsReader: sensors,
		host:        platform.HostCPU(),
	}
	for _, opt := range opts {
		opt(server)
	}

	server.setupRoutes()
	return server
}

func newApp(requestLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ServerHeader: "picoCoreTemp",
		AppName:      "picoCoreTemp v1.0",
	})

	// Middleware
	if requestLog {
		app.Use(logger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "*",
		MaxAge:       86400, // 24 hours
	}))
	return app
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.app.Group("/api")

	// Topology and register telemetry
	api.Get("/cpus", s.getCpus)
	api.Get("/cpus/:package", s.getCpu)
	api.Get("/cpus/:package/temperature", s.getPackageTemperature)
	api.Get("/cpus/:package/cores", s.getCoreTemperatures)

	// OS reference sensors
	api.Get("/sensors", s.getSensors)

	// Health check
	api.Get("/health", s.healthCheck)
}

// Start starts the API server
func (s *Server) Start(address string) error {
	return s.app.Listen(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Health check endpoint
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"platform":  platform.GetOS(),
		"host":      s.host,
		"telemetry": s.host.HasTelemetry(),
		"state":     s.telemetry.State().String(),
		"packages":  len(s.telemetry.Cpus()),
		"timestamp": time.Now().Unix(),
	})
}
