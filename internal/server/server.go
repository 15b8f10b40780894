// Package server exposes the extraction pipeline over HTTP.
package server

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/verifactura/verifactura/internal/async"
	"github.com/verifactura/verifactura/internal/classify"
	"github.com/verifactura/verifactura/internal/common"
	"github.com/verifactura/verifactura/internal/export"
	"github.com/verifactura/verifactura/internal/repository"
)

type Server struct {
	app        *fiber.App
	cfg        common.ServerConfig
	svc        *ExtractionService
	queue      async.Queue
	jobs       repository.JobRepository
	classifier classify.Classifier
	export     *export.Service
	db         *repository.DB
	logger     *slog.Logger
}

func New(
	cfg common.ServerConfig,
	svc *ExtractionService,
	queue async.Queue,
	jobs repository.JobRepository,
	classifier classify.Classifier,
	exportSvc *export.Service,
	db *repository.DB,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	app := fiber.New(fiber.Config{
		ServerHeader:          "Verifactura",
		AppName:               "verifactura",
		BodyLimit:             cfg.BodyLimit,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(requestid.New())
	// mirror the request id into the user context so layers below the
	// handlers can log it
	app.Use(func(c *fiber.Ctx) error {
		if rid, ok := c.Locals(requestid.ConfigDefault.ContextKey).(string); ok {
			c.SetUserContext(common.WithRequestID(c.UserContext(), rid))
		}
		return c.Next()
	})

	s := &Server{
		app:        app,
		cfg:        cfg,
		svc:        svc,
		queue:      queue,
		jobs:       jobs,
		classifier: classifier,
		export:     exportSvc,
		db:         db,
		logger:     logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", s.handleHealth)
	s.app.Post("/extract", s.handleExtract)
	s.app.Post("/predictions", s.handlePredict)
	s.app.Get("/jobs/:id", s.handleGetJob)
	s.app.Get("/export.xlsx", s.handleExport)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen() error {
	s.logger.Info("http server listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.app.ShutdownWithContext(ctx)
}
