// Package httpapi exposes the three operator/collaborator-facing HTTP
// endpoints (enqueue, poll, health) plus a /metrics text endpoint over a
// Fiber app, request logging and
// metrics wired the way the teacher's internal/http/router.go does it.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"venuecrawl/internal/config"
	"venuecrawl/internal/metrics"
	"venuecrawl/internal/store"
)

// Server wraps a configured Fiber app and its dependencies.
type Server struct {
	app    *fiber.App
	config *config.Config
	store  *store.Store
	logger *slog.Logger
}

// NewServer builds the Fiber app, wiring request-scoped locals, the
// logging/metrics middleware, the three spec'd routes and GET /metrics.
func NewServer(cfg *config.Config, st *store.Store, logger *slog.Logger) *Server {
	app := fiber.New()

	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("store", st)
		return c.Next()
	})

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	app.Post("/scrape", scrapeHandler)
	app.Get("/scrape/:job_id", scrapeStatusHandler)
	app.Get("/health", healthHandler(cfg, st))
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	return &Server{app: app, config: cfg, store: st, logger: logger}
}

// Listen starts the server, blocking until it stops or errors.
func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.app.Listen(addr)
}

// App exposes the underlying Fiber app, for tests that drive it directly.
func (s *Server) App() *fiber.App {
	return s.app
}

func healthHandler(cfg *config.Config, st *store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()

		dbStatus := "ok"
		if err := st.DB.PingContext(ctx); err != nil {
			dbStatus = "error"
		}

		depth, err := st.QueueDepth(ctx)
		if err != nil {
			depth = map[string]int64{}
		}
		for state, n := range depth {
			metrics.SetQueueDepth(state, n)
		}

		var queued int64
		for _, n := range depth {
			queued += n
		}

		ok := dbStatus == "ok"
		return c.JSON(fiber.Map{
			"ok":          ok,
			"db":          dbStatus,
			"queue_depth": queued,
			"version":     version,
		})
	}
}

// version identifies the running build in the health response; overridden
// at link time in a real deployment (-ldflags "-X ...version=...").
var version = "dev"
