// Package server provides the HTTP liveness endpoint that hosting platforms
// poll to decide whether the process is alive.
package server

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// HealthServer answers liveness probes. It shares nothing with the bot.
type HealthServer struct {
	app     *fiber.App
	started time.Time
}

// healthResponse is the body of GET /healthz.
type healthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// NewHealthServer creates the liveness app.
func NewHealthServer() *HealthServer {
	s := &HealthServer{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			AppName:               "omikuji-bot",
			JSONEncoder:           json.Marshal,
			JSONDecoder:           json.Unmarshal,
		}),
		started: time.Now(),
	}

	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(healthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(s.started).Seconds()),
		})
	})

	return s
}

// App returns the underlying fiber app.
func (s *HealthServer) App() *fiber.App {
	return s.app
}

// Start listens on addr until Shutdown is called.
func (s *HealthServer) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("Health endpoint listening")
	return s.app.Listen(addr)
}

// Shutdown stops the listener, waiting at most until ctx is done.
func (s *HealthServer) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
