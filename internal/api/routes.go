package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Checker-Finance/price-finder/internal/store"
)

// RegisterRoutes mounts every endpoint on app. nc may be nil when publishing is disabled.
func RegisterRoutes(app *fiber.App, nc *nats.Conn, st store.Store, h *Handler, session SessionConfig, service string) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/health", func(c *fiber.Ctx) error {
		checks, ok := runChecks(nc, st)
		status, code := "ok", fiber.StatusOK
		if !ok {
			status, code = "degraded", fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	})

	api := app.Group("/api", SessionMiddleware(session))
	api.Get("/status", func(c *fiber.Ctx) error {
		checks, ok := runChecks(nc, st)
		return c.JSON(fiber.Map{
			"service":   service,
			"healthy":   ok,
			"checks":    checks,
			"timestamp": time.Now().UTC(),
		})
	})
	api.Post("/search", h.Search)
	api.Get("/history", h.ListHistory)
	api.Post("/history", h.AppendHistory)
	api.Delete("/history", h.ClearHistory)
	api.Get("/stats", h.Stats)
}

func runChecks(nc *nats.Conn, st store.Store) (map[string]string, bool) {
	checks := map[string]string{"store": "ok", "nats": "disabled"}
	ok := true

	if nc != nil {
		checks["nats"] = "ok"
		if !nc.IsConnected() {
			checks["nats"] = "disconnected"
			ok = false
		} else if err := nc.FlushTimeout(1 * time.Second); err != nil {
			checks["nats"] = err.Error()
			ok = false
		}
	}

	healthCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := st.HealthCheck(healthCtx); err != nil {
		checks["store"] = err.Error()
		ok = false
	}
	return checks, ok
}
