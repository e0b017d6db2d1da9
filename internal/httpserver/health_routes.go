package httpserver

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ncecere/readaloud/internal/app"
)

// registerHealthRoutes reports redis reachability live and the collaborator
// probes from the last monitor cycle. It answers 200 even when degraded.
func registerHealthRoutes(router fiber.Router, container *app.Container) {
	router.Get("/healthz", func(c *fiber.Ctx) error {
		checks := make(map[string]fiber.Map)
		overall := "ok"
		degrade := func(name string, check fiber.Map, err string) {
			check["status"] = "error"
			check["error"] = err
			checks[name] = check
			overall = "degraded"
		}

		if container.Redis != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			start := time.Now()
			err := container.Redis.Ping(ctx).Err()
			cancel()
			check := fiber.Map{"status": "ok", "latency_ms": time.Since(start).Milliseconds()}
			checks["redis"] = check
			if err != nil {
				degrade("redis", check, err.Error())
			}
		}

		for _, status := range container.HealthMon.Snapshot() {
			check := fiber.Map{"status": "ok", "checked_at": status.CheckedAt, "latency": status.Latency}
			checks[status.Name] = check
			if !status.Healthy {
				degrade(status.Name, check, status.Error)
			}
		}

		return c.JSON(fiber.Map{"status": overall, "checks": checks})
	})
}
