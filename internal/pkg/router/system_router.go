package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
)

// SystemRouter serves the operational endpoints outside /api.
type SystemRouter struct {
	cfg     *config.Config
	metrics *metrics.Metrics
}

func (h SystemRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	if h.metrics == nil {
		return
	}
	handlers := []fiber.Handler{h.metrics.Handler()}
	if h.cfg.MetricsUser != "" {
		handlers = append([]fiber.Handler{basicauth.New(basicauth.Config{
			Users: map[string]string{
				h.cfg.MetricsUser: h.cfg.MetricsPassword,
			},
		})}, handlers...)
	}
	app.Get("/metrics", handlers...)
}

func NewSystemRouter(cfg *config.Config, m *metrics.Metrics) *SystemRouter {
	return &SystemRouter{cfg: cfg, metrics: m}
}
