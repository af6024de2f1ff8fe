package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hfactor/hfactor-site/internal/pkg/catalog"
	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
)

const catalogCacheControl = "public, max-age=300"

// ProductsController serves the pricing page catalog.
type ProductsController struct {
	cfg     *config.Config
	shaper  *catalog.Shaper
	metrics *metrics.Metrics
}

func NewProductsController(cfg *config.Config, shaper *catalog.Shaper, m *metrics.Metrics) *ProductsController {
	return &ProductsController{cfg: cfg, shaper: shaper, metrics: m}
}

// HandleGetProducts returns the catalog in tiered or plans mode. The mode
// comes from ?mode= and falls back to PRODUCTS_MODE.
func (pc *ProductsController) HandleGetProducts(c *fiber.Ctx) error {
	mode := pc.resolveMode(c.Query("mode"))

	if pc.cfg.StripeSecretKey == "" {
		pc.metrics.CatalogRequest(mode, "not_configured")
		return jsonError(c, fiber.StatusInternalServerError, "Stripe API key not configured")
	}

	entries, err := pc.shaper.Entries(c.UserContext())
	if err != nil {
		if errors.Is(err, catalog.ErrNotConfigured) {
			pc.metrics.CatalogRequest(mode, "not_configured")
			return jsonError(c, fiber.StatusInternalServerError, "Stripe API key not configured")
		}
		log.Errorf("[Catalog] Stripe products fetch error: %v", err)
		pc.metrics.CatalogRequest(mode, "upstream_error")
		return jsonError(c, fiber.StatusInternalServerError, "Failed to fetch products from Stripe")
	}

	pc.metrics.CatalogRequest(mode, "ok")
	c.Set(fiber.HeaderCacheControl, catalogCacheControl)

	if mode == config.ProductsModePlans {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success":  true,
			"products": catalog.Plans(entries),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"pricing": catalog.Tiered(entries, pc.cfg.DefaultCurrency),
	})
}

func (pc *ProductsController) resolveMode(requested string) string {
	switch m := strings.ToLower(strings.TrimSpace(requested)); m {
	case config.ProductsModeTiered, config.ProductsModePlans:
		return m
	}
	if pc.cfg.ProductsMode == config.ProductsModePlans {
		return config.ProductsModePlans
	}
	return config.ProductsModeTiered
}
