package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/hfactor/hfactor-site/app/controllers"
	"github.com/hfactor/hfactor-site/internal/pkg/config"
)

type ApiRouter struct {
	cfg            *config.Config
	webhook        *controllers.WebhookController
	products       *controllers.ProductsController
	contact        *controllers.ContactController
	limiterStorage fiber.Storage
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", controllers.AllowAnyOrigin)

	// The stripe-* paths are kept for older site builds.
	for _, path := range []string{"/products", "/stripe-products"} {
		api.Get(path, h.products.HandleGetProducts)
		api.Options(path, controllers.Preflight(controllers.MethodsGet, controllers.HeadersDefault))
	}

	for _, path := range []string{"/webhook", "/stripe-webhook"} {
		api.Post(path, h.webhook.HandleStripeWebhook)
		api.Options(path, controllers.Preflight(controllers.MethodsPost, controllers.HeadersWebhook))
	}

	contact := []fiber.Handler{h.contact.HandleContact}
	if h.cfg.ContactRateLimit > 0 {
		contact = append([]fiber.Handler{h.contactLimiter()}, contact...)
	}
	api.Post("/contact", contact...)
	api.Options("/contact", controllers.Preflight(controllers.MethodsPost, controllers.HeadersDefault))
}

func (h ApiRouter) contactLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:          h.cfg.ContactRateLimit,
		Expiration:   time.Minute,
		Storage:      h.limiterStorage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many requests",
			})
		},
	})
}

func NewApiRouter(cfg *config.Config, webhook *controllers.WebhookController, products *controllers.ProductsController, contact *controllers.ContactController, limiterStorage fiber.Storage) *ApiRouter {
	return &ApiRouter{
		cfg:            cfg,
		webhook:        webhook,
		products:       products,
		contact:        contact,
		limiterStorage: limiterStorage,
	}
}
