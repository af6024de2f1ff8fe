package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	flog "github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/hfactor/hfactor-site/app/controllers"
	"github.com/hfactor/hfactor-site/internal/pkg/backend"
	"github.com/hfactor/hfactor-site/internal/pkg/billing"
	"github.com/hfactor/hfactor-site/internal/pkg/catalog"
	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/env"
	"github.com/hfactor/hfactor-site/internal/pkg/hcaptcha"
	"github.com/hfactor/hfactor-site/internal/pkg/kv"
	"github.com/hfactor/hfactor-site/internal/pkg/mail"
	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
	"github.com/hfactor/hfactor-site/internal/pkg/router"
)

const openAPIFile = "docs/openapi.yml"

func main() {
	env.SetupEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, dispatcher, err := NewApplication(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		<-ctx.Done()
		flog.Infof("[Server] Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			flog.Errorf("[Server] Shutdown error: %v", err)
		}
	}()

	if err := app.Listen(cfg.ListenAddr()); err != nil {
		log.Fatal(err)
	}

	// Let in-flight webhook side effects finish before exiting.
	dispatcher.Wait()
}

func NewApplication(ctx context.Context, cfg *config.Config) (*fiber.App, *billing.Dispatcher, error) {
	m := metrics.New()

	subscriptions, err := kv.Open(ctx, "subscriptions", cfg.SubscriptionsStore, cfg)
	if err != nil {
		return nil, nil, err
	}
	contacts, err := kv.Open(ctx, "contact", cfg.ContactStore, cfg)
	if err != nil {
		return nil, nil, err
	}
	sender := mail.NewSenderFromConfig(cfg)

	// webhook side
	handlers := billing.NewHandlers(cfg)
	handlers.Notifier = sender
	handlers.Subscriptions = subscriptions
	handlers.Metrics = m
	if fwd := backend.NewForwarderFromConfig(cfg); fwd != nil {
		handlers.Forwarder = fwd
	}
	dispatcher := billing.NewDispatcher(m, cfg.DispatchTimeout)
	handlers.Register(dispatcher)

	// catalog side
	shaper := &catalog.Shaper{
		Client:          billing.NewStripeClientFromConfig(cfg),
		DefaultCurrency: cfg.DefaultCurrency,
		Concurrency:     cfg.PriceFetchConcurrency,
		Metrics:         m,
	}

	// contact side
	contact := controllers.NewContactController(cfg)
	contact.Mailer = sender
	contact.Store = contacts
	contact.Metrics = m
	if v := hcaptcha.NewVerifierFromConfig(cfg); v != nil {
		contact.Captcha = v
	}

	app := fiber.New(fiber.Config{
		AppName:      "hfactor-site",
		BodyLimit:    1 << 20,
		ErrorHandler: controllers.ErrorHandler,

		ProxyHeader:             proxyHeader(cfg),
		EnableTrustedProxyCheck: cfg.TrustProxy(),
		TrustedProxies:          cfg.TrustedProxies,
	})

	// recovery and logging
	app.Use(recover.New(), requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}), m.Middleware())

	// SWAGGER / OPENAPI
	if _, err := os.Stat(openAPIFile); err == nil {
		app.Use(swagger.New(swagger.Config{
			BasePath: "/docs/",
			FilePath: openAPIFile,
			Path:     "api",
		}))
	}

	// ROUTER
	router.InstallRouter(app,
		router.NewSystemRouter(cfg, m),
		router.NewApiRouter(cfg,
			controllers.NewWebhookController(cfg, dispatcher),
			controllers.NewProductsController(cfg, shaper, m),
			contact,
			router.NewLimiterStorage(cfg),
		),
	)

	flog.Infof("[Server] Products mode %s, async dispatch %t", cfg.ProductsMode, cfg.WebhookAsyncDispatch)
	return app, dispatcher, nil
}

// proxyHeader is empty unless the proxies sending it are pinned, so c.IP()
// never comes from a header a client can set directly.
func proxyHeader(cfg *config.Config) string {
	if !cfg.TrustProxy() {
		return ""
	}
	return cfg.ProxyHeader
}
