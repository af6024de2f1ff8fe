package controllers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/hfactor/hfactor-site/internal/pkg/billing"
	"github.com/hfactor/hfactor-site/internal/pkg/config"
)

// WebhookController receives Stripe deliveries.
type WebhookController struct {
	cfg        *config.Config
	dispatcher *billing.Dispatcher
	Now        func() time.Time
}

func NewWebhookController(cfg *config.Config, dispatcher *billing.Dispatcher) *WebhookController {
	return &WebhookController{cfg: cfg, dispatcher: dispatcher, Now: time.Now}
}

// HandleStripeWebhook verifies the delivery and hands the event to the
// dispatcher. Once the signature is valid the provider gets 200 regardless of
// how the side effects fare.
func (wc *WebhookController) HandleStripeWebhook(c *fiber.Ctx) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Webhook] Webhook processing error: %v", r)
			err = jsonError(c, fiber.StatusInternalServerError, "Webhook processing failed")
		}
	}()

	payload := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get(billing.SignatureHeaderName))
	if signature == "" {
		return jsonError(c, fiber.StatusBadRequest, "No signature provided")
	}

	if wc.cfg.StripeWebhookSecret == "" {
		log.Errorf("[Webhook] STRIPE_WEBHOOK_SECRET not configured")
		return jsonError(c, fiber.StatusInternalServerError, "Webhook secret not configured")
	}

	if !billing.VerifyStripeWebhookSignatureWithTolerance(payload, signature, wc.cfg.StripeWebhookSecret, wc.Now(), wc.cfg.StripeWebhookTolerance) {
		log.Warnf("[Webhook] Webhook signature verification failed")
		return jsonError(c, fiber.StatusUnauthorized, "Invalid signature")
	}

	event, err := billing.ParseEvent(payload)
	if err != nil {
		log.Errorf("[Webhook] Webhook processing error: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "Webhook processing failed")
	}

	if wc.cfg.WebhookAsyncDispatch {
		wc.dispatcher.DispatchAsync(c.UserContext(), event)
	} else if err := wc.dispatcher.Dispatch(c.UserContext(), event); err != nil {
		log.Errorf("[Webhook] Webhook processing error: %v", fmt.Errorf("event %s: %w", event.ID, err))
		return jsonError(c, fiber.StatusInternalServerError, "Webhook processing failed")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}
