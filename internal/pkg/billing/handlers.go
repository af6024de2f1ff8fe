package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"

	"github.com/hfactor/hfactor-site/app/models"
	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/kv"
	"github.com/hfactor/hfactor-site/internal/pkg/mail"
	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
)

const (
	adminTimeLayout = "02/01/2006, 15:04:05"

	trialReminderDays = 3
	millisPerDay      = 24 * 60 * 60 * 1000
)

// SubscriptionForwarder relays a new subscription to the customer backend.
type SubscriptionForwarder interface {
	ForwardSubscription(ctx context.Context, record any) error
}

// Handlers holds the per-event-type reactions. Nil collaborators turn the
// matching actions into skipped results.
type Handlers struct {
	Notifier      mail.Sender
	Forwarder     SubscriptionForwarder
	Subscriptions kv.Store
	Reminder      TrialReminder
	Clock         Clock
	Metrics       *metrics.Metrics

	cfg *config.Config
}

func NewHandlers(cfg *config.Config) *Handlers {
	return &Handlers{
		Reminder: LogTrialReminder{},
		Clock:    time.Now,
		cfg:      cfg,
	}
}

// Register installs every handled event type on d.
func (h *Handlers) Register(d *Dispatcher) {
	d.Register(stripe.EventTypeCheckoutSessionCompleted, h.CheckoutCompleted)
	d.Register(stripe.EventTypeCustomerSubscriptionCreated, h.SubscriptionCreated)
	d.Register(stripe.EventTypeCustomerSubscriptionUpdated, h.SubscriptionUpdated)
	d.Register(stripe.EventTypeCustomerSubscriptionDeleted, h.SubscriptionDeleted)
	d.Register(stripe.EventTypeInvoicePaid, h.InvoicePaid)
	d.Register(stripe.EventTypeInvoicePaymentFailed, h.InvoicePaymentFailed)
}

func (h *Handlers) CheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	session, err := decodeObject[CheckoutSession](event)
	if err != nil {
		return err
	}
	log.Infof("[Webhook] Processing checkout completed: %s", session.ID)

	record := h.subscriptionRecord(session)
	h.run(ctx, event,
		action{name: "backend_forward", run: func(ctx context.Context) error {
			if h.Forwarder == nil {
				return skip("backend not configured")
			}
			return h.Forwarder.ForwardSubscription(ctx, record)
		}},
		h.adminEmail("🎉 New Subscription: "+record.CustomerEmail, h.checkoutEmailText(record)),
		action{name: "store_subscription", run: func(ctx context.Context) error {
			if h.Subscriptions == nil {
				return skip("subscriptions store not configured")
			}
			return kv.PutJSON(ctx, h.Subscriptions, record.StoreKey(), record, record.StoreMetadata())
		}},
	)
	log.Infof("[Webhook] Checkout completed processing finished: %s", session.ID)
	return nil
}

func (h *Handlers) subscriptionRecord(session *CheckoutSession) *models.SubscriptionRecord {
	planName := session.Metadata["planName"]
	if planName == "" {
		planName = models.UnknownPlanName
	}
	planKey := session.Metadata["planKey"]
	if planKey == "" {
		planKey = models.UnknownPlanKey
	}
	return &models.SubscriptionRecord{
		SessionID:        session.ID,
		CustomerID:       session.Customer,
		SubscriptionID:   session.Subscription,
		CustomerEmail:    session.CustomerEmail,
		PlanName:         planName,
		PlanKey:          planKey,
		IsHoldingCompany: session.Metadata["isHoldingCompany"] == "true",
		Status:           models.SubscriptionStatusActive,
		Timestamp:        models.FormatISOTime(h.now()),
	}
}

func (h *Handlers) checkoutEmailText(r *models.SubscriptionRecord) string {
	customerType := fmt.Sprintf("Single Company (%d-day trial)", r.TrialDays())
	if r.IsHoldingCompany {
		customerType = fmt.Sprintf("Holding Company (%d-day trial)", r.TrialDays())
	}

	var b strings.Builder
	b.WriteString("New Subscription Received!\n\n")
	fmt.Fprintf(&b, "Customer Email: %s\n", r.CustomerEmail)
	fmt.Fprintf(&b, "Plan: %s\n", r.PlanName)
	fmt.Fprintf(&b, "Plan Key: %s\n", r.PlanKey)
	fmt.Fprintf(&b, "Customer Type: %s\n\n", customerType)
	b.WriteString("Stripe Details:\n")
	fmt.Fprintf(&b, "- Customer ID: %s\n", r.CustomerID)
	fmt.Fprintf(&b, "- Subscription ID: %s\n", r.SubscriptionID)
	fmt.Fprintf(&b, "- Session ID: %s\n\n", r.SessionID)
	b.WriteString("Action Required:\n")
	b.WriteString("Please set up this customer's account and send them login credentials at:\n")
	b.WriteString(h.cfg.AccountSetupURL + "\n\n")
	fmt.Fprintf(&b, "Time: %s\n", h.adminTime())
	return b.String()
}

func (h *Handlers) SubscriptionCreated(ctx context.Context, event *stripe.Event) error {
	sub, err := decodeObject[Subscription](event)
	if err != nil {
		return err
	}
	log.Infof("[Webhook] Subscription created: %s", sub.ID)

	record := &models.SubscriptionCreatedRecord{
		SubscriptionID:   sub.ID,
		CustomerID:       sub.Customer,
		Status:           sub.Status,
		TrialEnd:         models.EpochToISO(sub.TrialEnd),
		CurrentPeriodEnd: models.EpochToISO(sub.PeriodEnd()),
		Timestamp:        models.FormatISOTime(h.now()),
	}
	h.run(ctx, event, action{name: "store_subscription_created", run: func(ctx context.Context) error {
		if h.Subscriptions == nil {
			return skip("subscriptions store not configured")
		}
		return kv.PutJSON(ctx, h.Subscriptions, record.StoreKey(), record, nil)
	}})
	return nil
}

func (h *Handlers) SubscriptionUpdated(ctx context.Context, event *stripe.Event) error {
	sub, err := decodeObject[Subscription](event)
	if err != nil {
		return err
	}
	log.Infof("[Webhook] Subscription updated: %s Status: %s", sub.ID, sub.Status)

	var actions []action
	if sub.TrialEnd != 0 {
		if days := DaysUntil(sub.TrialEnd, h.now()); days == trialReminderDays {
			log.Infof("[Webhook] Trial ending soon for %s", sub.ID)
			actions = append(actions, action{name: "trial_reminder", run: func(ctx context.Context) error {
				reminder := h.Reminder
				if reminder == nil {
					reminder = LogTrialReminder{}
				}
				return reminder.RemindTrialEnding(ctx, sub, days)
			}})
		}
	}
	h.run(ctx, event, actions...)
	return nil
}

// DaysUntil returns ceil((epochSec*1000 - now ms) / one day).
func DaysUntil(epochSec int64, now time.Time) int {
	diff := epochSec*1000 - now.UnixMilli()
	return int(math.Ceil(float64(diff) / millisPerDay))
}

func (h *Handlers) SubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	sub, err := decodeObject[Subscription](event)
	if err != nil {
		return err
	}
	log.Infof("[Webhook] Subscription cancelled: %s", sub.ID)

	var b strings.Builder
	b.WriteString("Subscription Cancelled\n\n")
	fmt.Fprintf(&b, "Subscription ID: %s\n", sub.ID)
	fmt.Fprintf(&b, "Customer ID: %s\n", sub.Customer)
	fmt.Fprintf(&b, "Cancelled At: %s\n\n", h.adminTime())
	b.WriteString("Please follow up with this customer.\n")

	h.run(ctx, event, h.adminEmail("⚠️ Subscription Cancelled: "+sub.Customer, b.String()))
	return nil
}

func (h *Handlers) InvoicePaid(ctx context.Context, event *stripe.Event) error {
	invoice, err := decodeObject[Invoice](event)
	if err != nil {
		return err
	}
	log.Infof("[Webhook] Invoice paid: %s", invoice.ID)
	if invoice.BillingReason == "subscription_cycle" {
		log.Infof("[Webhook] First payment after trial for subscription: %s", invoice.SubscriptionID())
	}
	h.run(ctx, event)
	return nil
}

func (h *Handlers) InvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	invoice, err := decodeObject[Invoice](event)
	if err != nil {
		return err
	}
	log.Infof("[Webhook] Payment failed for invoice: %s", invoice.ID)

	var b strings.Builder
	b.WriteString("Payment Failed\n\n")
	fmt.Fprintf(&b, "Customer Email: %s\n", invoice.CustomerEmail)
	fmt.Fprintf(&b, "Invoice ID: %s\n", invoice.ID)
	fmt.Fprintf(&b, "Amount: %s\n", FormatGBP(invoice.AmountDue))
	fmt.Fprintf(&b, "Attempt Count: %d\n\n", invoice.AttemptCount)
	b.WriteString("Action Required: Contact customer about payment issue.\n")

	h.run(ctx, event, h.adminEmail("⚠️ Payment Failed: "+invoice.CustomerEmail, b.String()))
	return nil
}

// FormatGBP renders minor units as pounds with two decimals.
func FormatGBP(minor int64) string {
	return fmt.Sprintf("£%.2f", float64(minor)/100)
}

func (h *Handlers) adminEmail(subject, text string) action {
	return action{name: "admin_email", run: func(ctx context.Context) error {
		if h.Notifier == nil {
			return skip("email not configured")
		}
		return h.Notifier.Send(ctx, mail.Message{
			To:      h.cfg.AdminEmail,
			From:    h.cfg.WebhookEmailFrom,
			Subject: subject,
			Text:    text,
		})
	}}
}

// run appends the optional event record and executes all actions.
func (h *Handlers) run(ctx context.Context, event *stripe.Event, actions ...action) []ActionResult {
	if h.cfg.WebhookRecordEvents {
		actions = append(actions, action{name: "record_event", run: func(ctx context.Context) error {
			if h.Subscriptions == nil {
				return skip("subscriptions store not configured")
			}
			raw, err := json.Marshal(event)
			if err != nil {
				return err
			}
			return h.Subscriptions.Put(ctx, "event_"+event.ID, raw, map[string]string{"type": string(event.Type)})
		}})
	}
	if len(actions) == 0 {
		return nil
	}
	return runActions(ctx, h.Metrics, string(event.Type), actions...)
}

func (h *Handlers) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock()
}

func (h *Handlers) adminTime() string {
	return h.now().In(h.cfg.AdminLocation()).Format(adminTimeLayout)
}
