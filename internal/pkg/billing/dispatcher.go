package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"

	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
)

// EventHandlerFunc handles one event kind. The returned error only reports a
// payload that could not be decoded; side-effect failures are never returned.
type EventHandlerFunc func(ctx context.Context, event *stripe.Event) error

// Dispatcher routes verified events through a static type table.
type Dispatcher struct {
	handlers map[stripe.EventType]EventHandlerFunc
	metrics  *metrics.Metrics
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher returns an empty table. timeout bounds asynchronous dispatches.
func NewDispatcher(m *metrics.Metrics, timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[stripe.EventType]EventHandlerFunc),
		metrics:  m,
		timeout:  timeout,
	}
}

// Register adds or replaces the handler of an event type. It must not be
// called once the dispatcher serves requests.
func (d *Dispatcher) Register(eventType stripe.EventType, fn EventHandlerFunc) {
	d.handlers[eventType] = fn
}

// Handles reports whether eventType has a registered handler.
func (d *Dispatcher) Handles(eventType stripe.EventType) bool {
	_, ok := d.handlers[eventType]
	return ok
}

// Dispatch invokes exactly one handler. Unknown types are logged and ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, event *stripe.Event) (err error) {
	eventType := string(event.Type)
	fn, ok := d.handlers[event.Type]
	if !ok {
		log.Infof("[Webhook] Unhandled event type: %s", eventType)
		d.metrics.WebhookEvent(eventType, "ignored")
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", eventType, r)
		}
		if err != nil {
			log.Errorf("[Webhook] Event %s (%s) failed: %v", event.ID, eventType, err)
			d.metrics.WebhookEvent(eventType, "failed")
			return
		}
		d.metrics.WebhookEvent(eventType, "handled")
	}()

	log.Infof("[Webhook] Received event %s: %s", event.ID, eventType)
	return fn(ctx, event)
}

// DispatchAsync runs Dispatch in the background on a context detached from
// the request, bounded by the dispatcher timeout.
func (d *Dispatcher) DispatchAsync(ctx context.Context, event *stripe.Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		bg := context.WithoutCancel(ctx)
		if d.timeout > 0 {
			var cancel context.CancelFunc
			bg, cancel = context.WithTimeout(bg, d.timeout)
			defer cancel()
		}
		_ = d.Dispatch(bg, event)
	}()
}

// Wait blocks until all asynchronous dispatches have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
