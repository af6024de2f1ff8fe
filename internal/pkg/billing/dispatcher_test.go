package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
)

var handledTypes = []stripe.EventType{
	stripe.EventTypeCheckoutSessionCompleted,
	stripe.EventTypeCustomerSubscriptionCreated,
	stripe.EventTypeCustomerSubscriptionUpdated,
	stripe.EventTypeCustomerSubscriptionDeleted,
	stripe.EventTypeInvoicePaid,
	stripe.EventTypeInvoicePaymentFailed,
}

type callRecorder struct {
	mu    sync.Mutex
	calls []stripe.EventType
}

func (r *callRecorder) handler(eventType stripe.EventType) EventHandlerFunc {
	return func(context.Context, *stripe.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, eventType)
		return nil
	}
}

func (r *callRecorder) recorded() []stripe.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stripe.EventType(nil), r.calls...)
}

func recordingDispatcher() (*Dispatcher, *callRecorder) {
	d := NewDispatcher(nil, time.Second)
	rec := &callRecorder{}
	for _, et := range handledTypes {
		d.Register(et, rec.handler(et))
	}
	return d, rec
}

func TestDispatchInvokesExactlyOneHandler(t *testing.T) {
	for _, et := range handledTypes {
		t.Run(string(et), func(t *testing.T) {
			d, rec := recordingDispatcher()
			require.NoError(t, d.Dispatch(context.Background(), &stripe.Event{ID: "evt_1", Type: et}))
			assert.Equal(t, []stripe.EventType{et}, rec.recorded())
		})
	}
}

func TestDispatchIgnoresUnknownType(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(m, time.Second)
	rec := &callRecorder{}
	d.Register(stripe.EventTypeInvoicePaid, rec.handler(stripe.EventTypeInvoicePaid))

	err := d.Dispatch(context.Background(), &stripe.Event{ID: "evt_2", Type: "customer.created"})
	assert.NoError(t, err)
	assert.Empty(t, rec.recorded())
	assert.False(t, d.Handles("customer.created"))
	assert.True(t, d.Handles(stripe.EventTypeInvoicePaid))
}

func TestDispatchReportsHandlerErrorAndPanic(t *testing.T) {
	d := NewDispatcher(nil, time.Second)
	d.Register(stripe.EventTypeInvoicePaid, func(context.Context, *stripe.Event) error {
		return errors.New("bad object")
	})
	d.Register(stripe.EventTypeInvoicePaymentFailed, func(context.Context, *stripe.Event) error {
		panic("nil map")
	})

	assert.EqualError(t, d.Dispatch(context.Background(), &stripe.Event{Type: stripe.EventTypeInvoicePaid}), "bad object")
	assert.NotPanics(t, func() {
		err := d.Dispatch(context.Background(), &stripe.Event{Type: stripe.EventTypeInvoicePaymentFailed})
		assert.Error(t, err)
	})
}

func TestDispatchAsyncOutlivesRequestContext(t *testing.T) {
	d := NewDispatcher(nil, time.Second)
	got := make(chan error, 1)
	d.Register(stripe.EventTypeInvoicePaid, func(ctx context.Context, _ *stripe.Event) error {
		got <- ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.DispatchAsync(ctx, &stripe.Event{Type: stripe.EventTypeInvoicePaid})
	d.Wait()

	assert.NoError(t, <-got)
}

func TestHandlersRegisterCoversAllTypes(t *testing.T) {
	d := NewDispatcher(nil, time.Second)
	NewHandlers(testConfig()).Register(d)
	for _, et := range handledTypes {
		assert.True(t, d.Handles(et), et)
	}
}

func TestDispatchDeletionOnlyRunsDeletionHandler(t *testing.T) {
	m := metrics.New()
	d := NewDispatcher(m, time.Second)
	f := newHandlerFixture(testConfig())
	f.h.Metrics = m
	f.h.Register(d)

	ev := mustEvent(t, stripe.EventTypeCustomerSubscriptionDeleted, map[string]any{
		"id": "sub_x", "customer": "cus_x",
	})
	require.NoError(t, d.Dispatch(context.Background(), ev))

	msgs := f.sender.sent()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Subject, "Subscription Cancelled")
	assert.Empty(t, f.forwarder.records)
	assert.Empty(t, f.store.Keys())
}
