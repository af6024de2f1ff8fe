package billing

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

// CheckoutSession is the subset of a checkout session the handlers read.
type CheckoutSession struct {
	ID            string            `json:"id"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	CustomerEmail string            `json:"customer_email"`
	Metadata      map[string]string `json:"metadata"`
}

// Subscription is the subset of a subscription object the handlers read.
// Newer API versions moved current_period_end onto the subscription items.
type Subscription struct {
	ID               string `json:"id"`
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	TrialEnd         int64  `json:"trial_end"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// PeriodEnd returns current_period_end, falling back to the first item.
func (s *Subscription) PeriodEnd() int64 {
	if s.CurrentPeriodEnd != 0 {
		return s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

// Invoice is the subset of an invoice object the handlers read.
type Invoice struct {
	ID            string `json:"id"`
	CustomerEmail string `json:"customer_email"`
	BillingReason string `json:"billing_reason"`
	Subscription  string `json:"subscription"`
	AmountDue     int64  `json:"amount_due"`
	AttemptCount  int64  `json:"attempt_count"`
	Parent        struct {
		SubscriptionDetails struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionID returns the invoice's subscription from either API shape.
func (i *Invoice) SubscriptionID() string {
	if i.Subscription != "" {
		return i.Subscription
	}
	return i.Parent.SubscriptionDetails.Subscription
}

// ParseEvent decodes a verified webhook body. data.object stays raw in
// event.Data.Raw and is decoded by the handler for its type.
func ParseEvent(payload []byte) (*stripe.Event, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}
	if event.Type == "" {
		return nil, fmt.Errorf("decode webhook event: missing type")
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, fmt.Errorf("decode webhook event %s: missing data.object", event.ID)
	}
	return &event, nil
}

func decodeObject[T any](event *stripe.Event) (*T, error) {
	var out T
	if err := json.Unmarshal(event.Data.Raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s object: %w", event.Type, err)
	}
	return &out, nil
}
