package models

import "time"

const (
	SubscriptionStatusActive       = "active"
	SubscriptionStatusPendingSetup = "pending_setup"

	UnknownPlanName = "Unknown Plan"
	UnknownPlanKey  = "unknown"
)

// ISOTimeLayout renders UTC instants with millisecond precision.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z"

// SubscriptionRecord is built once per completed checkout and relayed to the
// backend, the admin mailbox and the subscriptions store.
type SubscriptionRecord struct {
	SessionID        string `json:"sessionId"`
	CustomerID       string `json:"customerId"`
	SubscriptionID   string `json:"subscriptionId"`
	CustomerEmail    string `json:"customerEmail"`
	PlanName         string `json:"planName"`
	PlanKey          string `json:"planKey"`
	IsHoldingCompany bool   `json:"isHoldingCompany"`
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp"`
}

// StoreKey is the key the record is kept under.
func (r *SubscriptionRecord) StoreKey() string {
	return "subscription_" + r.SubscriptionID
}

// StoreMetadata is attached to the stored record for manual follow-up.
func (r *SubscriptionRecord) StoreMetadata() map[string]string {
	return map[string]string{
		"customerEmail": r.CustomerEmail,
		"planKey":       r.PlanKey,
		"status":        SubscriptionStatusPendingSetup,
	}
}

// TrialDays is the trial length the customer type is entitled to.
func (r *SubscriptionRecord) TrialDays() int {
	if r.IsHoldingCompany {
		return 60
	}
	return 14
}

// SubscriptionCreatedRecord logs a new subscription. Nil times encode as null.
type SubscriptionCreatedRecord struct {
	SubscriptionID   string  `json:"subscriptionId"`
	CustomerID       string  `json:"customerId"`
	Status           string  `json:"status"`
	TrialEnd         *string `json:"trialEnd"`
	CurrentPeriodEnd *string `json:"currentPeriodEnd"`
	Timestamp        string  `json:"timestamp"`
}

func (r *SubscriptionCreatedRecord) StoreKey() string {
	return "subscription_created_" + r.SubscriptionID
}

// FormatISOTime formats t in UTC with millisecond precision.
func FormatISOTime(t time.Time) string {
	return t.UTC().Format(ISOTimeLayout)
}

// EpochToISO converts provider epoch seconds. Zero means absent and yields nil.
func EpochToISO(sec int64) *string {
	if sec == 0 {
		return nil
	}
	s := FormatISOTime(time.UnixMilli(sec * 1000))
	return &s
}
