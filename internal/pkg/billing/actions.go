package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
)

type ActionStatus string

const (
	ActionOK      ActionStatus = "ok"
	ActionFailed  ActionStatus = "failed"
	ActionSkipped ActionStatus = "skipped"
)

// ActionResult is the outcome of one side effect of a handler.
type ActionResult struct {
	Name   string
	Status ActionStatus
	Err    error
}

func (r ActionResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s=%s (%v)", r.Name, r.Status, r.Err)
	}
	return fmt.Sprintf("%s=%s", r.Name, r.Status)
}

// action is one independent side effect. Returning skip(reason) marks the
// action as skipped instead of failed.
type action struct {
	name string
	run  func(ctx context.Context) error
}

type skipError struct{ reason string }

func (e *skipError) Error() string { return e.reason }

func skip(reason string) error { return &skipError{reason: reason} }

// runActions executes all actions concurrently and waits for every one of
// them. A failing action never cancels its siblings.
func runActions(ctx context.Context, m *metrics.Metrics, event string, actions ...action) []ActionResult {
	results := make([]ActionResult, len(actions))
	var g errgroup.Group
	for i, a := range actions {
		i, a := i, a
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
				results[i] = resultOf(a.name, err)
			}()
			return a.run(ctx)
		})
	}
	_ = g.Wait()

	for _, r := range results {
		m.WebhookAction(r.Name, string(r.Status))
		switch r.Status {
		case ActionFailed:
			log.Errorf("[Webhook] %s: action %s failed: %v", event, r.Name, r.Err)
		case ActionSkipped:
			log.Infof("[Webhook] %s: action %s skipped: %v", event, r.Name, r.Err)
		default:
			log.Infof("[Webhook] %s: action %s ok", event, r.Name)
		}
	}
	return results
}

func resultOf(name string, err error) ActionResult {
	if err == nil {
		return ActionResult{Name: name, Status: ActionOK}
	}
	if se, ok := err.(*skipError); ok {
		return ActionResult{Name: name, Status: ActionSkipped, Err: se}
	}
	return ActionResult{Name: name, Status: ActionFailed, Err: err}
}

// TrialReminder is called when a trial has exactly three days left.
// Delivery of the reminder is left to the implementation.
type TrialReminder interface {
	RemindTrialEnding(ctx context.Context, sub *Subscription, daysLeft int) error
}

// LogTrialReminder only records that a reminder is due.
type LogTrialReminder struct{}

func (LogTrialReminder) RemindTrialEnding(_ context.Context, sub *Subscription, daysLeft int) error {
	log.Infof("[Webhook] Trial for subscription %s ends in %d days, reminder due", sub.ID, daysLeft)
	return skip("no reminder delivery configured")
}

// Clock returns the current time. Tests pin it.
type Clock func() time.Time
