package backend

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2/log"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/httpx"
)

// ProcessSubscriptionPath is the backend function receiving new subscriptions.
const ProcessSubscriptionPath = "/api/functions/processSubscription"

// Forwarder relays records to the customer backend API.
type Forwarder struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewForwarderFromConfig returns nil when the backend relay is not configured.
func NewForwarderFromConfig(cfg *config.Config) *Forwarder {
	if !cfg.BackendConfigured() {
		return nil
	}
	return &Forwarder{
		BaseURL:    cfg.BackendAPIURL,
		APIKey:     cfg.BackendAPIKey,
		HTTPClient: httpx.NewClient(cfg.HTTPClientTimeout),
	}
}

// ForwardSubscription posts a subscription record to the backend.
func (f *Forwarder) ForwardSubscription(ctx context.Context, record any) error {
	if err := httpx.PostJSON(ctx, f.HTTPClient, f.BaseURL+ProcessSubscriptionPath, f.APIKey, record); err != nil {
		return err
	}
	log.Infof("[Backend] Forwarded subscription to backend API")
	return nil
}
