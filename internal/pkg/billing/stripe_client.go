package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v82"

	"github.com/hfactor/hfactor-site/internal/pkg/config"
	"github.com/hfactor/hfactor-site/internal/pkg/httpx"
)

// ErrUnexpectedStatus is wrapped by every non-2xx Stripe response.
var ErrUnexpectedStatus = errors.New("stripe: unexpected status")

// ErrMissingAPIKey is returned before any request when no secret key is set.
var ErrMissingAPIKey = errors.New("stripe: secret key is not configured")

// APIError describes a failed Stripe call.
type APIError struct {
	Operation  string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe %s failed: status=%d type=%s message=%s", e.Operation, e.StatusCode, e.Type, e.Message)
}

func (e *APIError) Unwrap() error { return ErrUnexpectedStatus }

// StripeClient reads the product catalog over the Stripe REST API.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string
	HTTPClient *http.Client
}

func NewStripeClientFromConfig(cfg *config.Config) *StripeClient {
	return &StripeClient{
		SecretKey:  cfg.StripeSecretKey,
		APIBaseURL: cfg.StripeAPIBaseURL,
		HTTPClient: httpx.NewClient(cfg.HTTPClientTimeout),
	}
}

// Configured reports whether a secret key is present.
func (c *StripeClient) Configured() bool {
	return strings.TrimSpace(c.SecretKey) != ""
}

// ListActiveProducts returns the first page (up to 100) of active products.
func (c *StripeClient) ListActiveProducts(ctx context.Context) ([]*stripe.Product, error) {
	q := url.Values{}
	q.Set("active", "true")
	q.Set("limit", "100")

	var list stripe.ProductList
	if err := c.get(ctx, "list products", "/products", q, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

// ListActivePrices returns the active prices of one product.
func (c *StripeClient) ListActivePrices(ctx context.Context, productID string) ([]*stripe.Price, error) {
	q := url.Values{}
	q.Set("product", productID)
	q.Set("active", "true")

	var list stripe.PriceList
	if err := c.get(ctx, "list prices", "/prices", q, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

func (c *StripeClient) get(ctx context.Context, operation, path string, q url.Values, out any) error {
	if !c.Configured() {
		return ErrMissingAPIKey
	}

	u, err := url.Parse(strings.TrimRight(c.APIBaseURL, "/") + path)
	if err != nil {
		return fmt.Errorf("stripe %s: %w", operation, err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.SecretKey))
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("stripe %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Operation: operation, StatusCode: resp.StatusCode}
		var raw struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &raw) == nil {
			apiErr.Type = raw.Error.Type
			apiErr.Message = raw.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("stripe %s: decode response: %w", operation, err)
	}
	return nil
}
