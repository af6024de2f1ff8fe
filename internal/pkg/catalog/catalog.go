package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v82"
	"golang.org/x/sync/errgroup"

	"github.com/hfactor/hfactor-site/internal/pkg/metrics"
)

// ErrNotConfigured is returned without any outbound call when the provider
// client has no API key.
var ErrNotConfigured = errors.New("catalog: provider API key not configured")

// ProviderClient lists the live catalog. billing.StripeClient implements it.
type ProviderClient interface {
	ListActiveProducts(ctx context.Context) ([]*stripe.Product, error)
	ListActivePrices(ctx context.Context, productID string) ([]*stripe.Price, error)
}

type configurable interface {
	Configured() bool
}

// Shaper turns the provider catalog into the pricing page payloads.
type Shaper struct {
	Client          ProviderClient
	DefaultCurrency string
	Concurrency     int
	Metrics         *metrics.Metrics
}

// Entry is one product together with its active prices. Entries are built
// per request and never cached.
type Entry struct {
	Product *stripe.Product
	Prices  []*stripe.Price
}

// Entries lists active products and fetches the prices of every product
// concurrently. A failed price listing degrades that entry to no prices;
// only a failed product listing is returned as an error.
func (s *Shaper) Entries(ctx context.Context) ([]Entry, error) {
	if c, ok := s.Client.(configurable); ok && !c.Configured() {
		return nil, ErrNotConfigured
	}

	products, err := s.Client.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	entries := make([]Entry, len(products))
	var g errgroup.Group
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	for i, p := range products {
		i, p := i, p
		entries[i].Product = p
		g.Go(func() error {
			prices, err := s.Client.ListActivePrices(ctx, p.ID)
			if err != nil {
				log.Warnf("[Catalog] Prices for %s unavailable: %v", p.ID, err)
				s.Metrics.PriceFetchError()
				return nil
			}
			entries[i].Prices = prices
			return nil
		})
	}
	_ = g.Wait()

	return entries, nil
}
