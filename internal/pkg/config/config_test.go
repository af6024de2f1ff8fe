package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hfactor/hfactor-site/internal/pkg/env"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := env.Env
	env.Env = values
	t.Cleanup(func() { env.Env = prev })
}

func TestLoadDefaults(t *testing.T) {
	withEnv(t, map[string]string{})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultStripeAPIBaseURL, cfg.StripeAPIBaseURL)
	assert.Equal(t, 300*time.Second, cfg.StripeWebhookTolerance)
	assert.Equal(t, ProductsModeTiered, cfg.ProductsMode)
	assert.Equal(t, "gbp", cfg.DefaultCurrency)
	assert.Equal(t, StoreNone, cfg.SubscriptionsStore.Backend)
	assert.Equal(t, StoreNone, cfg.ContactStore.Backend)
	assert.Equal(t, "support@h-factor.co.uk", cfg.AdminEmail)
	assert.True(t, cfg.WebhookAsyncDispatch)
	assert.False(t, cfg.BackendConfigured())
	assert.False(t, cfg.EmailConfigured())
	assert.Equal(t, "0.0.0.0:4000", cfg.ListenAddr())
}

func TestLoadOverrides(t *testing.T) {
	withEnv(t, map[string]string{
		"STRIPE_SECRET_KEY":        "sk_test_123",
		"STRIPE_API_BASE_URL":      "http://localhost:12111/v1/",
		"STRIPE_WEBHOOK_TOLERANCE": "60",
		"PRODUCTS_MODE":            "PLANS",
		"BACKEND_API_URL":          "https://backend.example.com/",
		"BACKEND_API_KEY":          "bk",
		"EMAIL_SERVICE_URL":        "https://mail.example.com/send",
		"EMAIL_API_KEY":            "ek",
		"SUBSCRIPTIONS_STORE":      "redis",
		"CONTACT_STORE":            "redis",
		"WEBHOOK_ASYNC_DISPATCH":   "false",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk_test_123", cfg.StripeSecretKey)
	assert.Equal(t, "http://localhost:12111/v1", cfg.StripeAPIBaseURL)
	assert.Equal(t, time.Minute, cfg.StripeWebhookTolerance)
	assert.Equal(t, ProductsModePlans, cfg.ProductsMode)
	assert.Equal(t, "https://backend.example.com", cfg.BackendAPIURL)
	assert.True(t, cfg.BackendConfigured())
	assert.True(t, cfg.EmailConfigured())
	assert.False(t, cfg.WebhookAsyncDispatch)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown products mode", map[string]string{"PRODUCTS_MODE": "grid"}},
		{"unknown store backend", map[string]string{"CONTACT_STORE": "kv"}},
		{"malformed backend url", map[string]string{"BACKEND_API_URL": "not a url"}},
		{"s3 without bucket", map[string]string{
			"CONTACT_STORE":        "s3",
			"S3_ACCESS_KEY_ID":     "id",
			"S3_SECRET_ACCESS_KEY": "secret",
		}},
		{"redis stores sharing a database", map[string]string{
			"SUBSCRIPTIONS_STORE":    "redis",
			"CONTACT_STORE":          "redis",
			"SUBSCRIPTIONS_REDIS_DB": "5",
			"CONTACT_REDIS_DB":       "5",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.env)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestAdminLocationFallsBackToUTC(t *testing.T) {
	cfg := &Config{AdminTimezone: "Not/AZone"}
	assert.Equal(t, time.UTC, cfg.AdminLocation())

	cfg.AdminTimezone = "Europe/London"
	assert.Equal(t, "Europe/London", cfg.AdminLocation().String())
}

func TestLoadResolvesAdminLocationOnce(t *testing.T) {
	withEnv(t, map[string]string{"ADMIN_TIMEZONE": "Europe/London"})

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.adminLocation)
	assert.Same(t, cfg.adminLocation, cfg.AdminLocation())

	cfg.AdminTimezone = "Asia/Tokyo"
	assert.Equal(t, "Europe/London", cfg.AdminLocation().String())
}

func TestLoadTrustedProxies(t *testing.T) {
	withEnv(t, map[string]string{})
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxy())

	withEnv(t, map[string]string{
		"PROXY_HEADER":    "CF-Connecting-IP",
		"TRUSTED_PROXIES": " 173.245.48.0/20, ,103.21.244.0/22",
	})
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"173.245.48.0/20", "103.21.244.0/22"}, cfg.TrustedProxies)
	assert.True(t, cfg.TrustProxy())
}
