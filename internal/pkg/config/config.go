package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"

	"github.com/hfactor/hfactor-site/internal/pkg/env"
)

const (
	StoreNone  = "none"
	StoreRedis = "redis"
	StoreS3    = "s3"

	ProductsModeTiered = "tiered"
	ProductsModePlans  = "plans"

	DefaultStripeAPIBaseURL = "https://api.stripe.com/v1"
	DefaultWebhookTolerance = 300 * time.Second
)

// Config is the explicit configuration value handed to every controller and
// handler. It is built once at startup and never mutated afterwards.
type Config struct {
	AppHost string
	AppPort string
	AppEnv  string

	StripeSecretKey        string
	StripeAPIBaseURL       string `validate:"required,url"`
	StripeWebhookSecret    string
	StripeWebhookTolerance time.Duration `validate:"gt=0"`

	ProductsMode          string `validate:"oneof=tiered plans"`
	DefaultCurrency       string `validate:"required,len=3"`
	PriceFetchConcurrency int    `validate:"gte=1"`

	BackendAPIURL string `validate:"omitempty,url"`
	BackendAPIKey string

	EmailServiceURL string `validate:"omitempty,url"`
	EmailAPIKey     string
	SMTP            SMTPConfig

	AdminEmail       string `validate:"required,email"`
	WebhookEmailFrom string `validate:"required,email"`
	ContactEmail     string `validate:"required,email"`
	ContactEmailFrom string `validate:"required,email"`
	AdminTimezone    string
	AccountSetupURL  string

	SubscriptionsStore StoreConfig
	ContactStore       StoreConfig
	Redis              RedisConfig
	S3                 S3Config

	LimiterRedisDB   int
	ContactRateLimit int `validate:"gte=0"`

	// ProxyHeader is only honored for requests from TrustedProxies.
	ProxyHeader    string
	TrustedProxies []string

	WebhookRecordEvents  bool
	WebhookAsyncDispatch bool
	DispatchTimeout      time.Duration `validate:"gt=0"`
	HTTPClientTimeout    time.Duration `validate:"gt=0"`

	HCaptchaSecret    string
	HCaptchaVerifyURL string `validate:"omitempty,url"`

	MetricsUser     string
	MetricsPassword string

	adminLocation *time.Location
}

// StoreConfig selects the backend of one of the two independent key-value stores.
type StoreConfig struct {
	Backend  string `validate:"oneof=none redis s3"`
	RedisDB  int
	S3Prefix string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
}

// S3Config mirrors the object-storage settings of the S3 backed store.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

// Load reads the configuration from the environment (and the optional .env
// file loaded by env.SetupEnvFile).
func Load() (*Config, error) {
	cfg := &Config{
		AppHost: env.GetEnv("APP_HOST", "0.0.0.0"),
		AppPort: env.GetEnv("APP_PORT", "4000"),
		AppEnv:  env.GetEnv("APP_ENV", "prod"),

		StripeSecretKey:        strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		StripeAPIBaseURL:       strings.TrimRight(strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", DefaultStripeAPIBaseURL)), "/"),
		StripeWebhookSecret:    strings.TrimSpace(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		StripeWebhookTolerance: env.GetDuration("STRIPE_WEBHOOK_TOLERANCE", DefaultWebhookTolerance),

		ProductsMode:          strings.ToLower(env.GetEnv("PRODUCTS_MODE", ProductsModeTiered)),
		DefaultCurrency:       strings.ToLower(env.GetEnv("DEFAULT_CURRENCY", "gbp")),
		PriceFetchConcurrency: env.GetInt("PRICE_FETCH_CONCURRENCY", 8),

		BackendAPIURL: strings.TrimRight(strings.TrimSpace(env.GetEnv("BACKEND_API_URL", "")), "/"),
		BackendAPIKey: strings.TrimSpace(env.GetEnv("BACKEND_API_KEY", "")),

		EmailServiceURL: strings.TrimSpace(env.GetEnv("EMAIL_SERVICE_URL", "")),
		EmailAPIKey:     strings.TrimSpace(env.GetEnv("EMAIL_API_KEY", "")),
		SMTP: SMTPConfig{
			Host:     env.GetEnv("SMTP_HOST", ""),
			Port:     env.GetEnv("SMTP_PORT", "587"),
			Username: env.GetEnv("SMTP_USERNAME", ""),
			Password: env.GetEnv("SMTP_PASSWORD", ""),
		},

		AdminEmail:       env.GetEnv("ADMIN_EMAIL", "support@h-factor.co.uk"),
		WebhookEmailFrom: env.GetEnv("WEBHOOK_EMAIL_FROM", "webhooks@h-factor.co.uk"),
		ContactEmail:     env.GetEnv("CONTACT_EMAIL", "contact@hfactor.co.uk"),
		ContactEmailFrom: env.GetEnv("CONTACT_EMAIL_FROM", "noreply@hfactor.co.uk"),
		AdminTimezone:    env.GetEnv("ADMIN_TIMEZONE", "Europe/London"),
		AccountSetupURL:  env.GetEnv("ACCOUNT_SETUP_URL", "https://h-factor.base44.app"),

		SubscriptionsStore: StoreConfig{
			Backend:  strings.ToLower(env.GetEnv("SUBSCRIPTIONS_STORE", StoreNone)),
			RedisDB:  env.GetInt("SUBSCRIPTIONS_REDIS_DB", 2),
			S3Prefix: env.GetEnv("SUBSCRIPTIONS_S3_PREFIX", "subscriptions/"),
		},
		ContactStore: StoreConfig{
			Backend:  strings.ToLower(env.GetEnv("CONTACT_STORE", StoreNone)),
			RedisDB:  env.GetInt("CONTACT_REDIS_DB", 3),
			S3Prefix: env.GetEnv("CONTACT_S3_PREFIX", "contact-submissions/"),
		},
		Redis: RedisConfig{
			Host:     env.GetEnv("CACHE_HOST", "localhost"),
			Port:     env.GetEnv("CACHE_PORT", "6379"),
			Password: env.GetEnv("CACHE_PASSWORD", ""),
		},
		S3: S3Config{
			AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
			Region:          env.GetEnv("S3_REGION", "eu-west-2"),
			BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
			EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		},

		LimiterRedisDB:   env.GetInt("LIMITER_REDIS_DB", 4),
		ContactRateLimit: env.GetInt("CONTACT_RATE_LIMIT", 10),

		ProxyHeader:    env.GetEnv("PROXY_HEADER", ""),
		TrustedProxies: splitList(env.GetEnv("TRUSTED_PROXIES", "")),

		WebhookRecordEvents:  env.GetBool("WEBHOOK_RECORD_EVENTS", false),
		WebhookAsyncDispatch: env.GetBool("WEBHOOK_ASYNC_DISPATCH", true),
		DispatchTimeout:      env.GetDuration("DISPATCH_TIMEOUT", 30*time.Second),
		HTTPClientTimeout:    env.GetDuration("HTTP_CLIENT_TIMEOUT", 15*time.Second),

		HCaptchaSecret:    strings.TrimSpace(env.GetEnv("HCAPTCHA_SECRET", "")),
		HCaptchaVerifyURL: env.GetEnv("HCAPTCHA_VERIFY_URL", "https://hcaptcha.com/siteverify"),

		MetricsUser:     env.GetEnv("METRICS_USER", ""),
		MetricsPassword: env.GetEnv("METRICS_PASSWORD", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.adminLocation = cfg.AdminLocation()
	return cfg, nil
}

// Validate checks field formats and the cross-field requirements of the
// selected store backends.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.usesS3() {
		if c.S3.AccessKeyID == "" {
			return fmt.Errorf("S3_ACCESS_KEY_ID is required when an s3 store is selected")
		}
		if c.S3.SecretAccessKey == "" {
			return fmt.Errorf("S3_SECRET_ACCESS_KEY is required when an s3 store is selected")
		}
		if c.S3.BucketName == "" {
			return fmt.Errorf("S3_BUCKET_NAME is required when an s3 store is selected")
		}
	}
	if c.SubscriptionsStore.Backend == StoreRedis && c.ContactStore.Backend == StoreRedis &&
		c.SubscriptionsStore.RedisDB == c.ContactStore.RedisDB {
		return fmt.Errorf("SUBSCRIPTIONS_REDIS_DB and CONTACT_REDIS_DB must differ")
	}
	return nil
}

func (c *Config) usesS3() bool {
	return c.SubscriptionsStore.Backend == StoreS3 || c.ContactStore.Backend == StoreS3
}

// TrustProxy reports whether ProxyHeader may be used to find the client IP.
func (c *Config) TrustProxy() bool {
	return c.ProxyHeader != "" && len(c.TrustedProxies) > 0
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ListenAddr returns host:port for fiber's Listen.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%s", c.AppHost, c.AppPort)
}

// BackendConfigured reports whether the backend relay has both URL and key.
func (c *Config) BackendConfigured() bool {
	return c.BackendAPIURL != "" && c.BackendAPIKey != ""
}

// EmailConfigured reports whether the notification service has both URL and key.
func (c *Config) EmailConfigured() bool {
	return c.EmailServiceURL != "" && c.EmailAPIKey != ""
}

// AdminLocation returns the zone resolved by Load. Configs built by hand
// resolve AdminTimezone on each call, falling back to UTC.
func (c *Config) AdminLocation() *time.Location {
	if c.adminLocation != nil {
		return c.adminLocation
	}
	loc, err := time.LoadLocation(c.AdminTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
