package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

type Config struct {
	App       AppConfig
	Redis     RedisConfig
	Adyen     AdyenConfig
	Checkout  CheckoutConfig
	Catalog   CatalogConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Breaker   BreakerConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	var err error
	err = multierr.Append(err, c.Adyen.validate())
	err = multierr.Append(err, c.Checkout.validate())
	return err
}

type AppConfig struct {
	Env             string        `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port            string        `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// RedisConfig is optional: without a URL or address the cart falls back to process memory
// and idempotency/rate limiting are disabled.
type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	CartTTL      time.Duration `envconfig:"STOREFRONT_CART_TTL" default:"720h"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type AdyenConfig struct {
	APIKey          string        `envconfig:"STOREFRONT_ADYEN_API_KEY" required:"true"`
	MerchantAccount string        `envconfig:"STOREFRONT_ADYEN_MERCHANT_ACCOUNT" required:"true"`
	ClientKey       string        `envconfig:"STOREFRONT_ADYEN_CLIENT_KEY"`
	Env             string        `envconfig:"STOREFRONT_ADYEN_ENV" default:"test"`
	LivePrefix      string        `envconfig:"STOREFRONT_ADYEN_LIVE_PREFIX"`
	APIVersion      string        `envconfig:"STOREFRONT_ADYEN_API_VERSION" default:"v71"`
	BaseURL         string        `envconfig:"STOREFRONT_ADYEN_BASE_URL"`
	HTTPTimeout     time.Duration `envconfig:"STOREFRONT_ADYEN_HTTP_TIMEOUT" default:"30s"`
}

// Environment returns the normalized Adyen environment (test/live).
func (a AdyenConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(a.Env))
	if env == "" {
		return AdyenEnvTest
	}
	return env
}

func (a AdyenConfig) validate() error {
	switch a.Environment() {
	case AdyenEnvTest:
	case AdyenEnvLive:
		if strings.TrimSpace(a.LivePrefix) == "" && strings.TrimSpace(a.BaseURL) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvAdyenLivePrefix, EnvAdyenEnv, AdyenEnvLive)
		}
	default:
		return fmt.Errorf("%s must be %q or %q", EnvAdyenEnv, AdyenEnvTest, AdyenEnvLive)
	}
	if a.BaseURL != "" {
		if _, err := url.ParseRequestURI(a.BaseURL); err != nil {
			return fmt.Errorf("parsing %s: %w", EnvAdyenBaseURL, err)
		}
	}
	return nil
}

// CheckoutConfig carries the deployment region: one currency, one tax rate, one locale.
type CheckoutConfig struct {
	Currency        string `envconfig:"STOREFRONT_CHECKOUT_CURRENCY" default:"GBP"`
	TaxRate         string `envconfig:"STOREFRONT_CHECKOUT_TAX_RATE" default:"0.20"`
	CountryCode     string `envconfig:"STOREFRONT_CHECKOUT_COUNTRY_CODE" default:"GB"`
	ShopperLocale   string `envconfig:"STOREFRONT_CHECKOUT_SHOPPER_LOCALE" default:"en-GB"`
	ReturnURL       string `envconfig:"STOREFRONT_CHECKOUT_RETURN_URL" default:"http://localhost:3000/checkout/result"`
	IntegrationType string `envconfig:"STOREFRONT_CHECKOUT_INTEGRATION_TYPE" default:"storefront_dropin"`
}

// TaxRateDecimal returns the configured tax rate; Load has already rejected malformed values.
func (c CheckoutConfig) TaxRateDecimal() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

func (c CheckoutConfig) validate() error {
	var err error
	if len(strings.TrimSpace(c.Currency)) != 3 {
		err = multierr.Append(err, fmt.Errorf("%s must be an ISO 4217 code", EnvCheckoutCurrency))
	}
	rate, parseErr := decimal.NewFromString(strings.TrimSpace(c.TaxRate))
	switch {
	case parseErr != nil:
		err = multierr.Append(err, fmt.Errorf("parsing %s: %w", EnvCheckoutTaxRate, parseErr))
	case rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)):
		err = multierr.Append(err, errors.New(EnvCheckoutTaxRate+" must be within [0, 1)"))
	}
	if _, parseErr := url.ParseRequestURI(c.ReturnURL); parseErr != nil {
		err = multierr.Append(err, fmt.Errorf("parsing %s: %w", EnvCheckoutReturnURL, parseErr))
	}
	return err
}

type CatalogConfig struct {
	Path string `envconfig:"STOREFRONT_CATALOG_PATH"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type RateLimitConfig struct {
	Window    time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_WINDOW" default:"1m"`
	IPLimit   int           `envconfig:"STOREFRONT_RATE_LIMIT_IP_LIMIT" default:"60"`
	CartLimit int           `envconfig:"STOREFRONT_RATE_LIMIT_CART_LIMIT" default:"20"`
}

// BreakerConfig tunes the circuit breaker wrapped around PSP calls.
type BreakerConfig struct {
	MaxRequests         uint32        `envconfig:"STOREFRONT_BREAKER_MAX_REQUESTS" default:"3"`
	Interval            time.Duration `envconfig:"STOREFRONT_BREAKER_INTERVAL" default:"60s"`
	Timeout             time.Duration `envconfig:"STOREFRONT_BREAKER_TIMEOUT" default:"30s"`
	ConsecutiveFailures uint32        `envconfig:"STOREFRONT_BREAKER_CONSECUTIVE_FAILURES" default:"5"`
}
