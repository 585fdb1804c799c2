// Package adyen is a thin client for the Adyen Checkout API endpoints used by the storefront.
package adyen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/arrowtech/storefront/pkg/config"
	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
	"github.com/arrowtech/storefront/pkg/logger"
	"github.com/arrowtech/storefront/pkg/metrics"
)

const (
	testBaseURLFormat = "https://checkout-test.adyen.com/%s"
	liveBaseURLFormat = "https://%s-checkout-live.adyenpayments.com/checkout/%s"
	defaultAPIVersion = "v71"

	OperationSessions       = "sessions"
	OperationPayments       = "payments"
	OperationPaymentDetails = "payments/details"

	responseBodyReadLimit int64 = 1 << 20
	breakerName                 = "adyen-checkout"
)

var (
	errAPIKeyRequired          = errors.New("adyen api key is required")
	errMerchantAccountRequired = errors.New("adyen merchant account is required")
)

// Client calls the Checkout API with X-API-Key authentication behind a circuit breaker.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	merchantAccount string
	breaker         *gobreaker.CircuitBreaker[*response]
	metrics         *metrics.PSPMetrics
	logg            *logger.Logger
}

type response struct {
	status int
	body   []byte
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the environment-derived base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithMetrics records call durations, result codes and failures.
func WithMetrics(m *metrics.PSPMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithLogger enables request/response logging.
func WithLogger(logg *logger.Logger) Option {
	return func(c *Client) {
		c.logg = logg
	}
}

// NewClient builds a Checkout API client for the configured environment.
func NewClient(cfg config.AdyenConfig, breakerCfg config.BreakerConfig, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	merchant := strings.TrimSpace(cfg.MerchantAccount)
	if merchant == "" {
		return nil, errMerchantAccountRequired
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		apiKey:          apiKey,
		merchantAccount: merchant,
		baseURL:         BaseURL(cfg),
		httpClient:      &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	client.breaker = gobreaker.NewCircuitBreaker[*response](client.breakerSettings(breakerCfg))
	client.metrics.SetBreakerState(breakerName, int(gobreaker.StateClosed))
	return client, nil
}

// BaseURL resolves the Checkout API root for cfg.
func BaseURL(cfg config.AdyenConfig) string {
	if strings.TrimSpace(cfg.BaseURL) != "" {
		return strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = defaultAPIVersion
	}
	if cfg.Environment() == config.AdyenEnvLive {
		return fmt.Sprintf(liveBaseURLFormat, strings.TrimSpace(cfg.LivePrefix), version)
	}
	return fmt.Sprintf(testBaseURLFormat, version)
}

// MerchantAccount returns the merchant account requests are booked against.
func (c *Client) MerchantAccount() string {
	return c.merchantAccount
}

// BreakerState exposes the breaker state for readiness reporting.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// CreateSession calls POST /sessions.
func (c *Client) CreateSession(ctx context.Context, payload any, idempotencyKey string) (json.RawMessage, error) {
	return c.post(ctx, OperationSessions, payload, idempotencyKey)
}

// Payments calls POST /payments.
func (c *Client) Payments(ctx context.Context, payload any, idempotencyKey string) (json.RawMessage, error) {
	return c.post(ctx, OperationPayments, payload, idempotencyKey)
}

// PaymentDetails calls POST /payments/details.
func (c *Client) PaymentDetails(ctx context.Context, payload any, idempotencyKey string) (json.RawMessage, error) {
	return c.post(ctx, OperationPaymentDetails, payload, idempotencyKey)
}

func (c *Client) post(ctx context.Context, op string, payload any, idempotencyKey string) (json.RawMessage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "adyen client not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("marshal %s request", op))
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.do(ctx, op, body, idempotencyKey)
	})
	c.metrics.ObserveDuration(op, time.Since(start))

	if err != nil {
		return nil, c.mapError(ctx, op, err)
	}

	if !json.Valid(resp.body) {
		c.metrics.IncFailure(op, "malformed")
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("adyen %s returned a malformed body", op))
	}
	c.recordResultCode(op, resp.body)
	c.log(ctx, "response", op, map[string]any{
		"status":      resp.status,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return json.RawMessage(resp.body), nil
}

func (c *Client) do(ctx context.Context, op string, body []byte, idempotencyKey string) (*response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(op), bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", op))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}

	c.log(ctx, "request", op, map[string]any{"idempotency_key": idempotencyKey})
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, raw)
	}
	return &response{status: resp.StatusCode, body: raw}, nil
}

func (c *Client) breakerSettings(cfg config.BreakerConfig) gobreaker.Settings {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	return gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.metrics.SetBreakerState(name, int(to))
			if c.logg != nil {
				ctx := c.logg.WithFields(context.Background(), map[string]any{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				})
				c.logg.Warn(ctx, "psp circuit breaker state changed")
			}
		},
	}
}

// isBreakerSuccess counts provider-side rejections (4xx) and caller cancellations as healthy.
func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.Transient()
	}
	return false
}

func (c *Client) mapError(ctx context.Context, op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.IncFailure(op, "breaker_open")
		c.log(ctx, "error", op, map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment provider temporarily unavailable")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		c.metrics.IncFailure(op, "upstream")
		c.log(ctx, "error", op, map[string]any{
			"error":      err.Error(),
			"status":     apiErr.Status,
			"error_code": apiErr.ErrorCode,
		})
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, apiErr, fmt.Sprintf("adyen %s rejected", op))
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	c.metrics.IncFailure(op, "transport")
	c.log(ctx, "error", op, map[string]any{"error": err.Error()})
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("execute %s request", op))
}

func (c *Client) recordResultCode(op string, body []byte) {
	if c.metrics == nil {
		return
	}
	var payload struct {
		ResultCode string `json:"resultCode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.ResultCode == "" {
		return
	}
	c.metrics.IncResultCode(op, payload.ResultCode)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logg == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logg.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logg.Error(ctx, fmt.Sprintf("adyen %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logg.Debug(ctx, fmt.Sprintf("adyen %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "cvc", "api_key", "encrypted", "session_data", "email"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
