package checkout

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

	contract "github.com/arrowtech/storefront/pkg/checkout"
)

const (
	createSessionPath = "/api/checkout/create-session"
	submitPaymentPath = "/api/checkout/submit-payment"
	submitDetailsPath = "/api/checkout/submit-details"

	responseReadLimit int64 = 1 << 20
)

var (
	// ErrMalformedResponse is returned when a gateway answers 2xx with an unreadable body.
	ErrMalformedResponse = errors.New("malformed gateway response")
	// ErrIncompleteSession is returned when a session lacks its id or session data.
	ErrIncompleteSession = errors.New("session response missing id or sessionData")
)

// Gateway is the storefront's checkout API as seen by the orchestrator.
type Gateway interface {
	CreateSession(ctx context.Context, req contract.SessionRequest) (contract.Session, error)
	SubmitPayment(ctx context.Context, req contract.PaymentRequest, idempotencyKey string) (contract.Result, error)
	SubmitDetails(ctx context.Context, req contract.DetailsRequest, idempotencyKey string) (contract.Result, error)
}

// GatewayError is a non-2xx answer from a gateway endpoint.
type GatewayError struct {
	Status  int
	Message string
	Details json.RawMessage
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway status %d: %s", e.Status, e.Message)
}

// HTTPGateway calls the checkout endpoints of a running storefront API.
type HTTPGateway struct {
	httpClient *http.Client
	baseURL    string
	cartID     string
}

// GatewayOption configures an HTTPGateway.
type GatewayOption func(*HTTPGateway)

// WithGatewayHTTPClient overrides the default HTTP client.
func WithGatewayHTTPClient(client *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithCartID sends X-Cart-Id so the API can scope rate limits to the cart.
func WithCartID(cartID string) GatewayOption {
	return func(g *HTTPGateway) {
		g.cartID = strings.TrimSpace(cartID)
	}
}

// NewHTTPGateway returns a client for the API rooted at baseURL.
func NewHTTPGateway(baseURL string, opts ...GatewayOption) *HTTPGateway {
	g := &HTTPGateway{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *HTTPGateway) CreateSession(ctx context.Context, req contract.SessionRequest) (contract.Session, error) {
	var session contract.Session
	if err := g.post(ctx, createSessionPath, req, "", &session); err != nil {
		return contract.Session{}, err
	}
	if session.ID == "" || session.SessionData == "" {
		return contract.Session{}, ErrIncompleteSession
	}
	return session, nil
}

func (g *HTTPGateway) SubmitPayment(ctx context.Context, req contract.PaymentRequest, idempotencyKey string) (contract.Result, error) {
	var result contract.Result
	err := g.post(ctx, submitPaymentPath, req, idempotencyKey, &result)
	return result, err
}

func (g *HTTPGateway) SubmitDetails(ctx context.Context, req contract.DetailsRequest, idempotencyKey string) (contract.Result, error) {
	var result contract.Result
	err := g.post(ctx, submitDetailsPath, req, idempotencyKey, &result)
	return result, err
}

func (g *HTTPGateway) post(ctx context.Context, path string, payload any, idempotencyKey string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if g.cartID != "" {
		req.Header.Set("X-Cart-Id", g.cartID)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseReadLimit))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		gwErr := &GatewayError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var envelope contract.GatewayError
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
			gwErr.Message = envelope.Error
			gwErr.Details = envelope.Details
		}
		return gwErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
