// Package gateway relays checkout requests to the payment service provider.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arrowtech/storefront/pkg/checkout"
	"github.com/arrowtech/storefront/pkg/config"
	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
	"github.com/arrowtech/storefront/pkg/logger"
)

const channelWeb = "Web"

// PSPClient is the Checkout API surface used by the gateways.
type PSPClient interface {
	CreateSession(ctx context.Context, payload any, idempotencyKey string) (json.RawMessage, error)
	Payments(ctx context.Context, payload any, idempotencyKey string) (json.RawMessage, error)
	PaymentDetails(ctx context.Context, payload any, idempotencyKey string) (json.RawMessage, error)
	MerchantAccount() string
}

// Service validates gateway requests, enriches them with deployment settings and
// returns the PSP body untouched.
type Service struct {
	psp   PSPClient
	cfg   config.CheckoutConfig
	logg  *logger.Logger
	now   func() time.Time
	newID func() string
}

// NewService builds the gateway service.
func NewService(psp PSPClient, cfg config.CheckoutConfig, logg *logger.Logger) (*Service, error) {
	if psp == nil {
		return nil, errors.New("psp client required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		psp:   psp,
		cfg:   cfg,
		logg:  logg,
		now:   time.Now,
		newID: uuid.NewString,
	}, nil
}

type sessionPayload struct {
	Amount          checkout.Amount     `json:"amount"`
	Reference       string              `json:"reference"`
	ReturnURL       string              `json:"returnUrl"`
	MerchantAccount string              `json:"merchantAccount"`
	CountryCode     string              `json:"countryCode"`
	ShopperLocale   string              `json:"shopperLocale"`
	Channel         string              `json:"channel"`
	Metadata        map[string]string   `json:"metadata,omitempty"`
	LineItems       []checkout.LineItem `json:"lineItems,omitempty"`
}

// CreateSession opens a PSP session for req.
func (s *Service) CreateSession(ctx context.Context, req checkout.SessionRequest, idempotencyKey string) (json.RawMessage, error) {
	if err := checkout.ValidateSessionRequest(req); err != nil {
		return nil, err
	}
	payload := sessionPayload{
		Amount: checkout.Amount{
			Value:    req.Amount.Value,
			Currency: strings.ToUpper(strings.TrimSpace(req.Amount.Currency)),
		},
		Reference:       s.orderReference(),
		ReturnURL:       req.ReturnURL,
		MerchantAccount: s.psp.MerchantAccount(),
		CountryCode:     s.cfg.CountryCode,
		ShopperLocale:   s.cfg.ShopperLocale,
		Channel:         channelWeb,
		LineItems:       checkout.TruncateLineItems(req.LineItems),
	}
	if s.cfg.IntegrationType != "" {
		payload.Metadata = map[string]string{"integrationType": s.cfg.IntegrationType}
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"reference": payload.Reference,
		"amount":    payload.Amount.Value,
		"currency":  payload.Amount.Currency,
		"lines":     len(payload.LineItems),
	})
	body, err := s.psp.CreateSession(ctx, payload, idempotencyKey)
	if err != nil {
		return nil, err
	}
	var session checkout.Session
	if jsonErr := json.Unmarshal(body, &session); jsonErr == nil && session.ID != "" {
		ctx = s.logg.WithSessionID(ctx, session.ID)
	}
	s.logg.Info(ctx, "payment session created")
	return body, nil
}

type paymentPayload struct {
	MerchantAccount string           `json:"merchantAccount"`
	PaymentMethod   json.RawMessage  `json:"paymentMethod,omitempty"`
	Amount          *checkout.Amount `json:"amount,omitempty"`
	Reference       string           `json:"reference"`
	ReturnURL       string           `json:"returnUrl"`
	Channel         string           `json:"channel"`
	BrowserInfo     json.RawMessage  `json:"browserInfo,omitempty"`
	Origin          string           `json:"origin,omitempty"`
}

// SubmitPayment sends the widget's payment data to /payments.
func (s *Service) SubmitPayment(ctx context.Context, req checkout.PaymentRequest, idempotencyKey string) (json.RawMessage, error) {
	if err := checkout.ValidatePaymentRequest(req); err != nil {
		return nil, err
	}
	data := req.PaymentData
	returnURL := strings.TrimSpace(data.ReturnURL)
	if returnURL == "" {
		returnURL = s.cfg.ReturnURL
	}
	payload := paymentPayload{
		MerchantAccount: s.psp.MerchantAccount(),
		PaymentMethod:   data.PaymentMethod,
		Amount:          req.ResolvedAmount(),
		Reference:       fmt.Sprintf("payment-%d", s.now().UnixMilli()),
		ReturnURL:       returnURL,
		Channel:         channelWeb,
		BrowserInfo:     data.BrowserInfo,
		Origin:          data.Origin,
	}

	ctx = s.logg.WithSessionID(ctx, req.SessionID)
	ctx = s.logg.WithField(ctx, "reference", payload.Reference)
	body, err := s.psp.Payments(ctx, payload, idempotencyKey)
	if err != nil {
		return nil, err
	}
	s.logResult(ctx, "payment submitted", body)
	return body, nil
}

// SubmitDetails relays an additional-details payload to /payments/details. The payload may
// be the widget state ({"details":{...},"paymentData":"..."}) or the bare details object.
func (s *Service) SubmitDetails(ctx context.Context, req checkout.DetailsRequest, idempotencyKey string) (json.RawMessage, error) {
	if err := checkout.ValidateDetailsRequest(req); err != nil {
		return nil, err
	}
	payload, err := detailsPayload(req.Details)
	if err != nil {
		return nil, err
	}
	if req.SessionID != "" {
		ctx = s.logg.WithSessionID(ctx, req.SessionID)
	}
	body, err := s.psp.PaymentDetails(ctx, payload, idempotencyKey)
	if err != nil {
		return nil, err
	}
	s.logResult(ctx, "payment details submitted", body)
	return body, nil
}

func detailsPayload(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, checkout.MsgDetailsRequired)
	}
	payload := make(map[string]json.RawMessage, 2)
	if inner, ok := outer["details"]; ok && isObject(inner) {
		payload["details"] = inner
	} else {
		details := make(map[string]json.RawMessage, len(outer))
		for k, v := range outer {
			if k != "paymentData" {
				details[k] = v
			}
		}
		encoded, err := json.Marshal(details)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode details")
		}
		payload["details"] = encoded
	}
	if paymentData, ok := outer["paymentData"]; ok && !isNull(paymentData) {
		payload["paymentData"] = paymentData
	}
	return payload, nil
}

func (s *Service) logResult(ctx context.Context, msg string, body json.RawMessage) {
	var result checkout.Result
	if err := json.Unmarshal(body, &result); err == nil {
		ctx = s.logg.WithPSPReference(ctx, result.PSPReference)
		ctx = s.logg.WithFields(ctx, map[string]any{
			"result_code": result.ResultCode,
			"has_action":  result.HasAction(),
		})
	}
	s.logg.Info(ctx, msg)
}

// orderReference mirrors "order-<unix ms>-<9 random chars>".
func (s *Service) orderReference() string {
	suffix := strings.ReplaceAll(s.newID(), "-", "")
	if len(suffix) > 9 {
		suffix = suffix[:9]
	}
	return fmt.Sprintf("order-%d-%s", s.now().UnixMilli(), suffix)
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
