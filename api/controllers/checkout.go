package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arrowtech/storefront/api/middleware"
	"github.com/arrowtech/storefront/api/responses"
	"github.com/arrowtech/storefront/api/validators"
	checkoutflow "github.com/arrowtech/storefront/internal/checkout"
	"github.com/arrowtech/storefront/pkg/adyen"
	"github.com/arrowtech/storefront/pkg/checkout"
	"github.com/arrowtech/storefront/pkg/config"
	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
	"github.com/arrowtech/storefront/pkg/logger"
)

const (
	msgSessionFailed   = "Failed to create payment session"
	msgPaymentFailed   = "Payment submission failed"
	msgDetailsFailed   = "Details submission failed"
	msgInternalError   = "Internal server error"
	msgProviderOffline = "Payment provider temporarily unavailable"
)

// CheckoutGateway relays checkout requests to the PSP and returns its body verbatim.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, req checkout.SessionRequest, idempotencyKey string) (json.RawMessage, error)
	SubmitPayment(ctx context.Context, req checkout.PaymentRequest, idempotencyKey string) (json.RawMessage, error)
	SubmitDetails(ctx context.Context, req checkout.DetailsRequest, idempotencyKey string) (json.RawMessage, error)
}

// CheckoutCreateSession handles POST /api/checkout/create-session.
func CheckoutCreateSession(svc CheckoutGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkout.SessionRequest
		if !decodeGatewayBody(w, r, &req) {
			return
		}
		body, err := svc.CreateSession(r.Context(), req, idempotencyKey(r))
		if err != nil {
			writeGatewayFailure(r.Context(), logg, w, err, msgSessionFailed)
			return
		}
		responses.WriteRaw(w, http.StatusOK, body)
	}
}

// CheckoutSubmitPayment handles POST /api/checkout/submit-payment.
func CheckoutSubmitPayment(svc CheckoutGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkout.PaymentRequest
		if !decodeGatewayBody(w, r, &req) {
			return
		}
		body, err := svc.SubmitPayment(r.Context(), req, idempotencyKey(r))
		if err != nil {
			writeGatewayFailure(r.Context(), logg, w, err, msgPaymentFailed)
			return
		}
		responses.WriteRaw(w, http.StatusOK, body)
	}
}

// CheckoutSubmitDetails handles POST /api/checkout/submit-details.
func CheckoutSubmitDetails(svc CheckoutGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkout.DetailsRequest
		if !decodeGatewayBody(w, r, &req) {
			return
		}
		body, err := svc.SubmitDetails(r.Context(), req, idempotencyKey(r))
		if err != nil {
			writeGatewayFailure(r.Context(), logg, w, err, msgDetailsFailed)
			return
		}
		responses.WriteRaw(w, http.StatusOK, body)
	}
}

type checkoutConfigResponse struct {
	ClientKey     string          `json:"clientKey"`
	Environment   string          `json:"environment"`
	Currency      string          `json:"currency"`
	CountryCode   string          `json:"countryCode"`
	ShopperLocale string          `json:"shopperLocale"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	ReturnURL     string          `json:"returnUrl"`
}

// CheckoutConfig exposes the public settings the payment widget needs.
func CheckoutConfig(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, checkoutConfigResponse{
			ClientKey:     cfg.Adyen.ClientKey,
			Environment:   cfg.Adyen.Environment(),
			Currency:      strings.ToUpper(cfg.Checkout.Currency),
			CountryCode:   cfg.Checkout.CountryCode,
			ShopperLocale: cfg.Checkout.ShopperLocale,
			TaxRate:       cfg.Checkout.TaxRateDecimal(),
			ReturnURL:     cfg.Checkout.ReturnURL,
		})
	}
}

type checkoutResultResponse struct {
	checkoutflow.ResultView
	PSPReference string `json:"pspReference,omitempty"`
}

// CheckoutResult returns the result page copy for the resultCode query parameter.
func CheckoutResult() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := validators.ParseQueryString(r, "resultCode", 64)
		responses.WriteSuccess(w, checkoutResultResponse{
			ResultView:   checkoutflow.Display(code),
			PSPReference: validators.ParseQueryString(r, "pspReference", 64),
		})
	}
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(middleware.IdempotencyKeyHeader))
}

func decodeGatewayBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := validators.DecodePassthroughBody(r, dest); err != nil {
		responses.WriteGatewayError(w, http.StatusBadRequest, "Invalid JSON body", nil)
		return false
	}
	return true
}

// writeGatewayFailure maps a gateway error to the flat gateway body: validation problems
// become 400, PSP rejections keep the provider's status and body, an open breaker is 503
// and everything else is a generic 500.
func writeGatewayFailure(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, failureMessage string) {
	var apiErr *adyen.APIError
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation):
		responses.WriteGatewayError(w, http.StatusBadRequest, pkgerrors.As(err).Message(), nil)
	case errors.As(err, &apiErr):
		responses.LogError(ctx, logg, err)
		details := apiErr.Body
		if len(details) == 0 {
			details = json.RawMessage(`{}`)
		}
		responses.WriteGatewayError(w, apiErr.Status, failureMessage, details)
	case pkgerrors.IsCode(err, pkgerrors.CodeDependency):
		responses.LogError(ctx, logg, err)
		responses.WriteGatewayError(w, http.StatusServiceUnavailable, msgProviderOffline, nil)
	default:
		responses.LogError(ctx, logg, err)
		responses.WriteGatewayError(w, http.StatusInternalServerError, msgInternalError, nil)
	}
}
