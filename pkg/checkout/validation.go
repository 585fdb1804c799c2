package checkout

import (
	"bytes"
	"strings"

	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
)

const (
	MsgSessionFieldsRequired = "Amount, currency, and returnUrl are required"
	MsgPaymentFieldsRequired = "Session ID and payment data are required"
	MsgDetailsRequired       = "Payment details are required"
)

// ValidateSessionRequest rejects requests missing a positive amount, a currency or a return URL.
func ValidateSessionRequest(req SessionRequest) error {
	var missing []string
	if req.Amount.Value <= 0 {
		missing = append(missing, "amount")
	}
	if strings.TrimSpace(req.Amount.Currency) == "" {
		missing = append(missing, "currency")
	}
	if strings.TrimSpace(req.ReturnURL) == "" {
		missing = append(missing, "returnUrl")
	}
	return missingFields(MsgSessionFieldsRequired, missing)
}

// ValidatePaymentRequest requires a session id and a payment data object.
func ValidatePaymentRequest(req PaymentRequest) error {
	var missing []string
	if strings.TrimSpace(req.SessionID) == "" {
		missing = append(missing, "sessionId")
	}
	if req.PaymentData == nil {
		missing = append(missing, "paymentData")
	}
	return missingFields(MsgPaymentFieldsRequired, missing)
}

// ValidateDetailsRequest requires a details payload; the session id is optional.
func ValidateDetailsRequest(req DetailsRequest) error {
	raw := bytes.TrimSpace(req.Details)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`""`)) {
		return missingFields(MsgDetailsRequired, []string{"details"})
	}
	return nil
}

func missingFields(message string, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(map[string]any{
		"missing": fields,
	})
}
