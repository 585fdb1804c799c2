// Package checkout holds the JSON contract shared by the checkout gateways and their clients.
package checkout

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"
)

const (
	MaxLineItemIDLength          = 50
	MaxLineItemDescriptionLength = 256
)

// Amount is a PSP amount in minor units of Currency.
type Amount struct {
	Value    int64  `json:"value"`
	Currency string `json:"currency"`
}

// LineItem is one cart line as submitted to the PSP.
type LineItem struct {
	ID                 string `json:"id"`
	Description        string `json:"description"`
	AmountIncludingTax int64  `json:"amountIncludingTax"`
	Quantity           int    `json:"quantity"`
}

// Truncated clips the id and description to the PSP field limits without splitting runes.
func (l LineItem) Truncated() LineItem {
	l.ID = truncateRunes(l.ID, MaxLineItemIDLength)
	l.Description = truncateRunes(l.Description, MaxLineItemDescriptionLength)
	return l
}

// TruncateLineItems returns a copy of items with every line truncated.
func TruncateLineItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]LineItem, len(items))
	for i, item := range items {
		out[i] = item.Truncated()
	}
	return out
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}

// SessionRequest opens a payment session. On the wire the amount is accepted either as
// {"amount":{"value":..,"currency":..}} or as a bare minor-unit number with a sibling
// "currency"; line items may arrive as "lineItems" or "items".
type SessionRequest struct {
	Amount    Amount     `json:"amount"`
	ReturnURL string     `json:"returnUrl"`
	LineItems []LineItem `json:"lineItems,omitempty"`
}

type sessionRequestWire struct {
	Amount    json.RawMessage `json:"amount"`
	Currency  string          `json:"currency"`
	ReturnURL string          `json:"returnUrl"`
	LineItems []LineItem      `json:"lineItems"`
	Items     []LineItem      `json:"items"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *SessionRequest) UnmarshalJSON(data []byte) error {
	var wire sessionRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = SessionRequest{ReturnURL: wire.ReturnURL, LineItems: wire.LineItems}
	if len(r.LineItems) == 0 {
		r.LineItems = wire.Items
	}
	raw := bytes.TrimSpace(wire.Amount)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '{':
		if err := json.Unmarshal(raw, &r.Amount); err != nil {
			return err
		}
	default:
		if err := json.Unmarshal(raw, &r.Amount.Value); err != nil {
			return err
		}
	}
	if r.Amount.Currency == "" {
		r.Amount.Currency = wire.Currency
	}
	return nil
}

// Session is the subset of the PSP session object the storefront reads.
type Session struct {
	ID          string `json:"id"`
	SessionData string `json:"sessionData"`
	Amount      Amount `json:"amount"`
	Reference   string `json:"reference,omitempty"`
	ReturnURL   string `json:"returnUrl,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

// PaymentData is the payload collected by the payment widget.
type PaymentData struct {
	PaymentMethod json.RawMessage `json:"paymentMethod"`
	BrowserInfo   json.RawMessage `json:"browserInfo,omitempty"`
	Amount        *Amount         `json:"amount,omitempty"`
	ReturnURL     string          `json:"returnUrl,omitempty"`
	Origin        string          `json:"origin,omitempty"`
}

// PaymentRequest submits a collected payment method against a session.
type PaymentRequest struct {
	SessionID   string       `json:"sessionId"`
	PaymentData *PaymentData `json:"paymentData"`
	Amount      *Amount      `json:"amount,omitempty"`
}

// ResolvedAmount prefers the amount collected by the widget over the request-level one.
func (r PaymentRequest) ResolvedAmount() *Amount {
	if r.PaymentData != nil && r.PaymentData.Amount != nil {
		return r.PaymentData.Amount
	}
	return r.Amount
}

// DetailsRequest relays an additional-details (challenge/redirect) payload.
type DetailsRequest struct {
	SessionID string          `json:"sessionId,omitempty"`
	Details   json.RawMessage `json:"details"`
}

// Result is a PSP payment outcome. Action is set when the shopper has another step to complete.
type Result struct {
	ResultCode        string          `json:"resultCode"`
	PSPReference      string          `json:"pspReference,omitempty"`
	RefusalReason     string          `json:"refusalReason,omitempty"`
	RefusalReasonCode string          `json:"refusalReasonCode,omitempty"`
	MerchantReference string          `json:"merchantReference,omitempty"`
	Action            json.RawMessage `json:"action,omitempty"`
}

// HasAction reports whether the result carries a non-null action descriptor.
func (r Result) HasAction() bool {
	raw := bytes.TrimSpace(r.Action)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// GatewayError is the body returned by the gateways on failure.
type GatewayError struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
	Status  int             `json:"status,omitempty"`
}
