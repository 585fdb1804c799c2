package types

import "encoding/json"

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// GatewayError is the flat error body of the checkout gateway endpoints. Details and
// Status are only set when forwarding a PSP rejection.
type GatewayError struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
	Status  int             `json:"status,omitempty"`
}
