package adyen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a non-2xx response from the Checkout API. Body holds the provider payload
// so gateways can forward it untouched.
type APIError struct {
	Status       int
	Body         json.RawMessage
	ErrorCode    string
	ErrorType    string
	Message      string
	PSPReference string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.ErrorCode != "" {
		return fmt.Sprintf("adyen status %d (%s): %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("adyen status %d: %s", e.Status, e.Message)
}

// UpstreamStatus returns the HTTP status reported by the provider.
func (e *APIError) UpstreamStatus() int { return e.Status }

// UpstreamCode returns the provider error code, e.g. "14_030".
func (e *APIError) UpstreamCode() string { return e.ErrorCode }

// Transient reports whether the provider failed on its side.
func (e *APIError) Transient() bool { return e.Status >= http.StatusInternalServerError }

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status, Body: jsonBody(body)}
	var payload struct {
		Status       int    `json:"status"`
		ErrorCode    string `json:"errorCode"`
		Message      string `json:"message"`
		ErrorType    string `json:"errorType"`
		PSPReference string `json:"pspReference"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.ErrorCode = payload.ErrorCode
		apiErr.ErrorType = payload.ErrorType
		apiErr.Message = payload.Message
		apiErr.PSPReference = payload.PSPReference
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// jsonBody returns body when it is valid JSON, otherwise the text encoded as a JSON string.
func jsonBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	encoded, _ := json.Marshal(string(trimmed))
	return encoded
}
