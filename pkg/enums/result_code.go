package enums

import "fmt"

// ResultCode is the PSP's classification of a payment attempt.
type ResultCode string

const (
	ResultCodeAuthorised       ResultCode = "Authorised"
	ResultCodeReceived         ResultCode = "Received"
	ResultCodePending          ResultCode = "Pending"
	ResultCodeRefused          ResultCode = "Refused"
	ResultCodeCancelled        ResultCode = "Cancelled"
	ResultCodeError            ResultCode = "Error"
	ResultCodeRedirectShopper  ResultCode = "RedirectShopper"
	ResultCodeIdentifyShopper  ResultCode = "IdentifyShopper"
	ResultCodeChallengeShopper ResultCode = "ChallengeShopper"
	ResultCodePresentToShopper ResultCode = "PresentToShopper"
)

var validResultCodes = []ResultCode{
	ResultCodeAuthorised,
	ResultCodeReceived,
	ResultCodePending,
	ResultCodeRefused,
	ResultCodeCancelled,
	ResultCodeError,
	ResultCodeRedirectShopper,
	ResultCodeIdentifyShopper,
	ResultCodeChallengeShopper,
	ResultCodePresentToShopper,
}

// String implements fmt.Stringer.
func (r ResultCode) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ResultCode.
func (r ResultCode) IsValid() bool {
	for _, candidate := range validResultCodes {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsSuccess reports whether the payment went through (Authorised or Received).
func (r ResultCode) IsSuccess() bool {
	return r == ResultCodeAuthorised || r == ResultCodeReceived
}

// RequiresAction reports whether the shopper must complete an extra step.
func (r ResultCode) RequiresAction() bool {
	switch r {
	case ResultCodeRedirectShopper, ResultCodeIdentifyShopper, ResultCodeChallengeShopper, ResultCodePresentToShopper:
		return true
	}
	return false
}

// ParseResultCode converts raw input into a ResultCode.
func ParseResultCode(value string) (ResultCode, error) {
	for _, candidate := range validResultCodes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid result code %q", value)
}
