package checkout

import (
	"strings"

	contract "github.com/arrowtech/storefront/pkg/checkout"
	"github.com/arrowtech/storefront/pkg/enums"
)

// Outcome is the interpretation of a terminal PSP result.
type Outcome struct {
	State        State
	Notice       Notice
	ResultCode   string
	PSPReference string
	ResetWidget  bool
}

type refusal struct {
	message     string
	recoverable bool
}

// refusalMessages is keyed by the PSP's refusalReason text.
var refusalMessages = map[string]refusal{
	"CVC Declined": {
		message:     "The security code (CVC) was declined. Please check the 3 or 4 digit code on your card and try again.",
		recoverable: true,
	},
	"Refused": {
		message:     "Your payment was declined by your bank. Please check your payment details or try a different payment method.",
		recoverable: true,
	},
	"Expired Card":               {message: "Your card has expired. Please use a different card."},
	"Not enough balance":         {message: "Your card has insufficient funds. Please use a different payment method."},
	"Invalid Card Number":        {message: "The card number is invalid. Please check it and try again."},
	"Blocked Card":               {message: "This card is blocked. Please use a different payment method."},
	"3D Not Authenticated":       {message: "Card authentication failed. Please try again or use a different card."},
	"Issuer Unavailable":         {message: "Your bank could not be reached. Please try again in a few minutes."},
	"Withdrawal amount exceeded": {message: "This payment exceeds your card limit. Please use a different payment method."},
	"Withdrawal count exceeded":  {message: "This payment exceeds your card limit. Please use a different payment method."},
	"FRAUD":                      {message: "The payment could not be completed. Please use a different payment method."},
	"Shopper Cancelled":          {message: "The payment was cancelled."},
}

// RefusalMessage resolves the shopper-facing text for a refusal reason: the table entry,
// then the raw reason, then the generic failure message.
func RefusalMessage(reason string) (message string, recoverable bool) {
	reason = strings.TrimSpace(reason)
	if r, ok := refusalMessages[reason]; ok {
		return r.message, r.recoverable
	}
	if reason != "" {
		return reason, false
	}
	return MsgPaymentFailed, false
}

// Reconcile maps a terminal PSP result to the next state. It has no side effects.
func Reconcile(result contract.Result) Outcome {
	code := enums.ResultCode(result.ResultCode)
	out := Outcome{ResultCode: result.ResultCode, PSPReference: result.PSPReference}
	switch {
	case code.IsSuccess():
		out.State = StateSuccess
		out.Notice = Notice{Kind: NoticeSuccess, Message: MsgPaymentSuccessful}
	case code == enums.ResultCodePending:
		out.State = StatePending
		out.Notice = Notice{Kind: NoticeLoading, Message: MsgPaymentPending}
	default:
		out.State = StateFailed
		msg, recoverable := RefusalMessage(result.RefusalReason)
		if result.RefusalReason == "" && code == enums.ResultCodeRefused {
			msg, recoverable = RefusalMessage(string(enums.ResultCodeRefused))
		}
		out.Notice = Notice{Kind: NoticeError, Message: msg}
		out.ResetWidget = recoverable
	}
	return out
}
