package checkout

import "github.com/arrowtech/storefront/pkg/enums"

// ResultView is the copy shown on the result page for a result code.
type ResultView struct {
	ResultCode string `json:"resultCode"`
	Status     string `json:"status"`
	Title      string `json:"title"`
	Message    string `json:"message"`
}

var resultViews = map[enums.ResultCode]ResultView{
	enums.ResultCodeAuthorised: {
		Status:  "success",
		Title:   "Payment Successful!",
		Message: "Thank you for your purchase. Your order has been confirmed and is being prepared for shipment.",
	},
	enums.ResultCodeReceived: {
		Status:  "success",
		Title:   "Payment Received!",
		Message: "Your payment has been received and is being processed. We'll send you a confirmation email shortly.",
	},
	enums.ResultCodePending: {
		Status:  "pending",
		Title:   "Payment Pending",
		Message: "Your payment is being processed. This may take a few minutes. You'll receive an email confirmation once completed.",
	},
	enums.ResultCodeRefused: {
		Status:  "failed",
		Title:   "Payment Declined",
		Message: "Your payment was declined by your bank. Please check your payment details or try a different payment method.",
	},
	enums.ResultCodeCancelled: {
		Status:  "cancelled",
		Title:   "Payment Cancelled",
		Message: "Your payment was cancelled. Your items are still in your cart if you'd like to try again.",
	},
	enums.ResultCodeError: {
		Status:  "error",
		Title:   "Payment Error",
		Message: "An error occurred while processing your payment. Please try again or contact support if the problem persists.",
	},
}

var unknownResultView = ResultView{
	Status:  "unknown",
	Title:   "Unknown Status",
	Message: "We couldn't determine your payment status. Please contact support for assistance.",
}

// Display returns the result page copy for resultCode.
func Display(resultCode string) ResultView {
	view, ok := resultViews[enums.ResultCode(resultCode)]
	if !ok {
		view = unknownResultView
	}
	view.ResultCode = resultCode
	return view
}
