package checkout

// State is the orchestrator's position in a checkout attempt.
type State string

const (
	StateIdle                      State = "idle"
	StateCreatingSession           State = "creating_session"
	StateSessionReady              State = "session_ready"
	StateWidgetMounted             State = "widget_mounted"
	StateSubmitting                State = "submitting"
	StateAwaitingAdditionalDetails State = "awaiting_additional_details"
	StateSuccess                   State = "success"
	StatePending                   State = "pending"
	StateFailed                    State = "failed"
	StateError                     State = "error"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether the attempt has reached a result.
func (s State) Terminal() bool {
	switch s {
	case StateSuccess, StatePending, StateFailed, StateError:
		return true
	}
	return false
}

// acceptsSubmission reports whether the widget may submit from s. Failed stays interactive.
func (s State) acceptsSubmission() bool {
	return s == StateWidgetMounted || s == StateFailed
}

// NoticeKind classifies user-visible notifications.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeLoading NoticeKind = "loading"
)

// Notice is a toast-style message for the shopper.
type Notice struct {
	Kind    NoticeKind
	Message string
}

// Snapshot is a point-in-time copy of the orchestrator's visible state.
type Snapshot struct {
	State        State
	Message      string
	SessionID    string
	ResultCode   string
	PSPReference string
	InProgress   bool
	Succeeded    bool
}

const (
	MsgEmptyCart          = "Your cart is empty"
	MsgInitFailed         = "Failed to initialize payment. Please try again."
	MsgContainerNotFound  = "Payment container not found"
	MsgFieldsRequired     = "Please fill in all required fields"
	MsgPaymentSuccessful  = "Payment successful!"
	MsgPaymentPending     = "Payment pending..."
	MsgPaymentFailed      = "Payment failed. Please try again."
	MsgVerificationFailed = "Payment verification failed. Please try again."
	MsgWidgetError        = "Payment error occurred. Please try again."
)
