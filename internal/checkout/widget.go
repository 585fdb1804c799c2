package checkout

import (
	"context"
	"encoding/json"

	contract "github.com/arrowtech/storefront/pkg/checkout"
)

// SubmitState is what the widget hands over when the shopper confirms the payment form.
type SubmitState struct {
	Data    contract.PaymentData
	IsValid bool
}

// DetailsState carries the outcome of a challenge or redirect.
type DetailsState struct {
	Data json.RawMessage
}

type (
	SubmitHandler  func(ctx context.Context, state SubmitState) error
	DetailsHandler func(ctx context.Context, state DetailsState) error
	ErrorHandler   func(ctx context.Context, err error)
)

// Widget is the PSP-supplied payment UI bound to one session.
type Widget interface {
	Mount(ctx context.Context, target string) error
	OnSubmit(handler SubmitHandler)
	OnAdditionalDetails(handler DetailsHandler)
	HandleAction(ctx context.Context, action json.RawMessage) error
}

// Resetter is implemented by widgets that can clear their input without remounting.
type Resetter interface {
	Reset()
}

// Unmounter is implemented by widgets that hold resources while mounted.
type Unmounter interface {
	Unmount()
}

// ErrorReporter is implemented by widgets that surface their own internal errors.
type ErrorReporter interface {
	OnError(handler ErrorHandler)
}

// WidgetFactory builds a widget bound to session.
type WidgetFactory func(ctx context.Context, session contract.Session) (Widget, error)

// TargetLocator reports whether a mount target is present yet.
type TargetLocator interface {
	Available(target string) bool
}

// TargetLocatorFunc adapts a function to TargetLocator.
type TargetLocatorFunc func(target string) bool

func (f TargetLocatorFunc) Available(target string) bool { return f(target) }

// Notifier shows notices to the shopper.
type Notifier interface {
	Notify(notice Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Navigator moves the shopper to another view.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }
