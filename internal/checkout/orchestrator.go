// Package checkout drives one shopper's checkout attempt: it opens a payment session,
// mounts the PSP widget, relays submissions and reconciles results into cart and UI state.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arrowtech/storefront/internal/cart"
	contract "github.com/arrowtech/storefront/pkg/checkout"
	"github.com/arrowtech/storefront/pkg/logger"
	"github.com/arrowtech/storefront/pkg/money"
)

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrMountTargetUnavailable = errors.New("mount target unavailable")
	ErrSubmissionInProgress   = errors.New("submission already in progress")
	ErrNoSession              = errors.New("no active payment session")
	ErrInvalidPaymentInput    = errors.New("payment input is incomplete")
	ErrNotAccepting           = errors.New("checkout is not accepting this step")
	ErrAlreadyStarted         = errors.New("checkout already started")
	// ErrStale is returned by continuations that finish after Close.
	ErrStale = errors.New("checkout attempt is no longer current")
)

const (
	DefaultMountTarget   = "#dropin-container"
	DefaultMountAttempts = 15
	DefaultMountInterval = 100 * time.Millisecond
	DefaultCartRoute     = "/cart"
	DefaultResultRoute   = "/checkout/result"
)

// Cart is the part of the cart store the orchestrator reads and clears.
type Cart interface {
	Items() []cart.Item
	Total() decimal.Decimal
	ClearCart(ctx context.Context) error
}

// Config holds the regional and UI settings of a checkout.
type Config struct {
	Currency      string
	TaxRate       decimal.Decimal
	ReturnURL     string
	MountTarget   string
	MountAttempts int
	MountInterval time.Duration
	CartRoute     string
	ResultRoute   string
}

func (c Config) withDefaults() Config {
	if c.MountTarget == "" {
		c.MountTarget = DefaultMountTarget
	}
	if c.MountAttempts <= 0 {
		c.MountAttempts = DefaultMountAttempts
	}
	if c.MountInterval <= 0 {
		c.MountInterval = DefaultMountInterval
	}
	if c.CartRoute == "" {
		c.CartRoute = DefaultCartRoute
	}
	if c.ResultRoute == "" {
		c.ResultRoute = DefaultResultRoute
	}
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	return c
}

// Dependencies are the collaborators of an Orchestrator. Notifier, Navigator and Logger
// are optional.
type Dependencies struct {
	Cart      Cart
	Gateway   Gateway
	Widgets   WidgetFactory
	Targets   TargetLocator
	Notifier  Notifier
	Navigator Navigator
	Logger    *logger.Logger
}

// Orchestrator is safe for use from widget callbacks on any goroutine. Network calls run
// without holding the lock and every continuation checks that its attempt is still current.
type Orchestrator struct {
	cfg  Config
	deps Dependencies

	newKey func() string
	sleep  func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	generation uint64
	state      State
	message    string
	session    *contract.Session
	widget     Widget
	inProgress bool
	succeeded  bool
	resultCode string
	pspRef     string
}

// New validates deps and returns an idle orchestrator.
func New(cfg Config, deps Dependencies) (*Orchestrator, error) {
	switch {
	case deps.Cart == nil:
		return nil, errors.New("cart required")
	case deps.Gateway == nil:
		return nil, errors.New("gateway required")
	case deps.Widgets == nil:
		return nil, errors.New("widget factory required")
	case deps.Targets == nil:
		return nil, errors.New("target locator required")
	}
	cfg = cfg.withDefaults()
	if cfg.Currency == "" {
		return nil, errors.New("currency required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		newKey: uuid.NewString,
		sleep:  sleepContext,
		state:  StateIdle,
	}, nil
}

// Snapshot returns a copy of the visible state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{
		State:        o.state,
		Message:      o.message,
		ResultCode:   o.resultCode,
		PSPReference: o.pspRef,
		InProgress:   o.inProgress,
		Succeeded:    o.succeeded,
	}
	if o.session != nil {
		snap.SessionID = o.session.ID
	}
	return snap
}

// Start opens a session and mounts the widget. After a successful payment it does
// nothing, even though the cart is empty by then.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.succeeded {
		o.mu.Unlock()
		return nil
	}
	if o.state != StateIdle && o.state != StateError {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	items := o.deps.Cart.Items()
	total := o.deps.Cart.Total()
	if len(items) == 0 || !total.IsPositive() {
		o.state = StateIdle
		o.message = MsgEmptyCart
		o.mu.Unlock()
		o.notify(NoticeError, MsgEmptyCart)
		o.navigate(o.cfg.CartRoute)
		return ErrEmptyCart
	}
	o.generation++
	gen := o.generation
	o.state = StateCreatingSession
	o.message = ""
	o.mu.Unlock()

	req := o.sessionRequest(items, total)
	ctx = o.deps.Logger.WithFields(ctx, map[string]any{
		"amount":   req.Amount.Value,
		"currency": req.Amount.Currency,
	})
	session, err := o.deps.Gateway.CreateSession(ctx, req)
	if err != nil {
		return o.fail(ctx, gen, nil, MsgInitFailed, fmt.Errorf("create session: %w", err))
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return ErrStale
	}
	o.session = &session
	o.state = StateSessionReady
	o.mu.Unlock()
	ctx = o.deps.Logger.WithSessionID(ctx, session.ID)

	widget, err := o.deps.Widgets(ctx, session)
	if err != nil {
		return o.fail(ctx, gen, nil, MsgInitFailed, fmt.Errorf("build widget: %w", err))
	}
	widget.OnSubmit(func(ctx context.Context, state SubmitState) error {
		return o.submit(ctx, gen, state)
	})
	widget.OnAdditionalDetails(func(ctx context.Context, state DetailsState) error {
		return o.submitDetails(ctx, gen, state)
	})
	if reporter, ok := widget.(ErrorReporter); ok {
		reporter.OnError(func(ctx context.Context, err error) {
			o.widgetError(ctx, gen, err)
		})
	}

	if err := o.awaitTarget(ctx); err != nil {
		return o.fail(ctx, gen, widget, MsgContainerNotFound, err)
	}
	if err := widget.Mount(ctx, o.cfg.MountTarget); err != nil {
		return o.fail(ctx, gen, widget, MsgInitFailed, fmt.Errorf("mount widget: %w", err))
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		unmount(widget)
		return ErrStale
	}
	o.widget = widget
	o.state = StateWidgetMounted
	o.mu.Unlock()
	o.deps.Logger.Info(ctx, "payment widget mounted")
	return nil
}

// Close ends the attempt: the widget is unmounted and late continuations are discarded.
// Unless the payment succeeded the orchestrator is idle again and may be restarted.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.generation++
	widget := o.widget
	o.widget = nil
	o.session = nil
	o.inProgress = false
	if !o.succeeded {
		o.state = StateIdle
		o.message = ""
	}
	o.mu.Unlock()
	unmount(widget)
}

func (o *Orchestrator) submit(ctx context.Context, gen uint64, state SubmitState) error {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return ErrStale
	}
	if o.inProgress {
		o.mu.Unlock()
		return ErrSubmissionInProgress
	}
	if o.session == nil {
		o.mu.Unlock()
		return ErrNoSession
	}
	if !o.state.acceptsSubmission() {
		o.mu.Unlock()
		return ErrNotAccepting
	}
	if !state.IsValid {
		o.mu.Unlock()
		o.notify(NoticeError, MsgFieldsRequired)
		return ErrInvalidPaymentInput
	}
	o.inProgress = true
	o.state = StateSubmitting
	o.message = ""
	session := *o.session
	o.mu.Unlock()

	data := state.Data
	amount := session.Amount
	req := contract.PaymentRequest{SessionID: session.ID, PaymentData: &data, Amount: &amount}
	ctx = o.deps.Logger.WithSessionID(ctx, session.ID)
	result, err := o.deps.Gateway.SubmitPayment(ctx, req, o.newKey())
	if err != nil {
		return o.recoverStep(ctx, gen, MsgPaymentFailed, fmt.Errorf("submit payment: %w", err))
	}
	return o.handleResult(ctx, gen, result)
}

func (o *Orchestrator) submitDetails(ctx context.Context, gen uint64, state DetailsState) error {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return ErrStale
	}
	if o.session == nil {
		o.mu.Unlock()
		return ErrNoSession
	}
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return ErrSubmissionInProgress
	}
	if o.state != StateAwaitingAdditionalDetails {
		o.mu.Unlock()
		return ErrNotAccepting
	}
	o.state = StateSubmitting
	session := *o.session
	o.mu.Unlock()

	req := contract.DetailsRequest{SessionID: session.ID, Details: state.Data}
	ctx = o.deps.Logger.WithSessionID(ctx, session.ID)
	result, err := o.deps.Gateway.SubmitDetails(ctx, req, o.newKey())
	if err != nil {
		return o.recoverStep(ctx, gen, MsgVerificationFailed, fmt.Errorf("submit details: %w", err))
	}
	return o.handleResult(ctx, gen, result)
}

// handleResult either hands an action back to the widget or reconciles a terminal result.
func (o *Orchestrator) handleResult(ctx context.Context, gen uint64, result contract.Result) error {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return ErrStale
	}
	if result.HasAction() {
		o.state = StateAwaitingAdditionalDetails
		widget := o.widget
		o.mu.Unlock()
		if widget == nil {
			return o.recoverStep(ctx, gen, MsgWidgetError, errors.New("widget not mounted"))
		}
		if err := widget.HandleAction(ctx, result.Action); err != nil {
			return o.recoverStep(ctx, gen, MsgWidgetError, fmt.Errorf("handle action: %w", err))
		}
		return nil
	}

	outcome := Reconcile(result)
	o.state = outcome.State
	o.message = outcome.Notice.Message
	o.resultCode = outcome.ResultCode
	o.pspRef = outcome.PSPReference
	o.inProgress = false
	if outcome.State == StateSuccess {
		o.succeeded = true
	}
	widget := o.widget
	o.mu.Unlock()

	ctx = o.deps.Logger.WithPSPReference(ctx, outcome.PSPReference)
	ctx = o.deps.Logger.WithField(ctx, "result_code", outcome.ResultCode)
	switch outcome.State {
	case StateSuccess:
		if err := o.deps.Cart.ClearCart(ctx); err != nil {
			o.deps.Logger.Error(ctx, "clear cart after payment", err)
		}
		o.deps.Logger.Info(ctx, "payment succeeded")
		o.notify(outcome.Notice.Kind, outcome.Notice.Message)
		o.navigate(o.resultRoute(outcome))
	case StatePending:
		o.deps.Logger.Info(ctx, "payment pending")
		o.notify(outcome.Notice.Kind, outcome.Notice.Message)
	default:
		o.deps.Logger.Warn(ctx, "payment refused")
		if outcome.ResetWidget {
			if r, ok := widget.(Resetter); ok {
				r.Reset()
			}
		}
		o.notify(outcome.Notice.Kind, outcome.Notice.Message)
	}
	return nil
}

func (o *Orchestrator) widgetError(ctx context.Context, gen uint64, err error) {
	_ = o.recoverStep(ctx, gen, MsgWidgetError, fmt.Errorf("widget: %w", err))
}

// recoverStep handles a failed network call or widget error after the session exists: the
// session is kept and the widget becomes interactive again.
func (o *Orchestrator) recoverStep(ctx context.Context, gen uint64, message string, cause error) error {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return ErrStale
	}
	o.inProgress = false
	if o.widget != nil && !o.succeeded {
		o.state = StateWidgetMounted
	}
	o.message = message
	o.mu.Unlock()
	o.deps.Logger.Error(ctx, "checkout step failed", cause)
	o.notify(NoticeError, message)
	return cause
}

// fail ends the attempt in the error state and drops the session. The attempt's
// generation is retired so callbacks of a widget built for it are discarded.
func (o *Orchestrator) fail(ctx context.Context, gen uint64, widget Widget, message string, cause error) error {
	unmount(widget)
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return ErrStale
	}
	o.generation++
	o.state = StateError
	o.message = message
	o.session = nil
	o.inProgress = false
	o.mu.Unlock()
	o.deps.Logger.Error(ctx, "checkout initialization failed", cause)
	o.notify(NoticeError, message)
	return cause
}

func (o *Orchestrator) awaitTarget(ctx context.Context) error {
	for attempt := 1; attempt <= o.cfg.MountAttempts; attempt++ {
		if o.deps.Targets.Available(o.cfg.MountTarget) {
			return nil
		}
		if attempt == o.cfg.MountAttempts {
			break
		}
		if err := o.sleep(ctx, o.cfg.MountInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrMountTargetUnavailable, o.cfg.MountTarget, o.cfg.MountAttempts)
}

func (o *Orchestrator) sessionRequest(items []cart.Item, total decimal.Decimal) contract.SessionRequest {
	lines := make([]contract.LineItem, 0, len(items))
	for _, item := range items {
		lines = append(lines, contract.LineItem{
			ID:                 item.ID,
			Description:        item.Name,
			AmountIncludingTax: money.ToMinorUnits(money.WithTax(item.Subtotal(), o.cfg.TaxRate), o.cfg.Currency),
			Quantity:           item.Quantity,
		}.Truncated())
	}
	return contract.SessionRequest{
		Amount: contract.Amount{
			Value:    money.ToMinorUnits(money.WithTax(total, o.cfg.TaxRate), o.cfg.Currency),
			Currency: o.cfg.Currency,
		},
		ReturnURL: o.cfg.ReturnURL,
		LineItems: lines,
	}
}

func (o *Orchestrator) resultRoute(outcome Outcome) string {
	q := url.Values{}
	q.Set("resultCode", outcome.ResultCode)
	if outcome.PSPReference != "" {
		q.Set("pspReference", outcome.PSPReference)
	}
	return o.cfg.ResultRoute + "?" + q.Encode()
}

func (o *Orchestrator) notify(kind NoticeKind, message string) {
	if o.deps.Notifier != nil {
		o.deps.Notifier.Notify(Notice{Kind: kind, Message: message})
	}
}

func (o *Orchestrator) navigate(route string) {
	if o.deps.Navigator != nil {
		o.deps.Navigator.Navigate(route)
	}
}

func unmount(widget Widget) {
	if u, ok := widget.(Unmounter); ok {
		u.Unmount()
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
