package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowtech/storefront/internal/cart"
	contract "github.com/arrowtech/storefront/pkg/checkout"
)

type fakeGateway struct {
	mu sync.Mutex

	session    contract.Session
	sessionErr error
	sessions   []contract.SessionRequest

	paymentResults []contract.Result
	paymentErr     error
	payments       []contract.PaymentRequest
	keys           []string

	detailsResult contract.Result
	detailsErr    error
	details       []contract.DetailsRequest

	// when set, SubmitPayment signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
	// same for SubmitDetails.
	detailsEntered chan struct{}
	detailsRelease chan struct{}
}

func (g *fakeGateway) CreateSession(_ context.Context, req contract.SessionRequest) (contract.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = append(g.sessions, req)
	if g.sessionErr != nil {
		return contract.Session{}, g.sessionErr
	}
	s := g.session
	s.Amount = req.Amount
	return s, nil
}

func (g *fakeGateway) SubmitPayment(_ context.Context, req contract.PaymentRequest, key string) (contract.Result, error) {
	if g.entered != nil {
		g.entered <- struct{}{}
		<-g.release
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payments = append(g.payments, req)
	g.keys = append(g.keys, key)
	if g.paymentErr != nil {
		return contract.Result{}, g.paymentErr
	}
	if len(g.paymentResults) == 0 {
		return contract.Result{}, errors.New("no scripted result")
	}
	res := g.paymentResults[0]
	g.paymentResults = g.paymentResults[1:]
	return res, nil
}

func (g *fakeGateway) SubmitDetails(_ context.Context, req contract.DetailsRequest, key string) (contract.Result, error) {
	if g.detailsEntered != nil {
		g.detailsEntered <- struct{}{}
		<-g.detailsRelease
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.details = append(g.details, req)
	g.keys = append(g.keys, key)
	return g.detailsResult, g.detailsErr
}

func (g *fakeGateway) sessionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sessions)
}

func (g *fakeGateway) paymentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.payments)
}

func (g *fakeGateway) detailsCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.details)
}

type fakeWidget struct {
	mu       sync.Mutex
	submit   SubmitHandler
	details  DetailsHandler
	onError  ErrorHandler
	target   string
	actions  []json.RawMessage
	resets   int
	unmounts int
}

func (w *fakeWidget) Mount(_ context.Context, target string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = target
	return nil
}

func (w *fakeWidget) OnSubmit(h SubmitHandler)            { w.submit = h }
func (w *fakeWidget) OnAdditionalDetails(h DetailsHandler) { w.details = h }
func (w *fakeWidget) OnError(h ErrorHandler)              { w.onError = h }

func (w *fakeWidget) HandleAction(_ context.Context, action json.RawMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.actions = append(w.actions, action)
	return nil
}

func (w *fakeWidget) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resets++
}

func (w *fakeWidget) Unmount() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.unmounts++
}

type harness struct {
	orch    *Orchestrator
	cart    *cart.Store
	gateway *fakeGateway
	widget  *fakeWidget
	built   int
	probes  int

	mu      sync.Mutex
	notices []Notice
	routes  []string
}

func (h *harness) lastNotice() Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.notices) == 0 {
		return Notice{}
	}
	return h.notices[len(h.notices)-1]
}

func (h *harness) navigated() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.routes...)
}

func newHarness(t *testing.T, available func(probe int) bool) *harness {
	t.Helper()
	h := &harness{
		cart:    cart.NewStore("cart-1", cart.NewMemoryPersistence()),
		gateway: &fakeGateway{session: contract.Session{ID: "CS1", SessionData: "data"}},
		widget:  &fakeWidget{},
	}
	if available == nil {
		available = func(int) bool { return true }
	}
	orch, err := New(Config{
		Currency:  "gbp",
		TaxRate:   decimal.RequireFromString("0.20"),
		ReturnURL: "http://localhost:3000/checkout/result",
	}, Dependencies{
		Cart:    h.cart,
		Gateway: h.gateway,
		Widgets: func(context.Context, contract.Session) (Widget, error) {
			h.built++
			return h.widget, nil
		},
		Targets: TargetLocatorFunc(func(string) bool {
			h.probes++
			return available(h.probes)
		}),
		Notifier: NotifierFunc(func(n Notice) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.notices = append(h.notices, n)
		}),
		Navigator: NavigatorFunc(func(route string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.routes = append(h.routes, route)
		}),
	})
	require.NoError(t, err)
	orch.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	h.orch = orch
	return h
}

func (h *harness) addItem(t *testing.T, id string, price int64, qty int) {
	t.Helper()
	_, err := h.cart.AddItem(context.Background(), cart.Product{ID: id, Name: "Item " + id, Price: decimal.NewFromInt(price)}, qty)
	require.NoError(t, err)
}

func validSubmit() SubmitState {
	return SubmitState{
		IsValid: true,
		Data:    contract.PaymentData{PaymentMethod: json.RawMessage(`{"type":"scheme"}`)},
	}
}

func TestStartCreatesSessionWithTaxedAmounts(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 2)

	require.NoError(t, h.orch.Start(context.Background()))

	require.Len(t, h.gateway.sessions, 1)
	req := h.gateway.sessions[0]
	assert.Equal(t, contract.Amount{Value: 24000, Currency: "GBP"}, req.Amount)
	assert.Equal(t, "http://localhost:3000/checkout/result", req.ReturnURL)
	require.Len(t, req.LineItems, 1)
	assert.Equal(t, contract.LineItem{ID: "A", Description: "Item A", AmountIncludingTax: 24000, Quantity: 2}, req.LineItems[0])

	snap := h.orch.Snapshot()
	assert.Equal(t, StateWidgetMounted, snap.State)
	assert.Equal(t, "CS1", snap.SessionID)
	assert.Equal(t, DefaultMountTarget, h.widget.target)
	assert.NotNil(t, h.widget.submit)
	assert.NotNil(t, h.widget.details)
	assert.NotNil(t, h.widget.onError)
}

func TestStartTruncatesLongLineItems(t *testing.T) {
	h := newHarness(t, nil)
	long := make([]byte, 80)
	for i := range long {
		long[i] = 'x'
	}
	h.addItem(t, string(long), 10, 1)

	require.NoError(t, h.orch.Start(context.Background()))
	assert.Len(t, h.gateway.sessions[0].LineItems[0].ID, contract.MaxLineItemIDLength)
}

func TestStartWithEmptyCartRedirects(t *testing.T) {
	h := newHarness(t, nil)

	err := h.orch.Start(context.Background())
	require.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, Notice{Kind: NoticeError, Message: MsgEmptyCart}, h.lastNotice())
	assert.Equal(t, []string{DefaultCartRoute}, h.navigated())
	assert.Zero(t, h.gateway.sessionCount())
}

func TestStartSessionFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	h.gateway.sessionErr = &GatewayError{Status: 400, Message: "Amount, currency, and returnUrl are required"}

	err := h.orch.Start(context.Background())

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, 400, gwErr.Status)
	snap := h.orch.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, MsgInitFailed, snap.Message)
	assert.Empty(t, snap.SessionID)
	assert.Zero(t, h.built)
	assert.Empty(t, h.widget.target)

	h.gateway.sessionErr = nil
	require.NoError(t, h.orch.Start(context.Background()))
	assert.Equal(t, StateWidgetMounted, h.orch.Snapshot().State)
}

func TestStartWaitsForMountTarget(t *testing.T) {
	h := newHarness(t, func(probe int) bool { return probe >= 3 })
	h.addItem(t, "A", 5, 1)

	require.NoError(t, h.orch.Start(context.Background()))
	assert.Equal(t, 3, h.probes)
	assert.Equal(t, StateWidgetMounted, h.orch.Snapshot().State)
}

func TestStartGivesUpWhenTargetNeverAppears(t *testing.T) {
	h := newHarness(t, func(int) bool { return false })
	h.addItem(t, "A", 5, 1)

	err := h.orch.Start(context.Background())
	require.ErrorIs(t, err, ErrMountTargetUnavailable)
	assert.Equal(t, DefaultMountAttempts, h.probes)
	snap := h.orch.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, MsgContainerNotFound, snap.Message)
	assert.Empty(t, h.widget.target)
}

func TestRetryAfterMountFailureRetiresFirstWidget(t *testing.T) {
	ready := false
	h := newHarness(t, func(int) bool { return ready })
	h.addItem(t, "A", 5, 1)

	require.ErrorIs(t, h.orch.Start(context.Background()), ErrMountTargetUnavailable)
	first := h.widget
	assert.Equal(t, 1, first.unmounts)

	ready = true
	h.widget = &fakeWidget{}
	require.NoError(t, h.orch.Start(context.Background()))
	assert.Equal(t, 2, h.built)
	assert.Equal(t, StateWidgetMounted, h.orch.Snapshot().State)

	h.gateway.paymentResults = []contract.Result{{ResultCode: "Authorised", PSPReference: "PSP0"}}
	require.ErrorIs(t, first.submit(context.Background(), validSubmit()), ErrStale)
	require.ErrorIs(t, first.details(context.Background(), DetailsState{Data: json.RawMessage(`{}`)}), ErrStale)
	assert.Zero(t, h.gateway.paymentCount())
	assert.Equal(t, StateWidgetMounted, h.orch.Snapshot().State)

	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))
	assert.Equal(t, 1, h.gateway.paymentCount())
	assert.Equal(t, StateSuccess, h.orch.Snapshot().State)
}

func TestStartTwiceIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 5, 1)
	require.NoError(t, h.orch.Start(context.Background()))

	require.ErrorIs(t, h.orch.Start(context.Background()), ErrAlreadyStarted)
	assert.Equal(t, 1, h.gateway.sessionCount())
}

func TestSubmitAuthorisedCompletesCheckout(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 2)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.paymentResults = []contract.Result{{ResultCode: "Authorised", PSPReference: "PSP1"}}

	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))

	require.Len(t, h.gateway.payments, 1)
	payment := h.gateway.payments[0]
	assert.Equal(t, "CS1", payment.SessionID)
	assert.Equal(t, &contract.Amount{Value: 24000, Currency: "GBP"}, payment.Amount)
	assert.NotEmpty(t, h.gateway.keys[0])

	assert.Empty(t, h.cart.Items())
	snap := h.orch.Snapshot()
	assert.Equal(t, StateSuccess, snap.State)
	assert.True(t, snap.Succeeded)
	assert.False(t, snap.InProgress)
	assert.Equal(t, "PSP1", snap.PSPReference)
	assert.Equal(t, Notice{Kind: NoticeSuccess, Message: MsgPaymentSuccessful}, h.lastNotice())
	assert.Equal(t, []string{"/checkout/result?pspReference=PSP1&resultCode=Authorised"}, h.navigated())

	// the emptied cart must not restart or redirect a completed checkout
	require.NoError(t, h.orch.Start(context.Background()))
	assert.Equal(t, 1, h.gateway.sessionCount())
	require.ErrorIs(t, h.widget.submit(context.Background(), validSubmit()), ErrNotAccepting)
	assert.Equal(t, 1, h.gateway.paymentCount())
	assert.Len(t, h.navigated(), 1)
}

func TestSubmitRefusedCVCStaysInteractive(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.paymentResults = []contract.Result{
		{ResultCode: "Refused", RefusalReason: "CVC Declined", PSPReference: "PSP2"},
		{ResultCode: "Authorised", PSPReference: "PSP3"},
	}

	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))

	snap := h.orch.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.False(t, snap.InProgress)
	assert.Equal(t, 1, h.widget.resets)
	assert.Equal(t, NoticeError, h.lastNotice().Kind)
	assert.Contains(t, h.lastNotice().Message, "security code (CVC) was declined")
	assert.Len(t, h.cart.Items(), 1)
	assert.Empty(t, h.navigated())

	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))
	assert.Equal(t, StateSuccess, h.orch.Snapshot().State)
	require.Len(t, h.gateway.keys, 2)
	assert.NotEqual(t, h.gateway.keys[0], h.gateway.keys[1])
}

func TestSubmitUnrecoverableRefusalKeepsWidget(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.paymentResults = []contract.Result{{ResultCode: "Refused", RefusalReason: "Expired Card"}}

	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))

	assert.Zero(t, h.widget.resets)
	assert.Equal(t, "Your card has expired. Please use a different card.", h.lastNotice().Message)
}

func TestSubmitPendingStaysInline(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.paymentResults = []contract.Result{{ResultCode: "Pending", PSPReference: "PSP4"}}

	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))

	assert.Equal(t, StatePending, h.orch.Snapshot().State)
	assert.Equal(t, Notice{Kind: NoticeLoading, Message: MsgPaymentPending}, h.lastNotice())
	assert.Empty(t, h.navigated())
	assert.Len(t, h.cart.Items(), 1)
}

func TestSubmitInvalidInput(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))

	err := h.widget.submit(context.Background(), SubmitState{IsValid: false})
	require.ErrorIs(t, err, ErrInvalidPaymentInput)
	assert.Equal(t, MsgFieldsRequired, h.lastNotice().Message)
	assert.Zero(t, h.gateway.paymentCount())
	assert.False(t, h.orch.Snapshot().InProgress)
}

func TestSubmitTransportErrorKeepsSession(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.paymentErr = errors.New("connection reset")

	err := h.widget.submit(context.Background(), validSubmit())
	require.Error(t, err)

	snap := h.orch.Snapshot()
	assert.Equal(t, StateWidgetMounted, snap.State)
	assert.Equal(t, "CS1", snap.SessionID)
	assert.False(t, snap.InProgress)
	assert.Equal(t, MsgPaymentFailed, h.lastNotice().Message)
	assert.Len(t, h.cart.Items(), 1)
}

func TestSubmitRejectsConcurrentSubmission(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.entered = make(chan struct{})
	h.gateway.release = make(chan struct{})
	h.gateway.paymentResults = []contract.Result{{ResultCode: "Authorised", PSPReference: "PSP5"}}

	done := make(chan error, 1)
	go func() { done <- h.widget.submit(context.Background(), validSubmit()) }()
	<-h.gateway.entered

	assert.True(t, h.orch.Snapshot().InProgress)
	require.ErrorIs(t, h.widget.submit(context.Background(), validSubmit()), ErrSubmissionInProgress)

	close(h.gateway.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.gateway.paymentCount())
	assert.Equal(t, StateSuccess, h.orch.Snapshot().State)
}

func TestActionThenAdditionalDetails(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	action := json.RawMessage(`{"type":"threeDS2","token":"t"}`)
	h.gateway.paymentResults = []contract.Result{{ResultCode: "IdentifyShopper", Action: action}}
	h.gateway.detailsResult = contract.Result{ResultCode: "Authorised", PSPReference: "PSP6"}

	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))

	snap := h.orch.Snapshot()
	assert.Equal(t, StateAwaitingAdditionalDetails, snap.State)
	assert.True(t, snap.InProgress)
	require.Len(t, h.widget.actions, 1)
	assert.JSONEq(t, string(action), string(h.widget.actions[0]))
	require.ErrorIs(t, h.widget.submit(context.Background(), validSubmit()), ErrSubmissionInProgress)

	details := json.RawMessage(`{"details":{"threeDSResult":"abc"}}`)
	require.NoError(t, h.widget.details(context.Background(), DetailsState{Data: details}))

	require.Len(t, h.gateway.details, 1)
	assert.Equal(t, "CS1", h.gateway.details[0].SessionID)
	assert.JSONEq(t, string(details), string(h.gateway.details[0].Details))
	assert.Equal(t, StateSuccess, h.orch.Snapshot().State)
	assert.Empty(t, h.cart.Items())
}

func TestDetailsFailureReportsVerificationError(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.paymentResults = []contract.Result{{ResultCode: "RedirectShopper", Action: json.RawMessage(`{"type":"redirect"}`)}}
	h.gateway.detailsErr = &GatewayError{Status: 422, Message: "Details submission failed"}

	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))
	require.Error(t, h.widget.details(context.Background(), DetailsState{Data: json.RawMessage(`{}`)}))

	snap := h.orch.Snapshot()
	assert.Equal(t, StateWidgetMounted, snap.State)
	assert.False(t, snap.InProgress)
	assert.Equal(t, MsgVerificationFailed, h.lastNotice().Message)
}

func TestDetailsRejectsConcurrentSubmission(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.paymentResults = []contract.Result{{ResultCode: "IdentifyShopper", Action: json.RawMessage(`{"type":"threeDS2"}`)}}
	h.gateway.detailsResult = contract.Result{ResultCode: "Authorised", PSPReference: "PSP8"}
	require.NoError(t, h.widget.submit(context.Background(), validSubmit()))

	h.gateway.detailsEntered = make(chan struct{})
	h.gateway.detailsRelease = make(chan struct{})
	details := DetailsState{Data: json.RawMessage(`{"details":{"threeDSResult":"abc"}}`)}

	done := make(chan error, 1)
	go func() { done <- h.widget.details(context.Background(), details) }()
	<-h.gateway.detailsEntered

	assert.True(t, h.orch.Snapshot().InProgress)
	require.ErrorIs(t, h.widget.details(context.Background(), details), ErrSubmissionInProgress)
	require.ErrorIs(t, h.widget.submit(context.Background(), validSubmit()), ErrSubmissionInProgress)

	close(h.gateway.detailsRelease)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.gateway.detailsCount())
	assert.Equal(t, StateSuccess, h.orch.Snapshot().State)
}

func TestDetailsOutsideChallengeIsRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))

	err := h.widget.details(context.Background(), DetailsState{Data: json.RawMessage(`{}`)})
	require.ErrorIs(t, err, ErrNotAccepting)
}

func TestCloseDiscardsLateResult(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))
	h.gateway.entered = make(chan struct{})
	h.gateway.release = make(chan struct{})
	h.gateway.paymentResults = []contract.Result{{ResultCode: "Authorised", PSPReference: "PSP7"}}

	done := make(chan error, 1)
	go func() { done <- h.widget.submit(context.Background(), validSubmit()) }()
	<-h.gateway.entered

	h.orch.Close()
	close(h.gateway.release)

	require.ErrorIs(t, <-done, ErrStale)
	assert.Equal(t, 1, h.widget.unmounts)
	assert.Len(t, h.cart.Items(), 1)
	assert.Empty(t, h.navigated())
	assert.False(t, h.orch.Snapshot().Succeeded)
}

func TestCloseReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))

	h.orch.Close()

	snap := h.orch.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.SessionID)
	assert.False(t, snap.InProgress)
	require.ErrorIs(t, h.widget.submit(context.Background(), validSubmit()), ErrStale)

	require.NoError(t, h.orch.Start(context.Background()))
	assert.Equal(t, 2, h.gateway.sessionCount())
	assert.Equal(t, StateWidgetMounted, h.orch.Snapshot().State)
}

func TestWidgetErrorNotifiesShopper(t *testing.T) {
	h := newHarness(t, nil)
	h.addItem(t, "A", 100, 1)
	require.NoError(t, h.orch.Start(context.Background()))

	h.widget.onError(context.Background(), errors.New("card component crashed"))

	assert.Equal(t, Notice{Kind: NoticeError, Message: MsgWidgetError}, h.lastNotice())
	assert.Equal(t, StateWidgetMounted, h.orch.Snapshot().State)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{Currency: "GBP"}, Dependencies{})
	require.Error(t, err)
}
