package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/arrowtech/storefront/internal/checkout"
	contract "github.com/arrowtech/storefront/pkg/checkout"
)

// scriptedWidget plays the shopper: it submits a fixed payment method and, when the
// PSP asks for an action, answers with fixed details.
type scriptedWidget struct {
	mu        sync.Mutex
	target    string
	action    json.RawMessage
	onSubmit  checkout.SubmitHandler
	onDetails checkout.DetailsHandler
}

func (w *scriptedWidget) Mount(_ context.Context, target string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = target
	return nil
}

func (w *scriptedWidget) OnSubmit(handler checkout.SubmitHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSubmit = handler
}

func (w *scriptedWidget) OnAdditionalDetails(handler checkout.DetailsHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onDetails = handler
}

func (w *scriptedWidget) HandleAction(_ context.Context, action json.RawMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.action = append(json.RawMessage(nil), action...)
	return nil
}

func (w *scriptedWidget) submit(ctx context.Context, method json.RawMessage) error {
	w.mu.Lock()
	handler := w.onSubmit
	mounted := w.target != ""
	w.mu.Unlock()
	if handler == nil || !mounted {
		return errors.New("widget not mounted")
	}
	return handler(ctx, checkout.SubmitState{
		Data:    contract.PaymentData{PaymentMethod: method},
		IsValid: len(method) > 0,
	})
}

func (w *scriptedWidget) details(ctx context.Context, details json.RawMessage) error {
	w.mu.Lock()
	handler := w.onDetails
	w.mu.Unlock()
	if handler == nil {
		return errors.New("widget not mounted")
	}
	return handler(ctx, checkout.DetailsState{Data: details})
}
