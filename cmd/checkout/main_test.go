package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowtech/storefront/pkg/logger"
)

type fakeAPI struct {
	mu      sync.Mutex
	amount  float64
	action  bool
	calls   []string
	cartIDs []string
	sawKeys int
}

func (f *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, r.URL.Path)
		f.cartIDs = append(f.cartIDs, r.Header.Get("X-Cart-Id"))
		if r.Header.Get("Idempotency-Key") != "" {
			f.sawKeys++
		}
	}
	mux.HandleFunc("/api/checkout/create-session", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		amount := body["amount"].(map[string]any)
		f.mu.Lock()
		f.amount = amount["value"].(float64)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "CS1",
			"sessionData": "data",
			"amount":      amount,
		})
	})
	mux.HandleFunc("/api/checkout/submit-payment", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if f.action {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"resultCode": "IdentifyShopper",
				"action":     map[string]any{"type": "threeDS2"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"resultCode": "Authorised", "pspReference": "PSP1"})
	})
	mux.HandleFunc("/api/checkout/submit-details", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"resultCode": "Authorised", "pspReference": "PSP2"})
	})
	return mux
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRunAuthorisesCart(t *testing.T) {
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	dir := t.TempDir()
	err := run(context.Background(), logger.Nop(), options{
		apiURL:     srv.URL,
		cartFile:   writeFile(t, dir, "cart.json", `[{"id":"3","name":"AirPods Pro (2nd Gen)","price":249,"quantity":2}]`),
		methodFile: writeFile(t, dir, "method.json", `{"type":"scheme"}`),
		currency:   "GBP",
		taxRate:    "0.20",
		returnURL:  "http://localhost:3000/checkout/result",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/checkout/create-session", "/api/checkout/submit-payment"}, api.calls)
	assert.Equal(t, float64(59760), api.amount)
	assert.Equal(t, 1, api.sawKeys)
	assert.NotEmpty(t, api.cartIDs[0])
	assert.Equal(t, api.cartIDs[0], api.cartIDs[1])
}

func TestRunFollowsActionWithDetails(t *testing.T) {
	api := &fakeAPI{action: true}
	srv := httptest.NewServer(api.handler())
	defer srv.Close()

	dir := t.TempDir()
	opts := options{
		apiURL:     srv.URL,
		cartFile:   writeFile(t, dir, "cart.json", `[{"id":"1","name":"iPhone 15 Pro Max","price":"1199","quantity":1}]`),
		methodFile: writeFile(t, dir, "method.json", `{"type":"scheme"}`),
		currency:   "GBP",
		taxRate:    "0.20",
	}

	err := run(context.Background(), logger.Nop(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no -details file")

	api.calls = nil
	opts.detailsFile = writeFile(t, dir, "details.json", `{"threeDSResult":"abc"}`)
	require.NoError(t, run(context.Background(), logger.Nop(), opts))
	assert.Equal(t, []string{
		"/api/checkout/create-session",
		"/api/checkout/submit-payment",
		"/api/checkout/submit-details",
	}, api.calls)
}

func TestRunRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	method := writeFile(t, dir, "method.json", `{"type":"scheme"}`)

	err := run(context.Background(), logger.Nop(), options{methodFile: method, taxRate: "0.20"})
	require.Error(t, err)

	err = run(context.Background(), logger.Nop(), options{
		apiURL:     "http://127.0.0.1:1",
		cartFile:   writeFile(t, dir, "cart.json", `[{"id":"99","name":"Free sample","price":0,"quantity":1}]`),
		methodFile: method,
		currency:   "GBP",
		taxRate:    "0.20",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `cart line "99" needs an id and a positive price`)
}
