package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arrowtech/storefront/pkg/config"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: config.AppEnvDev}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without redis, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with healthy redis, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	HealthReady(cfg, nil, stubPinger{err: errors.New("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with failing redis, got %d", rec.Code)
	}
	if rec.Header().Get("X-Storefront-Env") != config.AppEnvDev {
		t.Fatalf("expected env header")
	}
}
