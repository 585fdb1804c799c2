package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/arrowtech/storefront/api/responses"
	"github.com/arrowtech/storefront/pkg/config"
	pkgerrors "github.com/arrowtech/storefront/pkg/errors"
	"github.com/arrowtech/storefront/pkg/logger"
	"github.com/arrowtech/storefront/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings Redis when one is configured; a nil pinger is reported as skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisPinger redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		checks := map[string]string{"redis": "skipped"}
		if redisPinger != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()
			if err := redisPinger.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").WithDetails(map[string]any{"step": "redis"}))
				return
			}
			checks["redis"] = "ok"
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
