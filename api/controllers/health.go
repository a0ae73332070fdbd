package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/trendora/trendora-backend/api/responses"
	"github.com/trendora/trendora-backend/pkg/config"
	"github.com/trendora/trendora-backend/pkg/logger"
)

// Pinger is implemented by every backing client the API depends on.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Trendora-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady checks every backing dependency that serving traffic needs.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP, gcsP Pinger) http.HandlerFunc {
	deps := []struct {
		name   string
		pinger Pinger
	}{
		{"database", dbP},
		{"redis", redisP},
		{"gcs", gcsP},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Trendora-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		for _, dep := range deps {
			if dep.pinger == nil {
				checks[dep.name] = "skipped"
				continue
			}
			if err := dep.pinger.Ping(ctx); err != nil {
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", dep.name), "readiness check failed", err)
				}
				checks[dep.name] = "down"
				healthy = false
				continue
			}
			checks[dep.name] = "up"
		}

		status := "ready"
		code := http.StatusOK
		if !healthy {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, code, map[string]any{
			"status": status,
			"checks": checks,
		})
	}
}
