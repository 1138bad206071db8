package controllers

import (
	"net/http"

	"github.com/wishbeeai/wishbee-backend/api/responses"
	"github.com/wishbeeai/wishbee-backend/pkg/config"
	"github.com/wishbeeai/wishbee-backend/pkg/db"
	pkgerrors "github.com/wishbeeai/wishbee-backend/pkg/errors"
	"github.com/wishbeeai/wishbee-backend/pkg/logger"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Wishbee-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when every backing dependency answers.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Wishbee-Env", cfg.App.Env)

		status := map[string]string{}
		failed := false
		for name, pinger := range deps {
			if pinger == nil {
				status[name] = "not configured"
				failed = true
				continue
			}
			if err := pinger.Ping(r.Context()); err != nil {
				status[name] = err.Error()
				failed = true
				continue
			}
			status[name] = "ok"
		}

		if failed {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependencies unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "deps": status})
	}
}
