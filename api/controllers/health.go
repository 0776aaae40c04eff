package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/farmcart-sync/api/responses"
	"github.com/angelmondragon/farmcart-sync/pkg/config"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
)

const envHeader = "X-FarmCart-Env"

// Pinger is any dependency that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency. Nil pingers are skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		checks := make(map[string]string, len(pingers))
		var failed error
		for name, p := range pingers {
			if p == nil {
				continue
			}
			if err := p.Ping(r.Context()); err != nil {
				checks[name] = "down"
				if failed == nil {
					failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" not ready")
				}
				continue
			}
			checks[name] = "up"
		}
		if failed != nil {
			if te := pkgerrors.As(failed); te != nil {
				te.WithDetails(checks)
			}
			responses.WriteError(r.Context(), logg, w, failed)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
