package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/farmcart-sync/api/responses"
	"github.com/angelmondragon/farmcart-sync/internal/reconcile"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
)

// SyncRunner runs a full push and pull pass.
type SyncRunner interface {
	Run(ctx context.Context) reconcile.Report
}

// SyncRun triggers reconciliation on demand. Item failures are part of the
// report, never a failed request.
func SyncRun(runner SyncRunner, auth SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if runner == nil || auth == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sync unavailable"))
			return
		}
		if !auth.Status().Authenticated {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to sync"))
			return
		}
		responses.WriteSuccess(w, runner.Run(r.Context()))
	}
}
