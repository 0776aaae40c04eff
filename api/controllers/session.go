package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/farmcart-sync/api/responses"
	"github.com/angelmondragon/farmcart-sync/api/validators"
	"github.com/angelmondragon/farmcart-sync/internal/session"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
)

// SessionService drives the login and logout edges.
type SessionService interface {
	Status() session.Status
	Login(ctx context.Context, token string) (session.Status, error)
	Logout(ctx context.Context) session.Status
}

type loginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}

// SessionLogin accepts the access token in the body or as a bearer header.
// Login hooks, including the initial sync, finish before the response is written.
func SessionLogin(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}

		token := bearerToken(r)
		if token == "" {
			var payload loginRequest
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			token = strings.TrimSpace(payload.AccessToken)
		}

		status, err := svc.Login(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func SessionLogout(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.Logout(r.Context()))
	}
}

func SessionStatus(svc SessionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.Status())
	}
}
