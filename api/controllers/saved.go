package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/farmcart-sync/api/responses"
	"github.com/angelmondragon/farmcart-sync/api/validators"
	"github.com/angelmondragon/farmcart-sync/internal/readmodel"
	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
)

// SavedGateway saves and unsaves one kind of item.
type SavedGateway interface {
	Save(ctx context.Context, id string) (saved.Entry, error)
	Unsave(ctx context.Context, id string) error
	Toggle(ctx context.Context, id string) (bool, error)
}

// SavedViews renders saved sets for the UI.
type SavedViews interface {
	Saved(ctx context.Context, kind enums.SavedKind) readmodel.SavedListView
}

type savedStateResponse struct {
	ID    string          `json:"id"`
	Kind  enums.SavedKind `json:"kind"`
	Saved bool            `json:"saved"`
	Entry *saved.Entry    `json:"entry,omitempty"`
}

func savedKindParam(r *http.Request) (enums.SavedKind, error) {
	kind, err := enums.ParseSavedKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown saved kind").
			WithDetails(map[string]any{"field": "kind"})
	}
	return kind, nil
}

func savedGatewayFor(r *http.Request, gateways map[enums.SavedKind]SavedGateway) (enums.SavedKind, SavedGateway, string, error) {
	kind, err := savedKindParam(r)
	if err != nil {
		return "", nil, "", err
	}
	gw, ok := gateways[kind]
	if !ok || gw == nil {
		return "", nil, "", pkgerrors.New(pkgerrors.CodeNotFound, "saved "+kind.Plural()+" not configured")
	}
	id, err := validators.PathID(chi.URLParam(r, "id"), "id")
	if err != nil {
		return "", nil, "", err
	}
	return kind, gw, id, nil
}

func SavedList(views SavedViews, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if views == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "saved views unavailable"))
			return
		}
		kind, err := savedKindParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx, cancel, err := viewContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		defer cancel()
		responses.WriteSuccess(w, views.Saved(ctx, kind))
	}
}

// SavedPut saves an item. A backend rejection rolls the local save back and is
// reported as an error.
func SavedPut(gateways map[enums.SavedKind]SavedGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, gw, id, err := savedGatewayFor(r, gateways)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := gw.Save(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, savedStateResponse{ID: id, Kind: kind, Saved: true, Entry: &entry})
	}
}

func SavedDelete(gateways map[enums.SavedKind]SavedGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, gw, id, err := savedGatewayFor(r, gateways)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := gw.Unsave(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, savedStateResponse{ID: id, Kind: kind, Saved: false})
	}
}

// SavedToggle flips the saved state of an item.
func SavedToggle(gateways map[enums.SavedKind]SavedGateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, gw, id, err := savedGatewayFor(r, gateways)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		isSaved, err := gw.Toggle(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, savedStateResponse{ID: id, Kind: kind, Saved: isSaved})
	}
}
