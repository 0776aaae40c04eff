package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
)

var _ saved.EntityFetcher = (*Client)(nil)

// SavedItems binds the client to one saved kind.
type SavedItems struct {
	client *Client
	kind   enums.SavedKind
}

var _ saved.Remote = SavedItems{}

// Saved returns the saved-item contract for kind.
func (c *Client) Saved(kind enums.SavedKind) SavedItems {
	return SavedItems{client: c, kind: kind}
}

func (s SavedItems) path(id string) string {
	p := "/saved/" + s.kind.Plural()
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

func (s SavedItems) FetchSaved(ctx context.Context, skip, limit int) ([]saved.RemoteEntry, error) {
	query := url.Values{}
	query.Set("skip", strconv.Itoa(skip))
	query.Set("limit", strconv.Itoa(limit))

	var out []saved.RemoteEntry
	err := s.client.do(ctx, http.MethodGet, s.path(""), query, nil, &out)
	return out, err
}

func (s SavedItems) SaveRemote(ctx context.Context, id string) (saved.RemoteEntry, error) {
	var out saved.RemoteEntry
	err := s.client.do(ctx, http.MethodPost, s.path(id), nil, nil, &out)
	if out.ID == "" {
		out.ID = id
	}
	return out, err
}

func (s SavedItems) UnsaveRemote(ctx context.Context, id string) error {
	return s.client.do(ctx, http.MethodDelete, s.path(id), nil, nil, nil)
}

// FetchEntitiesByIDs resolves ids of kind in one bulk call.
func (c *Client) FetchEntitiesByIDs(ctx context.Context, kind enums.SavedKind, ids []string) ([]saved.Entity, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown entity kind "+kind.String())
	}
	if len(ids) == 0 {
		return []saved.Entity{}, nil
	}
	body := struct {
		IDs []string `json:"ids"`
	}{IDs: ids}

	var out []saved.Entity
	err := c.do(ctx, http.MethodPost, "/"+kind.Plural()+"/bulk", nil, body, &out)
	return out, err
}
