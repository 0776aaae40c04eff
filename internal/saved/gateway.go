package saved

import (
	"context"

	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/metrics"
)

// GatewayParams groups dependencies for a saved-item gateway.
type GatewayParams struct {
	Set     *Set
	Remote  Remote
	Auth    AuthState
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Gateway mutates one saved-item set. Local state is written first; a failed
// remote call is compensated locally so the set matches the backend again.
type Gateway struct {
	set     *Set
	remote  Remote
	auth    AuthState
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
}

func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.Set == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "saved set is required")
	}
	if params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "saved remote is required")
	}
	if params.Auth == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auth state is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Gateway{
		set:     params.Set,
		remote:  params.Remote,
		auth:    params.Auth,
		logg:    logg,
		metrics: params.Metrics,
	}, nil
}

// Save adds id locally and, when authenticated, on the backend. If the backend
// rejects it, the local entry added by this call is removed again.
func (g *Gateway) Save(ctx context.Context, id string) (Entry, error) {
	if id == "" {
		return Entry{}, pkgerrors.New(pkgerrors.CodeValidation, "id is required")
	}
	entry, added := g.set.Save(ctx, id)
	if !g.auth.IsAuthenticated() || entry.Synced {
		return entry, nil
	}
	if _, err := g.remote.SaveRemote(ctx, id); err != nil {
		if added {
			g.set.Remove(ctx, id)
		}
		return Entry{}, g.remoteFailure(ctx, "saved_save", id, err)
	}
	g.set.MarkSynced(ctx, id)
	entry.Synced = true
	return entry, nil
}

// Unsave removes id locally and, when authenticated, on the backend. If the
// backend call fails the entry is restored. A backend NotFound counts as done.
func (g *Gateway) Unsave(ctx context.Context, id string) error {
	removed, ok := g.set.Remove(ctx, id)
	if !ok || !g.auth.IsAuthenticated() {
		return nil
	}
	if err := g.remote.UnsaveRemote(ctx, id); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		g.set.Restore(ctx, removed)
		return g.remoteFailure(ctx, "saved_unsave", id, err)
	}
	return nil
}

// Toggle saves or unsaves id and reports whether it is saved afterwards.
func (g *Gateway) Toggle(ctx context.Context, id string) (bool, error) {
	if g.set.IsSaved(id) {
		if err := g.Unsave(ctx, id); err != nil {
			return true, err
		}
		return false, nil
	}
	if _, err := g.Save(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

func (g *Gateway) Set() *Set { return g.set }

func (g *Gateway) remoteFailure(ctx context.Context, operation, id string, err error) error {
	g.metrics.IncGatewayFailure(operation)
	ctx = g.logg.WithFields(ctx, map[string]any{
		"operation":  operation,
		"saved_kind": g.set.Kind().String(),
		"saved_id":   id,
	})
	g.logg.Warn(ctx, "remote saved-item call failed; local change compensated: "+err.Error())
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, operation)
}
