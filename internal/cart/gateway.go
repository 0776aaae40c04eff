package cart

import (
	"context"
	"strconv"

	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/metrics"
)

// GatewayParams groups dependencies for the cart gateway.
type GatewayParams struct {
	Mirror  *Mirror
	Remote  Remote
	Auth    AuthState
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

// Gateway is the only entry point for cart mutations. It always writes the
// mirror first; when authenticated it then mirrors the change to the backend.
// A failed remote call leaves the line unsynced for the next sync and is
// returned as a CodeDependency error alongside the updated cart.
type Gateway struct {
	mirror  *Mirror
	remote  Remote
	auth    AuthState
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
}

func NewGateway(params GatewayParams) (*Gateway, error) {
	if params.Mirror == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart mirror is required")
	}
	if params.Remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart remote is required")
	}
	if params.Auth == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auth state is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Gateway{
		mirror:  params.Mirror,
		remote:  params.Remote,
		auth:    params.Auth,
		logg:    logg,
		metrics: params.Metrics,
	}, nil
}

// AddItem adds the listing locally, then pushes the merged line.
func (g *Gateway) AddItem(ctx context.Context, in LineInput, display *DisplayFields) (*Cart, error) {
	authenticated := g.auth.IsAuthenticated()
	if authenticated && g.mirror.Current() == nil {
		id, name := g.auth.Principal()
		g.mirror.Create(id, name)
	}

	cart, line, err := g.mirror.AddItem(ctx, in, display)
	if err != nil {
		return nil, err
	}
	if !authenticated {
		return cart, nil
	}
	if err := g.pushLine(ctx, line); err != nil {
		return g.mirror.Current(), g.remoteFailure(ctx, "cart_add", err)
	}
	return g.mirror.Current(), nil
}

// UpdateItem merges the update locally, then mirrors it remotely. A quantity
// below 1 removes the line.
func (g *Gateway) UpdateItem(ctx context.Context, lineID string, update ItemUpdate) (*Cart, error) {
	before, ok := g.mirror.Current().Item(lineID)

	cart, err := g.mirror.UpdateItem(ctx, lineID, update)
	if err != nil || cart == nil {
		return cart, err
	}
	if !ok || !g.auth.IsAuthenticated() {
		return cart, nil
	}

	after, stillThere := cart.Item(lineID)
	switch {
	case !stillThere:
		if before.RemoteID == "" {
			return cart, nil
		}
		if err := g.remote.RemoveRemoteCartItem(ctx, before.RemoteID); err != nil {
			return cart, g.remoteFailure(ctx, "cart_remove", err)
		}
	default:
		if err := g.pushLine(ctx, after); err != nil {
			return g.mirror.Current(), g.remoteFailure(ctx, "cart_update", err)
		}
	}
	return g.mirror.Current(), nil
}

// UpdateQuantity applies a signed delta to the line's quantity.
func (g *Gateway) UpdateQuantity(ctx context.Context, lineID string, delta int) (*Cart, error) {
	line, ok := g.mirror.Current().Item(lineID)
	if !ok {
		if g.mirror.Current() == nil {
			return nil, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line "+lineID+" not found")
	}
	qty := line.Quantity + delta
	return g.UpdateItem(ctx, lineID, ItemUpdate{Quantity: &qty})
}

// RemoveItem drops the line locally, then remotely when it had reached the backend.
func (g *Gateway) RemoveItem(ctx context.Context, lineID string) (*Cart, error) {
	cart, removed, ok := g.mirror.RemoveItem(ctx, lineID)
	if !ok || removed.RemoteID == "" || !g.auth.IsAuthenticated() {
		return cart, nil
	}
	if err := g.remote.RemoveRemoteCartItem(ctx, removed.RemoteID); err != nil {
		return cart, g.remoteFailure(ctx, "cart_remove", err)
	}
	return cart, nil
}

// Clear empties the cart locally and remotely.
func (g *Gateway) Clear(ctx context.Context) (*Cart, error) {
	cart := g.mirror.Clear(ctx)
	if !g.auth.IsAuthenticated() {
		return cart, nil
	}
	if err := g.remote.ClearRemoteCart(ctx); err != nil {
		return cart, g.remoteFailure(ctx, "cart_clear", err)
	}
	return cart, nil
}

// PushLine sends the line's current state to the backend and records the receipt.
// Lines already known to the backend are patched, others are added.
func PushLine(ctx context.Context, remote Remote, mirror *Mirror, line LineItem) error {
	var (
		item RemoteItem
		err  error
	)
	if line.RemoteID != "" {
		qty, price, details := line.Quantity, line.UnitPrice, line.Details
		item, err = remote.UpdateRemoteCartItem(ctx, line.RemoteID, RemoteItemPatch{
			Quantity:  &qty,
			UnitPrice: &price,
			Details:   &details,
		})
	} else {
		item, err = remote.PushCartItem(ctx, RemoteItemInput{
			ListingRef: line.ListingRef,
			Quantity:   line.Quantity,
			UnitPrice:  line.UnitPrice,
			Details:    line.Details,
		})
	}
	if err != nil {
		return err
	}
	remoteID := line.RemoteID
	if item.ID != 0 {
		remoteID = strconv.FormatInt(item.ID, 10)
	}
	mirror.MarkPushed(ctx, PushReceipt{LineID: line.ID, RemoteID: remoteID, Revision: line.Revision})
	return nil
}

func (g *Gateway) pushLine(ctx context.Context, line LineItem) error {
	return PushLine(ctx, g.remote, g.mirror, line)
}

func (g *Gateway) remoteFailure(ctx context.Context, operation string, err error) error {
	g.metrics.IncGatewayFailure(operation)
	ctx = g.logg.WithField(ctx, "operation", operation)
	g.logg.Warn(ctx, "remote cart call failed; local change kept for next sync: "+err.Error())
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, operation)
}
