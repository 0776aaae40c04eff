package readmodel

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/farmcart-sync/internal/cart"
	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/angelmondragon/farmcart-sync/pkg/pagination"
)

// CartView is the cart as the UI should render it.
type CartView struct {
	Cart    *cart.Cart       `json:"cart"`
	Source  enums.ViewSource `json:"source"`
	Loading bool             `json:"loading"`
	Error   string           `json:"error,omitempty"`
	Err     error            `json:"-"`
}

// SavedView is one saved item joined with its display entity.
type SavedView struct {
	ID      string        `json:"id"`
	SavedAt time.Time     `json:"saved_at"`
	Entity  *saved.Entity `json:"entity,omitempty"`
}

// SavedListView is a saved set as the UI should render it.
type SavedListView struct {
	Kind    enums.SavedKind  `json:"kind"`
	Items   []SavedView      `json:"items"`
	Source  enums.ViewSource `json:"source"`
	Loading bool             `json:"loading"`
	Error   string           `json:"error,omitempty"`
	Err     error            `json:"-"`
}

func (v *CartView) setErr(err error) {
	v.Err = err
	if err != nil {
		v.Error = err.Error()
	}
}

func (v *SavedListView) setErr(err error) {
	v.Err = err
	if err != nil {
		v.Error = err.Error()
	}
}

// Cart returns the local mirror while signed out and the backend cart while
// signed in. A signed-in user without a backend cart gets a nil cart.
func (s *Selector) Cart(ctx context.Context) CartView {
	local := s.cart.Current()
	if !s.remoteMode() {
		return CartView{Cart: local, Source: enums.ViewSourceLocal}
	}

	value, err := s.remote(ctx, cartKey, func(ctx context.Context) (any, error) {
		remote, err := s.cartRemote.FetchRemoteCart(ctx)
		if err != nil {
			return nil, err
		}
		return cart.FromRemote(remote, s.now().UTC()), nil
	})
	if err == nil {
		return CartView{Cart: value.(*cart.Cart).Clone(), Source: enums.ViewSourceRemote}
	}

	s.fallbackLog(ctx, cartKey, err)
	view := CartView{Loading: stillLoading(err)}
	view.setErr(err)
	if local != nil {
		view.Cart = local
		view.Source = enums.ViewSourceLocalFallback
		return view
	}
	view.Source = enums.ViewSourceEmpty
	return view
}

func (s *Selector) SavedListings(ctx context.Context) SavedListView {
	return s.Saved(ctx, enums.SavedKindListing)
}

func (s *Selector) SavedFarms(ctx context.Context) SavedListView {
	return s.Saved(ctx, enums.SavedKindFarm)
}

// Saved returns the saved view for kind.
func (s *Selector) Saved(ctx context.Context, kind enums.SavedKind) SavedListView {
	src, ok := s.saved[kind]
	if !ok {
		view := SavedListView{Kind: kind, Items: []SavedView{}, Source: enums.ViewSourceEmpty}
		view.setErr(fmt.Errorf("saved %s not configured", kind))
		return view
	}
	if !s.remoteMode() {
		return s.localSaved(ctx, src)
	}

	key := kind.String()
	value, err := s.remote(ctx, key, func(ctx context.Context) (any, error) {
		return s.fetchSaved(ctx, src)
	})
	if err == nil {
		items := append([]SavedView(nil), value.([]SavedView)...)
		return SavedListView{Kind: kind, Items: items, Source: enums.ViewSourceRemote}
	}

	s.fallbackLog(ctx, key, err)
	view := SavedListView{Kind: kind, Loading: stillLoading(err)}
	view.setErr(err)
	entries := src.Set.List()
	if len(entries) == 0 {
		view.Items = []SavedView{}
		view.Source = enums.ViewSourceEmpty
		return view
	}
	view.Items = make([]SavedView, 0, len(entries))
	for _, e := range entries {
		view.Items = append(view.Items, SavedView{ID: e.ID, SavedAt: e.SavedAt})
	}
	view.Source = enums.ViewSourceLocalFallback
	return view
}

// localSaved resolves the locally saved ids into entities. A failed lookup
// still returns the ids.
func (s *Selector) localSaved(ctx context.Context, src SavedSource) SavedListView {
	kind := src.Set.Kind()
	ids := src.Set.IDs()
	view := SavedListView{Kind: kind, Items: make([]SavedView, 0, len(ids)), Source: enums.ViewSourceLocal}
	if len(ids) == 0 {
		return view
	}

	byID := map[string]*saved.Entity{}
	if s.entities != nil {
		entities, err := s.entities.FetchEntitiesByIDs(ctx, kind, ids)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "view", kind.String()), "entity lookup failed: "+err.Error())
			view.setErr(err)
		}
		for i := range entities {
			byID[entities[i].ID] = &entities[i]
		}
	}

	now := s.now().UTC()
	for _, id := range ids {
		view.Items = append(view.Items, SavedView{ID: id, SavedAt: now, Entity: byID[id]})
	}
	return view
}

// fetchSaved reads every page of the backend set and fills entities the
// backend did not embed.
func (s *Selector) fetchSaved(ctx context.Context, src SavedSource) ([]SavedView, error) {
	var entries []saved.RemoteEntry
	page := pagination.First(s.pageSize)
	for n := 0; n < maxSavedPages; n++ {
		batch, err := src.Remote.FetchSaved(ctx, page.Skip, page.Limit)
		if err != nil {
			return nil, err
		}
		entries = append(entries, batch...)
		next, more := page.Next(len(batch))
		if !more {
			break
		}
		page = next
	}
	views := make([]SavedView, 0, len(entries))
	var missing []string
	for _, e := range entries {
		views = append(views, SavedView{ID: e.ID, SavedAt: e.SavedAt, Entity: e.Entity})
		if e.Entity == nil {
			missing = append(missing, e.ID)
		}
	}
	if len(missing) == 0 || s.entities == nil {
		return views, nil
	}

	entities, err := s.entities.FetchEntitiesByIDs(ctx, src.Set.Kind(), missing)
	if err != nil {
		s.logg.Warn(ctx, "entity lookup failed: "+err.Error())
		return views, nil
	}
	byID := make(map[string]*saved.Entity, len(entities))
	for i := range entities {
		byID[entities[i].ID] = &entities[i]
	}
	for i := range views {
		if views[i].Entity == nil {
			views[i].Entity = byID[views[i].ID]
		}
	}
	return views, nil
}
