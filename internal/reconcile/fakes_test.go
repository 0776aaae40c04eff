package reconcile

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/farmcart-sync/internal/cart"
	"github.com/angelmondragon/farmcart-sync/internal/localstore"
	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend unavailable")

type fakeCartRemote struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]cart.RemoteItem
	failRefs  map[string]bool
	fetchErr  error
	pushCalls []string
	inFlight  int
	maxFlight int
	delay     time.Duration
}

func newFakeCartRemote() *fakeCartRemote {
	return &fakeCartRemote{nextID: 500, items: map[int64]cart.RemoteItem{}, failRefs: map[string]bool{}}
}

func (f *fakeCartRemote) FetchRemoteCart(context.Context) (cart.RemoteCart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return cart.RemoteCart{}, f.fetchErr
	}
	out := cart.RemoteCart{ID: 77, OwnerID: "user-1"}
	ids := make([]int64, 0, len(f.items))
	for id := range f.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		out.Items = append(out.Items, f.items[id])
	}
	return out, nil
}

func (f *fakeCartRemote) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeCartRemote) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeCartRemote) PushCartItem(_ context.Context, in cart.RemoteItemInput) (cart.RemoteItem, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushCalls = append(f.pushCalls, in.ListingRef)
	if f.failRefs[in.ListingRef] {
		return cart.RemoteItem{}, errBackend
	}
	f.nextID++
	item := cart.RemoteItem{ID: f.nextID, ListingRef: in.ListingRef, Quantity: in.Quantity, UnitPrice: in.UnitPrice, Title: "server " + in.ListingRef}
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeCartRemote) UpdateRemoteCartItem(_ context.Context, id string, patch cart.RemoteItemPatch) (cart.RemoteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(id, 10, 64)
	item := f.items[n]
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	f.items[n] = item
	return item, nil
}

func (f *fakeCartRemote) RemoveRemoteCartItem(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(id, 10, 64)
	delete(f.items, n)
	return nil
}

func (f *fakeCartRemote) ClearRemoteCart(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = map[int64]cart.RemoteItem{}
	return nil
}

// noCartRemote answers like a backend where the user has no cart yet.
type noCartRemote struct{ *fakeCartRemote }

func (noCartRemote) FetchRemoteCart(context.Context) (cart.RemoteCart, error) {
	return cart.RemoteCart{}, nil
}

type fakeSavedRemote struct {
	mu       sync.Mutex
	ids      []string
	failIDs  map[string]bool
	fetchErr error
	saves    []string
	fetches  int
}

func newFakeSavedRemote(ids ...string) *fakeSavedRemote {
	return &fakeSavedRemote{ids: ids, failIDs: map[string]bool{}}
}

func (f *fakeSavedRemote) FetchSaved(_ context.Context, skip, limit int) ([]saved.RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if skip >= len(f.ids) {
		return nil, nil
	}
	end := skip + limit
	if end > len(f.ids) {
		end = len(f.ids)
	}
	out := make([]saved.RemoteEntry, 0, end-skip)
	for _, id := range f.ids[skip:end] {
		out = append(out, saved.RemoteEntry{ID: id})
	}
	return out, nil
}

func (f *fakeSavedRemote) SaveRemote(ctx context.Context, id string) (saved.RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, id)
	if err := ctx.Err(); err != nil {
		return saved.RemoteEntry{}, err
	}
	if f.failIDs[id] {
		return saved.RemoteEntry{}, errBackend
	}
	f.ids = append(f.ids, id)
	return saved.RemoteEntry{ID: id}, nil
}

func (f *fakeSavedRemote) UnsaveRemote(context.Context, string) error { return nil }

type fixture struct {
	store       localstore.Store
	mirror      *cart.Mirror
	cartRemote  *fakeCartRemote
	listings    *saved.Set
	farms       *saved.Set
	listingsAPI *fakeSavedRemote
	farmsAPI    *fakeSavedRemote
	orch        *Orchestrator
}

func newFixture(t *testing.T, params OrchestratorParams) *fixture {
	t.Helper()
	store := localstore.NewMemoryStore()
	mirror, err := cart.NewMirror(cart.MirrorParams{Store: store})
	require.NoError(t, err)
	listings, err := saved.NewSet(saved.SetParams{Kind: enums.SavedKindListing, Store: store})
	require.NoError(t, err)
	farms, err := saved.NewSet(saved.SetParams{Kind: enums.SavedKindFarm, Store: store})
	require.NoError(t, err)

	fx := &fixture{
		store:       store,
		mirror:      mirror,
		cartRemote:  newFakeCartRemote(),
		listings:    listings,
		farms:       farms,
		listingsAPI: newFakeSavedRemote(),
		farmsAPI:    newFakeSavedRemote(),
	}
	params.Cart = mirror
	params.CartRemote = fx.cartRemote
	params.Saved = []SavedFeature{
		{Set: listings, Remote: fx.listingsAPI},
		{Set: farms, Remote: fx.farmsAPI},
	}
	fx.orch, err = NewOrchestrator(params)
	require.NoError(t, err)
	return fx
}

func entryIDs(entries []saved.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	sort.Strings(out)
	return out
}
