package readmodel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/farmcart-sync/internal/cart"
	"github.com/angelmondragon/farmcart-sync/internal/localstore"
	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/internal/session"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackend = errors.New("backend unavailable")

type fakeSession struct {
	mu     sync.Mutex
	status session.Status
}

func (f *fakeSession) Status() session.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeSession) set(st session.Status) {
	f.mu.Lock()
	f.status = st
	f.mu.Unlock()
}

type fakeCartRemote struct {
	cart.Remote
	calls   atomic.Int32
	err     error
	release chan struct{}
	remote  cart.RemoteCart
}

func (f *fakeCartRemote) FetchRemoteCart(context.Context) (cart.RemoteCart, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return cart.RemoteCart{}, f.err
	}
	return f.remote, nil
}

type fakeSavedRemote struct {
	saved.Remote
	calls   atomic.Int32
	entries []saved.RemoteEntry
	err     error
}

func (f *fakeSavedRemote) FetchSaved(_ context.Context, skip, limit int) ([]saved.RemoteEntry, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if skip >= len(f.entries) {
		return nil, nil
	}
	end := skip + limit
	if end > len(f.entries) {
		end = len(f.entries)
	}
	return f.entries[skip:end], nil
}

type fakeEntities struct {
	calls [][]string
	err   error
}

func (f *fakeEntities) FetchEntitiesByIDs(_ context.Context, _ enums.SavedKind, ids []string) ([]saved.Entity, error) {
	f.calls = append(f.calls, append([]string(nil), ids...))
	if f.err != nil {
		return nil, f.err
	}
	out := make([]saved.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, saved.Entity{ID: id, Name: "entity " + id})
	}
	return out, nil
}

type fixture struct {
	session    *fakeSession
	mirror     *cart.Mirror
	cartRemote *fakeCartRemote
	farms      *saved.Set
	farmsAPI   *fakeSavedRemote
	entities   *fakeEntities
	now        time.Time
	selector   *Selector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := localstore.NewMemoryStore()
	mirror, err := cart.NewMirror(cart.MirrorParams{Store: store})
	require.NoError(t, err)
	farms, err := saved.NewSet(saved.SetParams{Kind: enums.SavedKindFarm, Store: store})
	require.NoError(t, err)

	fx := &fixture{
		session: &fakeSession{},
		mirror:  mirror,
		cartRemote: &fakeCartRemote{remote: cart.RemoteCart{ID: 9, Items: []cart.RemoteItem{
			{ID: 1, ListingRef: "R", Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
		}}},
		farms:    farms,
		farmsAPI: &fakeSavedRemote{},
		entities: &fakeEntities{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	fx.selector, err = NewSelector(Params{
		Session:    fx.session,
		Cart:       mirror,
		CartRemote: fx.cartRemote,
		Saved:      []SavedSource{{Set: farms, Remote: fx.farmsAPI}},
		Entities:   fx.entities,
		RemoteTTL:  time.Minute,
		Now:        func() time.Time { return fx.now },
	})
	require.NoError(t, err)
	t.Cleanup(fx.selector.Close)
	return fx
}

func (fx *fixture) login() {
	fx.session.set(session.Status{Authenticated: true, UserID: "user-1"})
}

func TestCartViewLocalWhileSignedOut(t *testing.T) {
	fx := newFixture(t)
	_, _, err := fx.mirror.AddItem(context.Background(), cart.LineInput{ListingRef: "A", Quantity: 1, UnitPrice: decimal.NewFromInt(3)}, nil)
	require.NoError(t, err)

	view := fx.selector.Cart(context.Background())
	assert.Equal(t, enums.ViewSourceLocal, view.Source)
	require.NotNil(t, view.Cart)
	assert.Equal(t, "A", view.Cart.Items[0].ListingRef)
	assert.Zero(t, fx.cartRemote.calls.Load())
}

func TestCartViewResolvingStaysLocal(t *testing.T) {
	fx := newFixture(t)
	fx.session.set(session.Status{Authenticated: true, Resolving: true})

	view := fx.selector.Cart(context.Background())
	assert.Equal(t, enums.ViewSourceLocal, view.Source)
	assert.Nil(t, view.Cart)
}

func TestCartViewRemoteIsMemoized(t *testing.T) {
	fx := newFixture(t)
	fx.login()

	view := fx.selector.Cart(context.Background())
	assert.Equal(t, enums.ViewSourceRemote, view.Source)
	assert.Equal(t, "9", view.Cart.ID)
	assert.True(t, view.Cart.TotalPrice.Equal(decimal.NewFromInt(10)))

	fx.selector.Cart(context.Background())
	assert.EqualValues(t, 1, fx.cartRemote.calls.Load())

	fx.now = fx.now.Add(2 * time.Minute)
	fx.selector.Cart(context.Background())
	assert.EqualValues(t, 2, fx.cartRemote.calls.Load())
}

func TestCartViewInvalidatedByLocalChange(t *testing.T) {
	fx := newFixture(t)
	fx.login()
	fx.selector.Cart(context.Background())

	_, _, err := fx.mirror.AddItem(context.Background(), cart.LineInput{ListingRef: "B", Quantity: 1}, nil)
	require.NoError(t, err)

	fx.selector.Cart(context.Background())
	assert.EqualValues(t, 2, fx.cartRemote.calls.Load())
}

func TestCartViewFallsBackToLocalOnError(t *testing.T) {
	fx := newFixture(t)
	_, _, err := fx.mirror.AddItem(context.Background(), cart.LineInput{ListingRef: "A", Quantity: 1}, nil)
	require.NoError(t, err)
	fx.login()
	fx.cartRemote.err = errBackend

	view := fx.selector.Cart(context.Background())
	assert.Equal(t, enums.ViewSourceLocalFallback, view.Source)
	assert.False(t, view.Loading)
	assert.ErrorIs(t, view.Err, errBackend)
	assert.Equal(t, "A", view.Cart.Items[0].ListingRef)
}

func TestCartViewEmptyAndLoadingWhenSlow(t *testing.T) {
	fx := newFixture(t)
	fx.login()
	fx.cartRemote.release = make(chan struct{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	view := fx.selector.Cart(ctx)
	assert.Equal(t, enums.ViewSourceEmpty, view.Source)
	assert.True(t, view.Loading)
	assert.Nil(t, view.Cart)

	close(fx.cartRemote.release)
	require.Eventually(t, func() bool {
		return fx.selector.Cart(context.Background()).Source == enums.ViewSourceRemote
	}, time.Second, 10*time.Millisecond)
	assert.EqualValues(t, 1, fx.cartRemote.calls.Load())
}

func TestConcurrentCallersShareOneFetch(t *testing.T) {
	fx := newFixture(t)
	fx.login()
	fx.cartRemote.release = make(chan struct{})

	var wg sync.WaitGroup
	views := make([]CartView, 5)
	for i := range views {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			views[i] = fx.selector.Cart(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(fx.cartRemote.release)
	wg.Wait()

	assert.EqualValues(t, 1, fx.cartRemote.calls.Load())
	for _, v := range views {
		assert.Equal(t, enums.ViewSourceRemote, v.Source)
	}
}

func TestSavedViewSignedOutResolvesEntities(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.farms.Save(ctx, "F1")
	fx.farms.Save(ctx, "F2")

	view := fx.selector.SavedFarms(ctx)
	assert.Equal(t, enums.ViewSourceLocal, view.Source)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "entity F1", view.Items[0].Entity.Name)
	assert.Equal(t, fx.now, view.Items[0].SavedAt)
	assert.Equal(t, [][]string{{"F1", "F2"}}, fx.entities.calls)
	assert.Zero(t, fx.farmsAPI.calls.Load())
}

func TestSavedViewSignedOutEmptySkipsLookup(t *testing.T) {
	fx := newFixture(t)
	view := fx.selector.SavedFarms(context.Background())
	assert.Empty(t, view.Items)
	assert.Empty(t, fx.entities.calls)
}

func TestSavedViewEntityLookupFailureKeepsIDs(t *testing.T) {
	fx := newFixture(t)
	fx.farms.Save(context.Background(), "F1")
	fx.entities.err = errBackend

	view := fx.selector.SavedFarms(context.Background())
	require.Len(t, view.Items, 1)
	assert.Nil(t, view.Items[0].Entity)
	assert.ErrorIs(t, view.Err, errBackend)
}

func TestSavedViewRemoteFillsMissingEntities(t *testing.T) {
	fx := newFixture(t)
	fx.login()
	fx.farmsAPI.entries = []saved.RemoteEntry{
		{ID: "10", Entity: &saved.Entity{ID: "10", Name: "embedded"}},
		{ID: "20"},
	}

	view := fx.selector.SavedFarms(context.Background())
	assert.Equal(t, enums.ViewSourceRemote, view.Source)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "embedded", view.Items[0].Entity.Name)
	assert.Equal(t, "entity 20", view.Items[1].Entity.Name)
	assert.Equal(t, [][]string{{"20"}}, fx.entities.calls)
}

func TestSavedViewRemoteWalksEveryPage(t *testing.T) {
	fx := newFixture(t)
	sel, err := NewSelector(Params{
		Session:    fx.session,
		Cart:       fx.mirror,
		CartRemote: fx.cartRemote,
		Saved:      []SavedSource{{Set: fx.farms, Remote: fx.farmsAPI}},
		PageSize:   2,
		Now:        func() time.Time { return fx.now },
	})
	require.NoError(t, err)
	t.Cleanup(sel.Close)
	fx.login()
	fx.farmsAPI.entries = []saved.RemoteEntry{
		{ID: "F1", Entity: &saved.Entity{ID: "F1"}},
		{ID: "F2", Entity: &saved.Entity{ID: "F2"}},
		{ID: "F3", Entity: &saved.Entity{ID: "F3"}},
		{ID: "F4", Entity: &saved.Entity{ID: "F4"}},
		{ID: "F5", Entity: &saved.Entity{ID: "F5"}},
	}

	view := sel.SavedFarms(context.Background())
	require.NoError(t, view.Err)
	assert.Equal(t, enums.ViewSourceRemote, view.Source)
	ids := make([]string, 0, len(view.Items))
	for _, item := range view.Items {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"F1", "F2", "F3", "F4", "F5"}, ids)
	assert.EqualValues(t, 3, fx.farmsAPI.calls.Load())
}

func TestCartViewWithoutBackendCart(t *testing.T) {
	fx := newFixture(t)
	fx.login()
	fx.cartRemote.remote = cart.RemoteCart{}

	view := fx.selector.Cart(context.Background())
	require.NoError(t, view.Err)
	assert.Equal(t, enums.ViewSourceRemote, view.Source)
	assert.Nil(t, view.Cart)
}

func TestSavedViewFallbackAndInvalidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.farms.Save(ctx, "F1")
	fx.login()
	fx.farmsAPI.err = errBackend

	view := fx.selector.SavedFarms(ctx)
	assert.Equal(t, enums.ViewSourceLocalFallback, view.Source)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "F1", view.Items[0].ID)

	fx.farmsAPI.err = nil
	fx.farmsAPI.entries = []saved.RemoteEntry{{ID: "F1"}}
	assert.Equal(t, enums.ViewSourceRemote, fx.selector.SavedFarms(ctx).Source)
	fx.selector.SavedFarms(ctx)
	assert.EqualValues(t, 2, fx.farmsAPI.calls.Load())

	fx.farms.Save(ctx, "F2")
	fx.selector.SavedFarms(ctx)
	assert.EqualValues(t, 3, fx.farmsAPI.calls.Load())
}

func TestSavedViewUnknownKind(t *testing.T) {
	fx := newFixture(t)
	view := fx.selector.SavedListings(context.Background())
	assert.Equal(t, enums.ViewSourceEmpty, view.Source)
	assert.Error(t, view.Err)
}

func TestSessionHookDropsMemo(t *testing.T) {
	fx := newFixture(t)
	fx.login()
	fx.selector.Cart(context.Background())
	fx.selector.SessionHook()(context.Background(), session.Status{}, session.Status{})
	fx.selector.Cart(context.Background())
	assert.EqualValues(t, 2, fx.cartRemote.calls.Load())
}
