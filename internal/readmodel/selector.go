// Package readmodel picks the data source the UI should render: the local
// mirror while signed out, the backend while signed in, and the local cache
// whenever the backend is slow or failing.
package readmodel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/farmcart-sync/internal/cart"
	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/internal/session"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/pagination"
	"golang.org/x/sync/singleflight"
)

const (
	defaultRemoteTTL = 30 * time.Second
	cartKey          = "cart"
	maxSavedPages    = 200
)

// SavedSource pairs a local set with its backend contract.
type SavedSource struct {
	Set    *saved.Set
	Remote saved.Remote
}

type Params struct {
	Session    session.Provider
	Cart       *cart.Mirror
	CartRemote cart.Remote
	Saved      []SavedSource
	Entities   saved.EntityFetcher
	Logger     *logger.Logger
	RemoteTTL  time.Duration
	PageSize   int
	Now        func() time.Time
}

type cacheEntry struct {
	value     any
	fetchedAt time.Time
}

// Selector serves cart and saved views.
type Selector struct {
	session    session.Provider
	cart       *cart.Mirror
	cartRemote cart.Remote
	saved      map[enums.SavedKind]SavedSource
	entities   saved.EntityFetcher
	logg       *logger.Logger
	ttl        time.Duration
	pageSize   int
	now        func() time.Time

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cacheEntry
	gen   map[string]uint64

	unsubscribe []func()
}

func NewSelector(params Params) (*Selector, error) {
	if params.Session == nil || params.Cart == nil || params.CartRemote == nil {
		return nil, errors.New("session, cart mirror and cart remote required")
	}
	s := &Selector{
		session:    params.Session,
		cart:       params.Cart,
		cartRemote: params.CartRemote,
		saved:      make(map[enums.SavedKind]SavedSource, len(params.Saved)),
		entities:   params.Entities,
		logg:       params.Logger,
		ttl:        params.RemoteTTL,
		pageSize:   params.PageSize,
		now:        params.Now,
		cache:      make(map[string]cacheEntry),
		gen:        make(map[string]uint64),
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.ttl <= 0 {
		s.ttl = defaultRemoteTTL
	}
	s.pageSize = pagination.NormalizeLimit(s.pageSize)
	if s.now == nil {
		s.now = time.Now
	}

	s.unsubscribe = append(s.unsubscribe, s.cart.Subscribe(func(*cart.Cart) { s.Invalidate(cartKey) }))
	for _, src := range params.Saved {
		if src.Set == nil || src.Remote == nil {
			return nil, errors.New("saved set and remote required")
		}
		kind := src.Set.Kind()
		s.saved[kind] = src
		key := kind.String()
		s.unsubscribe = append(s.unsubscribe, src.Set.Subscribe(func([]saved.Entry) { s.Invalidate(key) }))
	}
	return s, nil
}

// Close detaches the selector from the local managers.
func (s *Selector) Close() {
	for _, unsub := range s.unsubscribe {
		unsub()
	}
	s.unsubscribe = nil
}

// Invalidate drops the memoized remote result for key. Fetches already in
// flight are not stored.
func (s *Selector) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, key)
	s.gen[key]++
}

// InvalidateAll drops every memoized remote result.
func (s *Selector) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.cache {
		delete(s.cache, key)
	}
	for key := range s.gen {
		s.gen[key]++
	}
}

// SessionHook invalidates the memo on login and logout so views never mix users.
func (s *Selector) SessionHook() session.Hook {
	return func(context.Context, session.Status, session.Status) {
		s.InvalidateAll()
	}
}

func (s *Selector) remoteMode() bool {
	st := s.session.Status()
	return st.Authenticated && !st.Resolving
}

// remote returns the memoized value for key or fetches it once for all
// concurrent callers. The shared fetch outlives a caller whose context ends.
func (s *Selector) remote(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error) {
	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		s.mu.Unlock()
		return entry.value, nil
	}
	s.mu.Unlock()

	ch := s.group.DoChan(key, func() (any, error) {
		s.mu.Lock()
		gen := s.gen[key]
		s.mu.Unlock()

		value, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if s.gen[key] == gen {
			s.cache[key] = cacheEntry{value: value, fetchedAt: s.now()}
		}
		s.mu.Unlock()
		return value, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Selector) fallbackLog(ctx context.Context, key string, err error) {
	ctx = s.logg.WithField(ctx, "view", key)
	if stillLoading(err) {
		s.logg.Info(ctx, "remote view still loading; rendering local cache")
		return
	}
	s.logg.Warn(ctx, "remote view failed; rendering local cache: "+err.Error())
}

func stillLoading(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
