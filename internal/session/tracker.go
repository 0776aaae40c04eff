// Package session tracks the authentication status that drives the read-model
// selector and the login-triggered sync.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/farmcart-sync/pkg/auth"
	"github.com/angelmondragon/farmcart-sync/pkg/config"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
)

// Status is a point-in-time view of the session.
type Status struct {
	Authenticated bool      `json:"authenticated"`
	Resolving     bool      `json:"resolving"`
	UserID        string    `json:"user_id,omitempty"`
	UserName      string    `json:"user_name,omitempty"`
	Token         string    `json:"-"`
	ChangedAt     time.Time `json:"changed_at"`
}

// Provider exposes the current status.
type Provider interface {
	Status() Status
}

// Hook runs on an edge. prev and next are the statuses either side of it.
type Hook func(ctx context.Context, prev, next Status)

// Tracker owns the session status and fires hooks on login/logout edges.
// Hooks run synchronously on the goroutine that caused the edge.
type Tracker struct {
	jwt  config.JWTConfig
	logg *logger.Logger
	now  func() time.Time

	mu       sync.RWMutex
	status   Status
	onLogin  []Hook
	onLogout []Hook
}

func NewTracker(jwtCfg config.JWTConfig, logg *logger.Logger) *Tracker {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Tracker{jwt: jwtCfg, logg: logg, now: time.Now}
}

func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Tracker) IsAuthenticated() bool {
	return t.Status().Authenticated
}

// Principal returns the authenticated user's id and name.
func (t *Tracker) Principal() (string, string) {
	st := t.Status()
	return st.UserID, st.UserName
}

// Token returns the bearer token for remote calls.
func (t *Tracker) Token() string {
	return t.Status().Token
}

func (t *Tracker) OnLogin(h Hook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLogin = append(t.onLogin, h)
}

func (t *Tracker) OnLogout(h Hook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLogout = append(t.onLogout, h)
}

// BeginResolving marks the session as undetermined, e.g. while a stored token is checked.
func (t *Tracker) BeginResolving() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Resolving = true
	t.status.ChangedAt = t.now().UTC()
}

// Login authenticates with an access token. Logging in as a different user
// first fires the logout edge for the previous one.
func (t *Tracker) Login(ctx context.Context, token string) (Status, error) {
	claims, err := auth.ParseSessionToken(t.jwt, token)
	if err != nil {
		t.mu.Lock()
		t.status.Resolving = false
		t.mu.Unlock()
		return t.Status(), pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}

	next := Status{
		Authenticated: true,
		UserID:        claims.Principal(),
		UserName:      claims.Name,
		Token:         token,
		ChangedAt:     t.now().UTC(),
	}

	t.mu.Lock()
	prev := t.status
	t.status = next
	t.mu.Unlock()

	if prev.Authenticated && prev.UserID == next.UserID {
		return next, nil
	}
	if prev.Authenticated {
		t.fire(ctx, t.logoutHooks(), prev, Status{ChangedAt: next.ChangedAt})
	}
	ctx = t.logg.WithUserID(ctx, next.UserID)
	t.logg.Info(ctx, "session authenticated")
	t.fire(ctx, t.loginHooks(), prev, next)
	return next, nil
}

// Logout drops the session. Logging out while unauthenticated is a no-op.
func (t *Tracker) Logout(ctx context.Context) Status {
	t.mu.Lock()
	prev := t.status
	next := Status{ChangedAt: t.now().UTC()}
	t.status = next
	t.mu.Unlock()

	if !prev.Authenticated {
		return next
	}
	ctx = t.logg.WithUserID(ctx, prev.UserID)
	t.logg.Info(ctx, "session ended")
	t.fire(ctx, t.logoutHooks(), prev, next)
	return next
}

func (t *Tracker) loginHooks() []Hook {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Hook(nil), t.onLogin...)
}

func (t *Tracker) logoutHooks() []Hook {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Hook(nil), t.onLogout...)
}

func (t *Tracker) fire(ctx context.Context, hooks []Hook, prev, next Status) {
	for _, h := range hooks {
		h(ctx, prev, next)
	}
}
