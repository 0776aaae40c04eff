package saved

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct{ authenticated bool }

func (f *fakeAuth) IsAuthenticated() bool { return f.authenticated }

type fakeRemote struct {
	mu        sync.Mutex
	saved     map[string]bool
	saveErr   error
	unsaveErr error
	saves     int
}

func newFakeRemote() *fakeRemote { return &fakeRemote{saved: map[string]bool{}} }

func (f *fakeRemote) FetchSaved(_ context.Context, skip, limit int) ([]RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []RemoteEntry
	for id := range f.saved {
		out = append(out, RemoteEntry{ID: id})
	}
	if skip >= len(out) {
		return nil, nil
	}
	end := skip + limit
	if end > len(out) {
		end = len(out)
	}
	return out[skip:end], nil
}

func (f *fakeRemote) SaveRemote(_ context.Context, id string) (RemoteEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return RemoteEntry{}, f.saveErr
	}
	f.saved[id] = true
	return RemoteEntry{ID: id}, nil
}

func (f *fakeRemote) UnsaveRemote(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unsaveErr != nil {
		return f.unsaveErr
	}
	delete(f.saved, id)
	return nil
}

func newTestGateway(t *testing.T, auth *fakeAuth) (*Gateway, *fakeRemote) {
	t.Helper()
	remote := newFakeRemote()
	gw, err := NewGateway(GatewayParams{Set: newTestSet(t, enums.SavedKindFarm, nil), Remote: remote, Auth: auth})
	require.NoError(t, err)
	return gw, remote
}

func TestGatewaySaveOfflineStaysLocal(t *testing.T) {
	gw, remote := newTestGateway(t, &fakeAuth{})
	entry, err := gw.Save(context.Background(), "F")
	require.NoError(t, err)
	assert.False(t, entry.Synced)
	assert.Zero(t, remote.saves)
	assert.True(t, gw.Set().IsSaved("F"))
}

func TestGatewaySaveAuthenticatedMarksSynced(t *testing.T) {
	ctx := context.Background()
	gw, remote := newTestGateway(t, &fakeAuth{authenticated: true})
	entry, err := gw.Save(ctx, "F")
	require.NoError(t, err)
	assert.True(t, entry.Synced)
	assert.True(t, remote.saved["F"])

	// already synced: no second remote call
	_, err = gw.Save(ctx, "F")
	require.NoError(t, err)
	assert.Equal(t, 1, remote.saves)
}

func TestGatewaySaveFailureRollsBack(t *testing.T) {
	gw, remote := newTestGateway(t, &fakeAuth{authenticated: true})
	remote.saveErr = errors.New("backend down")

	_, err := gw.Save(context.Background(), "F")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.False(t, gw.Set().IsSaved("F"))
}

func TestGatewaySaveFailureKeepsPreexistingEntry(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{}
	gw, remote := newTestGateway(t, auth)
	_, err := gw.Save(ctx, "F")
	require.NoError(t, err)

	auth.authenticated = true
	remote.saveErr = errors.New("backend down")
	_, err = gw.Save(ctx, "F")
	require.Error(t, err)
	assert.True(t, gw.Set().IsSaved("F"))
}

func TestGatewayUnsaveFailureRestores(t *testing.T) {
	ctx := context.Background()
	gw, remote := newTestGateway(t, &fakeAuth{authenticated: true})
	_, err := gw.Save(ctx, "F")
	require.NoError(t, err)

	remote.unsaveErr = errors.New("timeout")
	require.Error(t, gw.Unsave(ctx, "F"))
	assert.True(t, gw.Set().IsSaved("F"))

	remote.unsaveErr = pkgerrors.New(pkgerrors.CodeNotFound, "gone")
	require.NoError(t, gw.Unsave(ctx, "F"))
	assert.False(t, gw.Set().IsSaved("F"))
}

func TestGatewayToggle(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, &fakeAuth{})

	saved, err := gw.Toggle(ctx, "F")
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = gw.Toggle(ctx, "F")
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestGatewaySaveRequiresID(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeAuth{})
	_, err := gw.Save(context.Background(), "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
