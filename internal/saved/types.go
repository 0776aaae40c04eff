package saved

import (
	"context"
	"time"

	"github.com/angelmondragon/farmcart-sync/internal/localstore"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/shopspring/decimal"
)

// Entry is one saved listing or farm. (ID, Kind) is unique within a set.
type Entry struct {
	ID      string          `json:"id"`
	Kind    enums.SavedKind `json:"kind"`
	SavedAt time.Time       `json:"saved_at"`
	Synced  bool            `json:"synced"`
}

// Entity is the display projection of a saved listing or farm.
type Entity struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	ImageURL string           `json:"image_url,omitempty"`
	Location string           `json:"location,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// RemoteEntry is a saved item as returned by the backend.
type RemoteEntry struct {
	ID      string    `json:"id"`
	SavedAt time.Time `json:"saved_at"`
	Entity  *Entity   `json:"entity,omitempty"`
}

// Remote is the backend saved-items API for one kind.
type Remote interface {
	FetchSaved(ctx context.Context, skip, limit int) ([]RemoteEntry, error)
	SaveRemote(ctx context.Context, id string) (RemoteEntry, error)
	UnsaveRemote(ctx context.Context, id string) error
}

// EntityFetcher resolves ids to entities without touching local state.
type EntityFetcher interface {
	FetchEntitiesByIDs(ctx context.Context, kind enums.SavedKind, ids []string) ([]Entity, error)
}

// AuthState reports whether remote calls should be attempted.
type AuthState interface {
	IsAuthenticated() bool
}

// Listener observes the set after every change.
type Listener func([]Entry)

// StoreKey returns the local store key for kind.
func StoreKey(kind enums.SavedKind) string {
	if kind == enums.SavedKindFarm {
		return localstore.KeySavedFarms
	}
	return localstore.KeySavedListings
}
