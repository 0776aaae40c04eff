// Package localstore is the device-persisted key/value byte store backing the
// cart mirror and the saved-item sets.
package localstore

import (
	"context"
	"errors"
)

// Fixed keys for the three persisted documents.
const (
	KeyCart          = "cart"
	KeySavedListings = "saved_listings"
	KeySavedFarms    = "saved_farms"
)

// ErrNotFound is returned by Get when the key has never been written or was removed.
var ErrNotFound = errors.New("localstore: key not found")

// Store is a durable byte store. There is no transactionality across keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
