package localstore

import (
	"context"
	"errors"

	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/metrics"
)

// Document binds one key to a codec. Write failures are logged and swallowed so
// the caller's in-memory state stays authoritative for the rest of the session.
type Document struct {
	store   Store
	codec   *Codec
	key     string
	logg    *logger.Logger
	metrics *metrics.SyncMetrics
}

// DocumentParams groups dependencies for a Document.
type DocumentParams struct {
	Store   Store
	Codec   *Codec
	Key     string
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
}

func NewDocument(params DocumentParams) (*Document, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if params.Codec == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "codec is required")
	}
	if params.Key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "key is required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Document{
		store:   params.Store,
		codec:   params.Codec,
		key:     params.Key,
		logg:    logg,
		metrics: params.Metrics,
	}, nil
}

func (d *Document) Key() string { return d.key }

// Load decodes the stored value into out. It reports false when nothing is
// stored or the value could not be read; the failure is logged, not returned.
func (d *Document) Load(ctx context.Context, out any) bool {
	raw, err := d.store.Get(ctx, d.key)
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		d.fail(ctx, "get", err)
		return false
	}
	if err := d.codec.Decode(raw, out); err != nil {
		d.fail(ctx, "decode", err)
		return false
	}
	return true
}

// Save encodes and writes value.
func (d *Document) Save(ctx context.Context, value any) {
	raw, err := d.codec.Encode(value)
	if err != nil {
		d.fail(ctx, "encode", err)
		return
	}
	if err := d.store.Set(ctx, d.key, raw); err != nil {
		d.fail(ctx, "set", err)
	}
}

func (d *Document) Remove(ctx context.Context) {
	if err := d.store.Remove(ctx, d.key); err != nil {
		d.fail(ctx, "remove", err)
	}
}

func (d *Document) fail(ctx context.Context, op string, err error) {
	d.metrics.IncStoreFailure(d.key, op)
	ctx = d.logg.WithFields(ctx, map[string]any{"store_key": d.key, "store_op": op})
	d.logg.Error(ctx, "local store operation failed", pkgerrors.Wrap(pkgerrors.CodeStorage, err, "local store "+op))
}
