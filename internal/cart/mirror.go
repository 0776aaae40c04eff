package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/angelmondragon/farmcart-sync/internal/localstore"
	pkgerrors "github.com/angelmondragon/farmcart-sync/pkg/errors"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/metrics"
	"github.com/google/uuid"
)

// schemaVersion is the envelope version of the persisted cart.
const schemaVersion = 1

// Codec returns the envelope codec for the cart document.
func Codec() *localstore.Codec {
	return localstore.NewCodec(schemaVersion).Register(0, migrateV0)
}

// migrateV0 drops free-form type details written before they were a tagged union.
func migrateV0(data json.RawMessage) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	var items []map[string]json.RawMessage
	if raw, ok := doc["items"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
	}
	for _, item := range items {
		var tagged struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		}
		raw, ok := item["type_specific_details"]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &tagged); err != nil || tagged.Kind == "" {
			delete(item, "type_specific_details")
		}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	doc["items"] = encoded
	return json.Marshal(doc)
}

// MirrorParams groups dependencies for the cart mirror.
type MirrorParams struct {
	Store      localstore.Store
	Logger     *logger.Logger
	Metrics    *metrics.SyncMetrics
	GuestOwner string
	Now        func() time.Time
}

// Mirror owns the single in-memory cart and mirrors it to the local store
// after each mutation. There must be exactly one Mirror per store.
type Mirror struct {
	doc        *localstore.Document
	guestOwner string
	now        func() time.Time

	mu        sync.Mutex
	cart      *Cart
	listeners map[int]Listener
	nextSub   int

	// writeMu orders persistence so the latest state is the one written last.
	writeMu sync.Mutex
}

func NewMirror(params MirrorParams) (*Mirror, error) {
	doc, err := localstore.NewDocument(localstore.DocumentParams{
		Store:   params.Store,
		Codec:   Codec(),
		Key:     localstore.KeyCart,
		Logger:  params.Logger,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, err
	}
	guest := params.GuestOwner
	if guest == "" {
		guest = "guest"
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Mirror{
		doc:        doc,
		guestOwner: guest,
		now:        now,
		listeners:  make(map[int]Listener),
	}, nil
}

// Load hydrates the in-memory cart from the store. Unreadable data leaves the
// mirror empty.
func (m *Mirror) Load(ctx context.Context) *Cart {
	var stored Cart
	found := m.doc.Load(ctx, &stored)

	m.mu.Lock()
	if found {
		stored.recomputeTotals()
		m.cart = &stored
	} else {
		m.cart = nil
	}
	snapshot := m.cart.clone()
	m.mu.Unlock()

	m.notify(snapshot)
	return snapshot
}

// Current returns a copy of the cart, or nil when none exists.
func (m *Mirror) Current() *Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cart.clone()
}

// Create starts an empty cart for owner. Nothing is persisted until the first item is added.
func (m *Mirror) Create(owner, ownerName string) *Cart {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = m.newCart(owner, ownerName)
	return m.cart.clone()
}

func (m *Mirror) newCart(owner, ownerName string) *Cart {
	if owner == "" {
		owner = m.guestOwner
	}
	now := m.now().UTC()
	return &Cart{
		ID:             "local_" + strconv.FormatInt(now.UnixMilli(), 10),
		OwnerRef:       owner,
		OwnerName:      ownerName,
		Items:          []LineItem{},
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
}

// AddItem merges the input into the line for its listing, or appends a new line.
// A cart is created for the guest owner when none exists.
func (m *Mirror) AddItem(ctx context.Context, in LineInput, display *DisplayFields) (*Cart, LineItem, error) {
	if err := in.Validate(); err != nil {
		return nil, LineItem{}, err
	}

	m.mu.Lock()
	if m.cart == nil {
		m.cart = m.newCart("", "")
	}
	var line *LineItem
	if i := m.cart.indexOfListing(in.ListingRef); i >= 0 {
		line = &m.cart.Items[i]
		line.Quantity += in.Quantity
		line.UnitPrice = in.UnitPrice
		if !in.Details.IsZero() {
			line.Details = in.Details
		}
	} else {
		m.cart.Items = append(m.cart.Items, LineItem{
			ID:         "item_" + uuid.NewString(),
			ListingRef: in.ListingRef,
			Quantity:   in.Quantity,
			UnitPrice:  in.UnitPrice,
			Details:    in.Details,
		})
		line = &m.cart.Items[len(m.cart.Items)-1]
	}
	if display != nil {
		line.Display = *display
	}
	line.Synced = false
	line.Revision++
	added := *line
	snapshot := m.commitLocked()
	m.mu.Unlock()

	m.afterMutation(ctx, snapshot)
	return snapshot, added, nil
}

// UpdateItem merges update into the line. A resulting quantity below 1 removes the line.
// It returns a nil cart when no cart exists.
func (m *Mirror) UpdateItem(ctx context.Context, lineID string, update ItemUpdate) (*Cart, error) {
	m.mu.Lock()
	if m.cart == nil {
		m.mu.Unlock()
		return nil, nil
	}
	i := m.cart.indexOf(lineID)
	if i < 0 {
		m.mu.Unlock()
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cart line %s not found", lineID))
	}
	if update.Quantity != nil && *update.Quantity < 1 {
		m.cart.Items = append(m.cart.Items[:i], m.cart.Items[i+1:]...)
	} else {
		line := &m.cart.Items[i]
		if update.Quantity != nil {
			line.Quantity = *update.Quantity
		}
		if update.UnitPrice != nil {
			line.UnitPrice = *update.UnitPrice
		}
		if update.Details != nil {
			line.Details = *update.Details
		}
		if update.Display != nil {
			line.Display = *update.Display
		}
		line.Synced = false
		line.Revision++
	}
	snapshot := m.commitLocked()
	m.mu.Unlock()

	m.afterMutation(ctx, snapshot)
	return snapshot, nil
}

// RemoveItem drops the line. Removing an unknown line is a no-op.
func (m *Mirror) RemoveItem(ctx context.Context, lineID string) (*Cart, LineItem, bool) {
	m.mu.Lock()
	if m.cart == nil {
		m.mu.Unlock()
		return nil, LineItem{}, false
	}
	i := m.cart.indexOf(lineID)
	if i < 0 {
		snapshot := m.cart.clone()
		m.mu.Unlock()
		return snapshot, LineItem{}, false
	}
	removed := m.cart.Items[i]
	m.cart.Items = append(m.cart.Items[:i], m.cart.Items[i+1:]...)
	snapshot := m.commitLocked()
	m.mu.Unlock()

	m.afterMutation(ctx, snapshot)
	return snapshot, removed, true
}

// Clear empties the items and zeroes the totals; the cart itself is kept.
func (m *Mirror) Clear(ctx context.Context) *Cart {
	m.mu.Lock()
	if m.cart == nil {
		m.mu.Unlock()
		return nil
	}
	m.cart.Items = []LineItem{}
	snapshot := m.commitLocked()
	m.mu.Unlock()

	m.afterMutation(ctx, snapshot)
	return snapshot
}

// Reset forgets the cart entirely and deletes the persisted copy.
func (m *Mirror) Reset(ctx context.Context) {
	m.mu.Lock()
	m.cart = nil
	m.mu.Unlock()

	m.writeMu.Lock()
	m.doc.Remove(ctx)
	m.writeMu.Unlock()
	m.notify(nil)
}

// ItemsToSync returns the lines whose current state has not reached the backend.
func (m *Mirror) ItemsToSync() []LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cart == nil {
		return nil
	}
	var out []LineItem
	for _, item := range m.cart.Items {
		if !item.Synced {
			out = append(out, item)
		}
	}
	return out
}

// MarkSynced flags the given lines as pushed.
func (m *Mirror) MarkSynced(ctx context.Context, lineIDs ...string) {
	m.mu.Lock()
	if m.cart == nil {
		m.mu.Unlock()
		return
	}
	changed := false
	for _, id := range lineIDs {
		if i := m.cart.indexOf(id); i >= 0 && !m.cart.Items[i].Synced {
			m.cart.Items[i].Synced = true
			changed = true
		}
	}
	if !changed {
		m.mu.Unlock()
		return
	}
	snapshot := m.cart.clone()
	m.mu.Unlock()

	m.afterMutation(ctx, snapshot)
}

// MarkPushed records the backend id for a line. The line is flagged synced only
// if it has not been mutated since the pushed revision was read.
func (m *Mirror) MarkPushed(ctx context.Context, receipt PushReceipt) {
	m.mu.Lock()
	if m.cart == nil {
		m.mu.Unlock()
		return
	}
	i := m.cart.indexOf(receipt.LineID)
	if i < 0 {
		m.mu.Unlock()
		return
	}
	line := &m.cart.Items[i]
	if receipt.RemoteID != "" {
		line.RemoteID = receipt.RemoteID
	}
	if line.Revision == receipt.Revision {
		line.Synced = true
	}
	snapshot := m.cart.clone()
	m.mu.Unlock()

	m.afterMutation(ctx, snapshot)
}

// AdoptRemote replaces the local cart with the backend snapshot. Lines not yet
// pushed are carried over on top of it so a rejected push is never lost. When
// the backend has no cart the result is an empty cart for remote's owner.
func (m *Mirror) AdoptRemote(ctx context.Context, remote RemoteCart) *Cart {
	adopted := FromRemote(remote, m.now().UTC())

	m.mu.Lock()
	if adopted == nil {
		adopted = m.newCart(remote.OwnerID, remote.OwnerName)
	}
	if m.cart != nil {
		for _, line := range m.cart.Items {
			if !line.Synced {
				adopted.reapply(line)
			}
		}
		adopted.recomputeTotals()
	}
	m.cart = adopted
	snapshot := m.cart.clone()
	m.mu.Unlock()

	m.afterMutation(ctx, snapshot)
	return snapshot
}

// Subscribe registers a listener called with a copy of the cart after every change.
func (m *Mirror) Subscribe(listener Listener) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.listeners[id] = listener
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// commitLocked recomputes totals and refreshes timestamps. Callers hold m.mu.
func (m *Mirror) commitLocked() *Cart {
	m.cart.recomputeTotals()
	m.cart.touch(m.now().UTC())
	return m.cart.clone()
}

func (m *Mirror) afterMutation(ctx context.Context, snapshot *Cart) {
	m.persist(ctx)
	m.notify(snapshot)
}

func (m *Mirror) persist(ctx context.Context) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	latest := m.cart.clone()
	m.mu.Unlock()
	if latest == nil {
		return
	}
	m.doc.Save(ctx, latest)
}

func (m *Mirror) notify(snapshot *Cart) {
	m.mu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()
	for _, l := range listeners {
		l(snapshot.clone())
	}
}

// FromRemote converts a backend cart into the local shape with every line
// synced. It returns nil when the backend has no cart. Backend lines for the
// same listing are folded into the first one.
func FromRemote(remote RemoteCart, now time.Time) *Cart {
	if remote.ID == 0 {
		return nil
	}
	c := &Cart{
		ID:             strconv.FormatInt(remote.ID, 10),
		OwnerRef:       remote.OwnerID,
		OwnerName:      remote.OwnerName,
		Items:          make([]LineItem, 0, len(remote.Items)),
		CreatedAt:      remote.CreatedAt,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if !remote.UpdatedAt.IsZero() {
		c.UpdatedAt = remote.UpdatedAt
	}
	for _, item := range remote.Items {
		if i := c.indexOfListing(item.ListingRef); i >= 0 {
			c.Items[i].Quantity += item.Quantity
			continue
		}
		id := strconv.FormatInt(item.ID, 10)
		c.Items = append(c.Items, LineItem{
			ID:         id,
			RemoteID:   id,
			ListingRef: item.ListingRef,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Details:    item.Details,
			Display: DisplayFields{
				Title:      item.Title,
				ImageURL:   item.ImageURL,
				SellerID:   item.SellerID,
				SellerName: item.SellerName,
			},
			Synced: true,
		})
	}
	c.recomputeTotals()
	return c
}
