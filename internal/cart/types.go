package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/farmcart-sync/pkg/types"
	"github.com/shopspring/decimal"
)

// Cart is the device-local cart snapshot.
type Cart struct {
	ID             string          `json:"id"`
	OwnerRef       string          `json:"owner_ref"`
	OwnerName      string          `json:"owner_name,omitempty"`
	Items          []LineItem      `json:"items"`
	TotalItemCount int             `json:"total_item_count"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	LastAccessedAt time.Time       `json:"last_accessed_at"`
}

// LineItem is one listing in the cart. ListingRef is the merge key.
type LineItem struct {
	ID         string               `json:"id"`
	RemoteID   string               `json:"remote_id,omitempty"`
	ListingRef string               `json:"listing_ref"`
	Quantity   int                  `json:"quantity"`
	UnitPrice  decimal.Decimal      `json:"unit_price"`
	Details    types.ListingDetails `json:"type_specific_details"`
	Display    DisplayFields        `json:"display"`
	Synced     bool                 `json:"synced"`
	Revision   int                  `json:"revision"`
}

// DisplayFields are denormalized for offline rendering.
type DisplayFields struct {
	Title      string `json:"title,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	SellerID   string `json:"seller_id,omitempty"`
	SellerName string `json:"seller_name,omitempty"`
}

// LineInput is the payload for adding a listing.
type LineInput struct {
	ListingRef string               `json:"listing_ref" validate:"required,max=128"`
	Quantity   int                  `json:"quantity" validate:"min=1"`
	UnitPrice  decimal.Decimal      `json:"unit_price" validate:"gte=0"`
	Details    types.ListingDetails `json:"type_specific_details"`
}

// ItemUpdate carries the fields to merge into a line. Nil fields are left alone.
type ItemUpdate struct {
	Quantity  *int                  `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal      `json:"unit_price,omitempty"`
	Details   *types.ListingDetails `json:"type_specific_details,omitempty"`
	Display   *DisplayFields        `json:"display,omitempty"`
}

// PushReceipt confirms that a line's state at Revision reached the backend.
type PushReceipt struct {
	LineID   string
	RemoteID string
	Revision int
}

// Listener observes cart snapshots after every change. A nil cart means none exists.
type Listener func(*Cart)

// RemoteCart is the backend's cart snapshot.
type RemoteCart struct {
	ID        int64        `json:"id"`
	OwnerID   string       `json:"owner_id"`
	OwnerName string       `json:"owner_name,omitempty"`
	Items     []RemoteItem `json:"items"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// RemoteItem is a backend cart line with its server-side display fields.
type RemoteItem struct {
	ID         int64                `json:"id"`
	ListingRef string               `json:"listing_id"`
	Quantity   int                  `json:"quantity"`
	UnitPrice  decimal.Decimal      `json:"unit_price"`
	Details    types.ListingDetails `json:"type_specific_details"`
	Title      string               `json:"title,omitempty"`
	ImageURL   string               `json:"image_url,omitempty"`
	SellerID   string               `json:"seller_id,omitempty"`
	SellerName string               `json:"seller_name,omitempty"`
}

// RemoteItemInput is the body sent when adding a line to the backend cart.
type RemoteItemInput struct {
	ListingRef string               `json:"listing_id"`
	Quantity   int                  `json:"quantity"`
	UnitPrice  decimal.Decimal      `json:"unit_price"`
	Details    types.ListingDetails `json:"type_specific_details"`
}

// RemoteItemPatch updates an existing backend line.
type RemoteItemPatch struct {
	Quantity  *int                  `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal      `json:"unit_price,omitempty"`
	Details   *types.ListingDetails `json:"type_specific_details,omitempty"`
}

// Remote is the backend cart API.
type Remote interface {
	FetchRemoteCart(ctx context.Context) (RemoteCart, error)
	PushCartItem(ctx context.Context, item RemoteItemInput) (RemoteItem, error)
	UpdateRemoteCartItem(ctx context.Context, id string, patch RemoteItemPatch) (RemoteItem, error)
	RemoveRemoteCartItem(ctx context.Context, id string) error
	ClearRemoteCart(ctx context.Context) error
}

// AuthState reports whether remote calls should be attempted and for whom.
type AuthState interface {
	IsAuthenticated() bool
	Principal() (id, name string)
}

// Clone returns a copy whose items can be changed independently.
func (c *Cart) Clone() *Cart { return c.clone() }

func (c *Cart) clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = append([]LineItem(nil), c.Items...)
	return &out
}

func (c *Cart) indexOf(lineID string) int {
	for i := range c.Items {
		if c.Items[i].ID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOfListing(ref string) int {
	for i := range c.Items {
		if c.Items[i].ListingRef == ref {
			return i
		}
	}
	return -1
}

// Item returns the line with the given id.
func (c *Cart) Item(lineID string) (LineItem, bool) {
	if c == nil {
		return LineItem{}, false
	}
	if i := c.indexOf(lineID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// ItemForListing returns the line holding the listing.
func (c *Cart) ItemForListing(ref string) (LineItem, bool) {
	if c == nil {
		return LineItem{}, false
	}
	if i := c.indexOfListing(ref); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// reapply puts an unsynced local line over the backend line for the same
// listing, taking over its backend id. A line the backend does not hold loses
// any stale backend id so it is pushed as new.
func (c *Cart) reapply(line LineItem) {
	if i := c.indexOfListing(line.ListingRef); i >= 0 {
		line.RemoteID = c.Items[i].RemoteID
		if line.Display == (DisplayFields{}) {
			line.Display = c.Items[i].Display
		}
		c.Items[i] = line
		return
	}
	line.RemoteID = ""
	c.Items = append(c.Items, line)
}

func (c *Cart) recomputeTotals() {
	count := 0
	total := decimal.Zero
	for _, item := range c.Items {
		count += item.Quantity
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	c.TotalItemCount = count
	c.TotalPrice = total
}

func (c *Cart) touch(now time.Time) {
	c.UpdatedAt = now
	c.LastAccessedAt = now
}
