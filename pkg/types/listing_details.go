package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/farmcart-sync/pkg/enums"
)

// ListingDetails carries the type-specific portion of a cart line. Exactly one
// payload matching Kind is set; the zero value means "no details".
type ListingDetails struct {
	Kind      enums.ListingKind
	Produce   *ProduceDetails
	Livestock *LivestockDetails
	Equipment *EquipmentDetails
}

// ProduceDetails describes fruit, vegetables and other harvested goods.
type ProduceDetails struct {
	Unit        string     `json:"unit"`
	Variety     string     `json:"variety,omitempty"`
	Organic     bool       `json:"organic"`
	HarvestedAt *time.Time `json:"harvested_at,omitempty"`
}

// LivestockDetails describes animals sold per head.
type LivestockDetails struct {
	Breed     string `json:"breed"`
	Sex       string `json:"sex,omitempty"`
	AgeMonths int    `json:"age_months,omitempty"`
	HeadCount int    `json:"head_count,omitempty"`
}

// EquipmentDetails describes tools and machinery.
type EquipmentDetails struct {
	Brand     string `json:"brand,omitempty"`
	Model     string `json:"model,omitempty"`
	Year      int    `json:"year,omitempty"`
	Condition string `json:"condition"`
}

type listingDetailsWire struct {
	Kind enums.ListingKind `json:"kind"`
	Data json.RawMessage   `json:"data"`
}

// ProduceListing builds produce details.
func ProduceListing(d ProduceDetails) ListingDetails {
	return ListingDetails{Kind: enums.ListingKindProduce, Produce: &d}
}

// LivestockListing builds livestock details.
func LivestockListing(d LivestockDetails) ListingDetails {
	return ListingDetails{Kind: enums.ListingKindLivestock, Livestock: &d}
}

// EquipmentListing builds equipment details.
func EquipmentListing(d EquipmentDetails) ListingDetails {
	return ListingDetails{Kind: enums.ListingKindEquipment, Equipment: &d}
}

// IsZero reports whether no details are attached.
func (d ListingDetails) IsZero() bool {
	return d.Kind == "" && d.Produce == nil && d.Livestock == nil && d.Equipment == nil
}

// Validate checks that the payload matches the tag.
func (d ListingDetails) Validate() error {
	if d.IsZero() {
		return nil
	}
	set := 0
	for _, present := range []bool{d.Produce != nil, d.Livestock != nil, d.Equipment != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("listing details must carry exactly one payload, got %d", set)
	}
	switch d.Kind {
	case enums.ListingKindProduce:
		if d.Produce == nil {
			return fmt.Errorf("listing details tagged %q without produce payload", d.Kind)
		}
	case enums.ListingKindLivestock:
		if d.Livestock == nil {
			return fmt.Errorf("listing details tagged %q without livestock payload", d.Kind)
		}
	case enums.ListingKindEquipment:
		if d.Equipment == nil {
			return fmt.Errorf("listing details tagged %q without equipment payload", d.Kind)
		}
	default:
		return fmt.Errorf("invalid listing kind %q", d.Kind)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (d ListingDetails) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	var payload any
	switch d.Kind {
	case enums.ListingKindProduce:
		payload = d.Produce
	case enums.ListingKindLivestock:
		payload = d.Livestock
	case enums.ListingKindEquipment:
		payload = d.Equipment
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(listingDetailsWire{Kind: d.Kind, Data: data})
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *ListingDetails) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = ListingDetails{}
		return nil
	}

	var wire listingDetailsWire
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return err
	}

	out := ListingDetails{Kind: wire.Kind}
	var target any
	switch wire.Kind {
	case enums.ListingKindProduce:
		out.Produce = &ProduceDetails{}
		target = out.Produce
	case enums.ListingKindLivestock:
		out.Livestock = &LivestockDetails{}
		target = out.Livestock
	case enums.ListingKindEquipment:
		out.Equipment = &EquipmentDetails{}
		target = out.Equipment
	default:
		return fmt.Errorf("invalid listing kind %q", wire.Kind)
	}
	if len(wire.Data) > 0 && !bytes.Equal(wire.Data, []byte("null")) {
		if err := json.Unmarshal(wire.Data, target); err != nil {
			return fmt.Errorf("decode %s details: %w", wire.Kind, err)
		}
	}
	*d = out
	return nil
}
