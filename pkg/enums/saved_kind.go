package enums

import "fmt"

// SavedKind identifies which saved-item set an entry belongs to.
type SavedKind string

const (
	SavedKindListing SavedKind = "listing"
	SavedKindFarm    SavedKind = "farm"
)

var validSavedKinds = []SavedKind{
	SavedKindListing,
	SavedKindFarm,
}

// String implements fmt.Stringer.
func (k SavedKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known SavedKind.
func (k SavedKind) IsValid() bool {
	for _, candidate := range validSavedKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Plural returns the collection name used in store keys and REST paths.
func (k SavedKind) Plural() string {
	return string(k) + "s"
}

// ParseSavedKind converts raw input into a SavedKind. Plural forms are accepted.
func ParseSavedKind(value string) (SavedKind, error) {
	for _, candidate := range validSavedKinds {
		if string(candidate) == value || candidate.Plural() == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid saved kind %q", value)
}
