package enums

// SyncFeature names one reconciled key space.
type SyncFeature string

const (
	SyncFeatureCart          SyncFeature = "cart"
	SyncFeatureSavedListings SyncFeature = "saved_listings"
	SyncFeatureSavedFarms    SyncFeature = "saved_farms"
)

// String implements fmt.Stringer.
func (f SyncFeature) String() string {
	return string(f)
}

// FeatureForSavedKind maps a saved kind onto its sync feature.
func FeatureForSavedKind(kind SavedKind) SyncFeature {
	if kind == SavedKindFarm {
		return SyncFeatureSavedFarms
	}
	return SyncFeatureSavedListings
}
