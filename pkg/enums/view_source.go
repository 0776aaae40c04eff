package enums

// ViewSource records where a read-model view was sourced from.
type ViewSource string

const (
	ViewSourceLocal         ViewSource = "local"
	ViewSourceRemote        ViewSource = "remote"
	ViewSourceLocalFallback ViewSource = "local_fallback"
	ViewSourceEmpty         ViewSource = "empty"
)

// String implements fmt.Stringer.
func (s ViewSource) String() string {
	return string(s)
}

// Degraded reports whether the view is a fallback for a failed or pending remote read.
func (s ViewSource) Degraded() bool {
	return s == ViewSourceLocalFallback || s == ViewSourceEmpty
}
