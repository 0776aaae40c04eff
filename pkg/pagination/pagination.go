package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 50
	// MaxLimit caps how many rows any offset query can request.
	MaxLimit = 200
)

// Page is an offset window over a remote collection.
type Page struct {
	Skip  int
	Limit int
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// First returns the opening page for limit.
func First(limit int) Page {
	return Page{Skip: 0, Limit: NormalizeLimit(limit)}
}

// Next returns the page after one that returned got rows. A short page ends
// the walk.
func (p Page) Next(got int) (Page, bool) {
	if got < p.Limit {
		return p, false
	}
	return Page{Skip: p.Skip + got, Limit: p.Limit}, true
}
