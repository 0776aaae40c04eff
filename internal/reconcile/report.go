package reconcile

import (
	"fmt"

	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"go.uber.org/multierr"
)

// Skip reasons recorded when a routine does not run.
const (
	SkipNothingToPush = "nothing_to_push"
	SkipInFlight      = "in_flight"
	SkipLockError     = "lock_error"
)

// PushResult is the outcome for one pushed item.
type PushResult struct {
	Item    string `json:"item"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// RoutineReport describes one push or pull pass.
type RoutineReport struct {
	Routine    string       `json:"routine"`
	Skipped    bool         `json:"skipped"`
	SkipReason string       `json:"skip_reason,omitempty"`
	Results    []PushResult `json:"results,omitempty"`
	Pulled     int          `json:"pulled,omitempty"`
	Error      string       `json:"error,omitempty"`
	Err        error        `json:"-"`
}

func (r *RoutineReport) skip(reason string) {
	r.Skipped = true
	r.SkipReason = reason
}

func (r *RoutineReport) fail(err error) {
	r.Err = err
	if err != nil {
		r.Error = err.Error()
	}
}

// FeatureReport holds the push and pull reports for one feature.
type FeatureReport struct {
	Feature enums.SyncFeature `json:"feature"`
	Push    RoutineReport     `json:"push"`
	Pull    RoutineReport     `json:"pull"`
}

// Report is the outcome of a sync run. Failures are informational; a run never fails as a whole.
type Report struct {
	Features []FeatureReport `json:"features"`
}

// Err combines every item and routine error in the report.
func (r Report) Err() error {
	var err error
	for _, f := range r.Features {
		for _, routine := range []RoutineReport{f.Push, f.Pull} {
			if routine.Err != nil {
				err = multierr.Append(err, fmt.Errorf("%s: %w", routine.Routine, routine.Err))
			}
			for _, result := range routine.Results {
				if result.Err != nil {
					err = multierr.Append(err, fmt.Errorf("%s %s: %w", routine.Routine, result.Item, result.Err))
				}
			}
		}
	}
	return err
}

// Feature returns the report for feature.
func (r Report) Feature(feature enums.SyncFeature) (FeatureReport, bool) {
	for _, f := range r.Features {
		if f.Feature == feature {
			return f, true
		}
	}
	return FeatureReport{}, false
}

// Failed counts unsuccessful push items.
func (r RoutineReport) Failed() int {
	n := 0
	for _, result := range r.Results {
		if !result.Success {
			n++
		}
	}
	return n
}
