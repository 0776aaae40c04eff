// Package reconcile runs the login-triggered push and pull passes that bring
// the device-local cart and saved sets in line with the backend.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/farmcart-sync/internal/cart"
	"github.com/angelmondragon/farmcart-sync/internal/saved"
	"github.com/angelmondragon/farmcart-sync/internal/session"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/metrics"
	"github.com/angelmondragon/farmcart-sync/pkg/pagination"
	"golang.org/x/sync/errgroup"
)

const maxPullPages = 200

// SavedFeature pairs a saved set with its backend contract.
type SavedFeature struct {
	Set    *saved.Set
	Remote saved.Remote
}

// OrchestratorParams configure the orchestrator.
type OrchestratorParams struct {
	Logger          *logger.Logger
	Metrics         *metrics.SyncMetrics
	Cart            *cart.Mirror
	CartRemote      cart.Remote
	Saved           []SavedFeature
	Locks           map[enums.SyncFeature]Lock
	PushConcurrency int
	PageSize        int
	// Auth names the owner of a cart created when the backend has none.
	Auth cart.AuthState
}

// Orchestrator reconciles each feature with a push pass followed by a pull pass.
type Orchestrator struct {
	logg            *logger.Logger
	metrics         *metrics.SyncMetrics
	cart            *cart.Mirror
	cartRemote      cart.Remote
	auth            cart.AuthState
	saved           []SavedFeature
	locks           map[enums.SyncFeature]Lock
	pushConcurrency int
	pageSize        int
}

// NewOrchestrator builds an orchestrator. Features without a lock get a LocalLock.
func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Cart == nil || params.CartRemote == nil {
		return nil, fmt.Errorf("cart mirror and remote required")
	}
	for _, f := range params.Saved {
		if f.Set == nil || f.Remote == nil {
			return nil, fmt.Errorf("saved set and remote required")
		}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	locks := LocalLocks()
	for feature, lock := range params.Locks {
		if lock != nil {
			locks[feature] = lock
		}
	}
	concurrency := params.PushConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	pageSize := pagination.NormalizeLimit(params.PageSize)
	return &Orchestrator{
		logg:            logg,
		metrics:         params.Metrics,
		cart:            params.Cart,
		cartRemote:      params.CartRemote,
		auth:            params.Auth,
		saved:           params.Saved,
		locks:           locks,
		pushConcurrency: concurrency,
		pageSize:        pageSize,
	}, nil
}

// OnLogin returns a session hook that runs every feature on the login edge.
// The sync is detached from the caller's cancellation.
func (o *Orchestrator) OnLogin() session.Hook {
	return func(ctx context.Context, _, _ session.Status) {
		ctx = context.WithoutCancel(ctx)
		report := o.Run(ctx)
		if err := report.Err(); err != nil {
			o.logg.Warn(ctx, "login sync finished with failures: "+err.Error())
		}
	}
}

// Run reconciles all features concurrently.
func (o *Orchestrator) Run(ctx context.Context) Report {
	features := []enums.SyncFeature{enums.SyncFeatureCart}
	for _, f := range o.saved {
		features = append(features, enums.FeatureForSavedKind(f.Set.Kind()))
	}

	reports := make([]FeatureReport, len(features))
	var g errgroup.Group
	for i, feature := range features {
		i, feature := i, feature
		g.Go(func() error {
			reports[i] = o.RunFeature(ctx, feature)
			return nil
		})
	}
	_ = g.Wait()
	return Report{Features: reports}
}

// RunFeature pushes then pulls one feature. A feature already being synced is skipped.
func (o *Orchestrator) RunFeature(ctx context.Context, feature enums.SyncFeature) FeatureReport {
	ctx = o.logg.WithFeature(ctx, feature.String())
	report := FeatureReport{
		Feature: feature,
		Push:    RoutineReport{Routine: feature.String() + "_push"},
		Pull:    RoutineReport{Routine: feature.String() + "_pull"},
	}

	lock := o.locks[feature]
	locked, err := lock.Acquire(ctx)
	if err != nil {
		o.logg.Error(ctx, "sync lock acquire failed", err)
		o.skipBoth(&report, SkipLockError)
		return report
	}
	if !locked {
		o.logg.Info(ctx, "sync already in flight; skipping")
		o.skipBoth(&report, SkipInFlight)
		return report
	}
	defer func() {
		if relErr := lock.Release(ctx); relErr != nil {
			o.logg.Error(ctx, "failed to release sync lock", relErr)
		}
	}()

	switch feature {
	case enums.SyncFeatureCart:
		o.timed(ctx, &report.Push, o.pushCart)
		o.timed(ctx, &report.Pull, o.pullCart)
	default:
		f, ok := o.savedFeature(feature)
		if !ok {
			report.Push.fail(fmt.Errorf("feature %s not configured", feature))
			return report
		}
		o.timed(ctx, &report.Push, func(ctx context.Context, r *RoutineReport) { o.pushSaved(ctx, f, r) })
		o.timed(ctx, &report.Pull, func(ctx context.Context, r *RoutineReport) { o.pullSaved(ctx, f, r) })
	}
	return report
}

func (o *Orchestrator) savedFeature(feature enums.SyncFeature) (SavedFeature, bool) {
	for _, f := range o.saved {
		if enums.FeatureForSavedKind(f.Set.Kind()) == feature {
			return f, true
		}
	}
	return SavedFeature{}, false
}

func (o *Orchestrator) skipBoth(report *FeatureReport, reason string) {
	report.Push.skip(reason)
	report.Pull.skip(reason)
	o.metrics.IncSkipped(report.Push.Routine, reason)
	o.metrics.IncSkipped(report.Pull.Routine, reason)
}

func (o *Orchestrator) timed(ctx context.Context, r *RoutineReport, fn func(context.Context, *RoutineReport)) {
	ctx = o.logg.WithField(ctx, "routine", r.Routine)
	start := time.Now()
	fn(ctx, r)
	duration := time.Since(start)
	if r.Skipped {
		o.metrics.IncSkipped(r.Routine, r.SkipReason)
		return
	}
	o.metrics.ObserveDuration(r.Routine, duration)
	ctx = o.logg.WithFields(ctx, map[string]any{
		"duration_ms": duration.Milliseconds(),
		"pushed":      len(r.Results),
		"failed":      r.Failed(),
		"pulled":      r.Pulled,
	})
	if r.Err != nil {
		o.logg.Error(ctx, "sync routine failed", r.Err)
		return
	}
	o.logg.Info(ctx, "sync routine completed")
}

func (o *Orchestrator) pushCart(ctx context.Context, r *RoutineReport) {
	items := o.cart.ItemsToSync()
	if len(items) == 0 {
		r.skip(SkipNothingToPush)
		return
	}
	r.Results = o.pushAll(ctx, r.Routine, len(items), func(ctx context.Context, i int) (string, error) {
		item := items[i]
		return item.ListingRef, cart.PushLine(ctx, o.cartRemote, o.cart, item)
	})
}

// pullCart adopts the backend cart. Lines still unsynced locally are carried
// over by the mirror and retried on the next push.
func (o *Orchestrator) pullCart(ctx context.Context, r *RoutineReport) {
	remoteCart, err := o.cartRemote.FetchRemoteCart(ctx)
	if err != nil {
		r.fail(err)
		return
	}
	if remoteCart.OwnerID == "" && o.auth != nil {
		remoteCart.OwnerID, remoteCart.OwnerName = o.auth.Principal()
	}
	adopted := o.cart.AdoptRemote(ctx, remoteCart)
	r.Pulled = len(adopted.Items)
	if pending := len(o.cart.ItemsToSync()); pending > 0 {
		o.logg.Warn(o.logg.WithField(ctx, "pending", pending), "backend cart adopted with unsynced local lines")
	}
}

// pushSaved sends unsynced entries. An entry the backend refuses is removed
// locally; an entry whose call was abandoned stays unsynced for the next run.
func (o *Orchestrator) pushSaved(ctx context.Context, f SavedFeature, r *RoutineReport) {
	entries := f.Set.ItemsToSync()
	if len(entries) == 0 {
		r.skip(SkipNothingToPush)
		return
	}
	r.Results = o.pushAll(ctx, r.Routine, len(entries), func(ctx context.Context, i int) (string, error) {
		id := entries[i].ID
		if _, err := f.Remote.SaveRemote(ctx, id); err != nil {
			if abandoned(ctx, err) {
				return id, err
			}
			f.Set.Remove(ctx, id)
			return id, err
		}
		f.Set.MarkSynced(ctx, id)
		return id, nil
	})
}

// pullSaved pages through the backend set and adds the ids missing locally.
func (o *Orchestrator) pullSaved(ctx context.Context, f SavedFeature, r *RoutineReport) {
	var all []saved.RemoteEntry
	page := pagination.First(o.pageSize)
	for n := 0; n < maxPullPages; n++ {
		entries, err := f.Remote.FetchSaved(ctx, page.Skip, page.Limit)
		if err != nil {
			r.fail(err)
			return
		}
		all = append(all, entries...)
		next, more := page.Next(len(entries))
		if !more {
			break
		}
		page = next
	}
	r.Pulled = f.Set.MergeRemote(ctx, all)
}

// pushAll runs push for n items, sequentially or with bounded concurrency.
// Each item succeeds or fails on its own.
func (o *Orchestrator) pushAll(ctx context.Context, routine string, n int, push func(context.Context, int) (string, error)) []PushResult {
	results := make([]PushResult, n)
	run := func(i int) {
		item, err := push(ctx, i)
		results[i] = PushResult{Item: item, Success: err == nil, Err: err}
		if err != nil {
			results[i].Error = err.Error()
		}
		o.metrics.IncItem(routine, err == nil)
	}

	if o.pushConcurrency <= 1 {
		for i := 0; i < n; i++ {
			run(i)
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(o.pushConcurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			run(i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// abandoned reports whether err comes from our own cancellation or deadline
// rather than from the backend refusing the call.
func abandoned(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
