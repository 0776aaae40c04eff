package saved

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/farmcart-sync/internal/localstore"
	"github.com/angelmondragon/farmcart-sync/pkg/enums"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
	"github.com/angelmondragon/farmcart-sync/pkg/metrics"
)

const schemaVersion = 1

// Codec returns the envelope codec for a saved-item set.
func Codec() *localstore.Codec {
	return localstore.NewCodec(schemaVersion).Register(0, migrateV0)
}

// migrateV0 upgrades the bare array format, which used savedAt and had no
// synced flag. Every legacy entry is treated as unsynced.
func migrateV0(data json.RawMessage) (json.RawMessage, error) {
	var legacy []map[string]json.RawMessage
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, err
	}
	for _, entry := range legacy {
		if raw, ok := entry["savedAt"]; ok {
			if _, exists := entry["saved_at"]; !exists {
				entry["saved_at"] = raw
			}
			delete(entry, "savedAt")
		}
		entry["synced"] = json.RawMessage("false")
	}
	return json.Marshal(legacy)
}

// SetParams groups dependencies for a saved-item set.
type SetParams struct {
	Kind    enums.SavedKind
	Store   localstore.Store
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
	Now     func() time.Time
}

// Set owns the in-memory saved entries of one kind and mirrors them to the store.
type Set struct {
	kind enums.SavedKind
	doc  *localstore.Document
	now  func() time.Time

	mu        sync.Mutex
	entries   []Entry
	listeners map[int]Listener
	nextSub   int

	writeMu sync.Mutex
}

func NewSet(params SetParams) (*Set, error) {
	if !params.Kind.IsValid() {
		return nil, fmt.Errorf("invalid saved kind %q", params.Kind)
	}
	doc, err := localstore.NewDocument(localstore.DocumentParams{
		Store:   params.Store,
		Codec:   Codec(),
		Key:     StoreKey(params.Kind),
		Logger:  params.Logger,
		Metrics: params.Metrics,
	})
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Set{
		kind:      params.Kind,
		doc:       doc,
		now:       now,
		entries:   []Entry{},
		listeners: make(map[int]Listener),
	}, nil
}

func (s *Set) Kind() enums.SavedKind { return s.kind }

// Load hydrates the set from the store, dropping duplicate ids.
func (s *Set) Load(ctx context.Context) []Entry {
	var stored []Entry
	if !s.doc.Load(ctx, &stored) {
		stored = nil
	}
	clean := make([]Entry, 0, len(stored))
	seen := make(map[string]struct{}, len(stored))
	for _, e := range stored {
		if _, dup := seen[e.ID]; dup || e.ID == "" {
			continue
		}
		seen[e.ID] = struct{}{}
		e.Kind = s.kind
		clean = append(clean, e)
	}

	s.mu.Lock()
	s.entries = clean
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot
}

// List returns a copy of the set, empty when uninitialized.
func (s *Set) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IDs returns the saved ids in order.
func (s *Set) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		ids = append(ids, e.ID)
	}
	return ids
}

// Save appends id unless present. It reports whether the set changed.
func (s *Set) Save(ctx context.Context, id string) (Entry, bool) {
	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		existing := s.entries[i]
		s.mu.Unlock()
		return existing, false
	}
	entry := Entry{ID: id, Kind: s.kind, SavedAt: s.now().UTC()}
	s.entries = append(s.entries, entry)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.afterMutation(ctx, snapshot)
	return entry, true
}

// Remove drops id. Removing a non-member is a no-op.
func (s *Set) Remove(ctx context.Context, id string) (Entry, bool) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return Entry{}, false
	}
	removed := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.afterMutation(ctx, snapshot)
	return removed, true
}

// Restore puts a previously removed entry back, keeping its timestamp.
func (s *Set) Restore(ctx context.Context, entry Entry) {
	s.mu.Lock()
	if s.indexLocked(entry.ID) >= 0 {
		s.mu.Unlock()
		return
	}
	entry.Kind = s.kind
	s.entries = append(s.entries, entry)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.afterMutation(ctx, snapshot)
}

func (s *Set) IsSaved(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexLocked(id) >= 0
}

// ItemsToSync returns entries with a positive timestamp not yet confirmed by the backend.
func (s *Set) ItemsToSync() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.SavedAt.Unix() > 0 && !e.Synced {
			out = append(out, e)
		}
	}
	return out
}

// MarkSynced flags the ids as confirmed by the backend.
func (s *Set) MarkSynced(ctx context.Context, ids ...string) {
	s.mu.Lock()
	changed := false
	for _, id := range ids {
		if i := s.indexLocked(id); i >= 0 && !s.entries[i].Synced {
			s.entries[i].Synced = true
			changed = true
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if changed {
		s.afterMutation(ctx, snapshot)
	}
}

// MergeRemote adds the remote entries missing locally. Local entries are never
// removed. It returns the number of entries added.
func (s *Set) MergeRemote(ctx context.Context, remote []RemoteEntry) int {
	s.mu.Lock()
	added := 0
	for _, r := range remote {
		if r.ID == "" {
			continue
		}
		if i := s.indexLocked(r.ID); i >= 0 {
			s.entries[i].Synced = true
			continue
		}
		savedAt := r.SavedAt
		if savedAt.IsZero() {
			savedAt = s.now().UTC()
		}
		s.entries = append(s.entries, Entry{ID: r.ID, Kind: s.kind, SavedAt: savedAt, Synced: true})
		added++
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.afterMutation(ctx, snapshot)
	return added
}

// Clear empties the set.
func (s *Set) Clear(ctx context.Context) {
	s.mu.Lock()
	s.entries = []Entry{}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.afterMutation(ctx, snapshot)
}

// Subscribe registers a listener called with a copy of the set after every change.
func (s *Set) Subscribe(listener Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = listener
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Set) indexLocked(id string) int {
	for i := range s.entries {
		if s.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Set) snapshotLocked() []Entry {
	return append([]Entry{}, s.entries...)
}

func (s *Set) afterMutation(ctx context.Context, snapshot []Entry) {
	s.writeMu.Lock()
	s.mu.Lock()
	latest := s.snapshotLocked()
	s.mu.Unlock()
	s.doc.Save(ctx, latest)
	s.writeMu.Unlock()

	s.notify(snapshot)
}

func (s *Set) notify(snapshot []Entry) {
	s.mu.Lock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()
	for _, l := range listeners {
		l(append([]Entry(nil), snapshot...))
	}
}
