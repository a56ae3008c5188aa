// Package sync keeps a client's view of one list consistent with the
// server. Local edits are applied optimistically and confirmed or repaired
// against authoritative responses; broadcast events trigger a re-fetch that
// overwrites local state with server truth. Entries are keyed by a stable
// local key, not by server id, so a pending (optimistic) entry can be
// replaced in place once the server assigns its real id.
package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mbakke/listsync/internal/client/api"
	"github.com/mbakke/listsync/internal/common"
	"github.com/oklog/ulid/v2"
)

// DebounceWindow is the quiet period rapid toggles of one item are coalesced
// over before a single mutation is dispatched.
const DebounceWindow = 300 * time.Millisecond

// Mutator is the slice of the API surface the reconciler needs.
type Mutator interface {
	GetLists(ctx context.Context) ([]api.List, error)
	AddItem(ctx context.Context, listID, name string) (*api.Item, error)
	ToggleItem(ctx context.Context, itemID string) (*api.Item, error)
	DeleteItem(ctx context.Context, itemID string) error
}

// Entry is one row of the local view. Pending entries carry a
// client-generated key and no server id yet.
type Entry struct {
	Key       string
	ID        string
	Name      string
	Completed bool
	Pending   bool
}

// ListView is the per-client state holder for one list.
type ListView struct {
	listID  string
	client  Mutator
	window  time.Duration
	onError func(error)

	mu       sync.Mutex
	entries  []Entry
	togglers map[string]*toggler
	closed   bool
}

// Option configures a ListView.
type Option func(*ListView)

// WithDebounceWindow overrides the default 300 ms window. Used by tests.
func WithDebounceWindow(d time.Duration) Option {
	return func(v *ListView) { v.window = d }
}

// WithErrorHandler installs the callback failures are surfaced through. The
// reconciler never rolls back optimistic state itself; retry policy belongs
// to the caller.
func WithErrorHandler(fn func(error)) Option {
	return func(v *ListView) { v.onError = fn }
}

func NewListView(client Mutator, listID string, initial []api.Item, opts ...Option) *ListView {
	v := &ListView{
		listID:   listID,
		client:   client,
		window:   DebounceWindow,
		onError:  func(error) {},
		togglers: map[string]*toggler{},
	}
	for _, opt := range opts {
		opt(v)
	}
	v.applyServerLocked(initial)
	return v
}

func (v *ListView) ListID() string { return v.listID }

// Entries returns a snapshot of the current local view. Entries with an
// active toggler show the last-requested state, everything else shows the
// last known server state.
func (v *ListView) Entries() []Entry {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]Entry, len(v.entries))
	copy(out, v.entries)
	return out
}

// AddItem appends an optimistic entry immediately and issues the mutation in
// the background. On success the entry is replaced in place, by key, with
// the server-assigned item. On failure the entry stays pending and the error
// is surfaced.
func (v *ListView) AddItem(ctx context.Context, name string) string {
	key := ulid.Make().String()

	v.mu.Lock()
	v.entries = append(v.entries, Entry{Key: key, Name: name, Pending: true})
	v.mu.Unlock()

	go func() {
		item, err := v.client.AddItem(ctx, v.listID, name)
		if err != nil {
			v.onError(err)
			return
		}

		v.mu.Lock()
		defer v.mu.Unlock()
		for i := range v.entries {
			if v.entries[i].Key == key {
				v.entries[i].ID = item.ID
				v.entries[i].Completed = item.Completed
				v.entries[i].Pending = false
				break
			}
		}
	}()

	return key
}

// Toggle flips the entry's visible state immediately. For confirmed entries
// the server mutation is debounced: rapid repeated toggles within the window
// coalesce into at most one request carrying only the net effect. A toggle
// on a still-pending entry only changes local state.
func (v *ListView) Toggle(key string) {
	v.mu.Lock()

	var entry *Entry
	for i := range v.entries {
		if v.entries[i].Key == key {
			entry = &v.entries[i]
			break
		}
	}
	if entry == nil {
		v.mu.Unlock()
		v.onError(common.ErrNotFound)
		return
	}

	entry.Completed = !entry.Completed

	if entry.Pending || entry.ID == "" || v.closed {
		v.mu.Unlock()
		return
	}

	d, ok := v.togglers[entry.ID]
	if !ok {
		// the pre-flip value is the last state the server confirmed
		d = newToggler(v, entry.ID, !entry.Completed)
		v.togglers[entry.ID] = d
	}
	desired := entry.Completed
	v.mu.Unlock()

	d.request(desired)
}

// Delete removes the entry locally immediately and issues the server
// mutation in the background. There is no rollback path; failures are
// surfaced and the next re-fetch restores server truth.
func (v *ListView) Delete(ctx context.Context, key string) {
	v.mu.Lock()

	var id string
	kept := v.entries[:0]
	for _, e := range v.entries {
		if e.Key == key {
			id = e.ID
			continue
		}
		kept = append(kept, e)
	}
	v.entries = kept
	v.mu.Unlock()

	if id == "" {
		return
	}

	go func() {
		if err := v.client.DeleteItem(ctx, id); err != nil {
			v.onError(err)
		}
	}()
}

// Refresh fetches authoritative state and overwrites the local view with it.
// Re-fetching is idempotent, so duplicate or out-of-order broadcast events
// are harmless.
func (v *ListView) Refresh(ctx context.Context) error {
	lists, err := v.client.GetLists(ctx)
	if err != nil {
		return err
	}

	for _, l := range lists {
		if l.ID == v.listID {
			v.mu.Lock()
			v.applyServerLocked(l.Items)
			v.mu.Unlock()
			return nil
		}
	}
	return common.ErrNotFound
}

// applyServerLocked replaces confirmed entries with server truth. Entries
// still awaiting their server id are kept at the tail: they have not reached
// the server yet, so the fetched state cannot confirm or refute them.
func (v *ListView) applyServerLocked(items []api.Item) {
	keyByID := make(map[string]string, len(v.entries))
	var pending []Entry
	for _, e := range v.entries {
		if e.ID != "" {
			keyByID[e.ID] = e.Key
		} else if e.Pending {
			pending = append(pending, e)
		}
	}

	entries := make([]Entry, 0, len(items)+len(pending))
	for _, it := range items {
		key, ok := keyByID[it.ID]
		if !ok {
			key = it.ID
		}

		completed := it.Completed
		if d, ok := v.togglers[it.ID]; ok {
			completed = d.reconcile(it.Completed)
		}

		entries = append(entries, Entry{
			Key:       key,
			ID:        it.ID,
			Name:      it.Name,
			Completed: completed,
		})
	}
	v.entries = append(entries, pending...)
}

// RunListener consumes broadcast events and re-fetches whenever one names
// this list (or is unscoped). It returns when the channel closes or ctx is
// cancelled.
func (v *ListView) RunListener(ctx context.Context, events <-chan api.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !v.Matches(ev) {
				continue
			}
			if err := v.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				v.onError(err)
			}
		}
	}
}

// Matches reports whether the event concerns this list.
func (v *ListView) Matches(ev api.Event) bool {
	if ev.Event != common.ListUpdatedEventName {
		return false
	}
	return ev.Payload.ListID == "" || ev.Payload.ListID == v.listID
}

// Close stops scheduling further debounced mutations, e.g. when the user
// navigates away. Requests already in flight run to completion server-side.
func (v *ListView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	for _, d := range v.togglers {
		d.stop()
	}
}
