package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mbakke/listsync/internal/client/api"
	"github.com/mbakke/listsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = 20 * time.Millisecond

type fakeAPI struct {
	mu     sync.Mutex
	listID string
	name   string
	items  []api.Item
	nextID int

	addErr    error
	toggleErr error

	getCalls    int
	addCalls    int
	toggleCalls int
	deleteCalls int
}

func newFakeAPI(listID string, items ...api.Item) *fakeAPI {
	return &fakeAPI{listID: listID, name: "groceries", items: items}
}

func (f *fakeAPI) GetLists(ctx context.Context) ([]api.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	items := make([]api.Item, len(f.items))
	copy(items, f.items)
	return []api.List{{ID: f.listID, Name: f.name, Items: items}}, nil
}

func (f *fakeAPI) AddItem(ctx context.Context, listID, name string) (*api.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	if f.addErr != nil {
		return nil, f.addErr
	}
	f.nextID++
	item := api.Item{ID: fmt.Sprintf("srv-%d", f.nextID), Name: name}
	f.items = append(f.items, item)
	return &item, nil
}

func (f *fakeAPI) ToggleItem(ctx context.Context, itemID string) (*api.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggleCalls++
	if f.toggleErr != nil {
		return nil, f.toggleErr
	}
	for i := range f.items {
		if f.items[i].ID == itemID {
			f.items[i].Completed = !f.items[i].Completed
			item := f.items[i]
			return &item, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeAPI) DeleteItem(ctx context.Context, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	kept := f.items[:0]
	for _, it := range f.items {
		if it.ID != itemID {
			kept = append(kept, it)
		}
	}
	f.items = kept
	return nil
}

func (f *fakeAPI) counts() (get, add, toggle, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls, f.addCalls, f.toggleCalls, f.deleteCalls
}

func (f *fakeAPI) serverItem(id string) (api.Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range f.items {
		if it.ID == id {
			return it, true
		}
	}
	return api.Item{}, false
}

func newTestView(f *fakeAPI, opts ...Option) *ListView {
	opts = append([]Option{WithDebounceWindow(testWindow)}, opts...)
	items := make([]api.Item, len(f.items))
	copy(items, f.items)
	return NewListView(f, f.listID, items, opts...)
}

func TestToggleFlipsLocalStateImmediately(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)
	defer v.Close()

	for i := 0; i < 5; i++ {
		v.Toggle("i1")
		want := i%2 == 0
		assert.Equal(t, want, v.Entries()[0].Completed)
	}
}

func TestRapidTogglesCoalesceIntoOneRequest(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)
	defer v.Close()

	// odd number of flips, net effect is one state change
	for i := 0; i < 5; i++ {
		v.Toggle("i1")
	}

	require.Eventually(t, func() bool {
		_, _, toggles, _ := f.counts()
		return toggles == 1
	}, time.Second, time.Millisecond)

	time.Sleep(3 * testWindow)
	_, _, toggles, _ := f.counts()
	assert.Equal(t, 1, toggles)

	item, ok := f.serverItem("i1")
	require.True(t, ok)
	assert.True(t, item.Completed)
	assert.True(t, v.Entries()[0].Completed)
}

func TestFlipBackWithinWindowSendsNothing(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)
	defer v.Close()

	v.Toggle("i1")
	v.Toggle("i1")

	time.Sleep(3 * testWindow)

	_, _, toggles, _ := f.counts()
	assert.Equal(t, 0, toggles)
	assert.False(t, v.Entries()[0].Completed)
}

func TestTogglesAfterQuietPeriodsSendSeparately(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)
	defer v.Close()

	v.Toggle("i1")
	require.Eventually(t, func() bool {
		_, _, toggles, _ := f.counts()
		return toggles == 1
	}, time.Second, time.Millisecond)

	v.Toggle("i1")
	require.Eventually(t, func() bool {
		_, _, toggles, _ := f.counts()
		return toggles == 2
	}, time.Second, time.Millisecond)

	item, _ := f.serverItem("i1")
	assert.False(t, item.Completed)
}

func TestAddItemIsOptimisticThenConfirmedInPlace(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)
	defer v.Close()

	key := v.AddItem(context.Background(), "Eggs")
	require.NotEmpty(t, key)

	entries := v.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Eggs", entries[1].Name)
	assert.True(t, entries[1].Pending)
	assert.Empty(t, entries[1].ID)

	require.Eventually(t, func() bool {
		e := v.Entries()[1]
		return !e.Pending && e.ID != ""
	}, time.Second, time.Millisecond)

	e := v.Entries()[1]
	assert.Equal(t, key, e.Key, "key must survive confirmation")
	assert.Equal(t, "srv-1", e.ID)
}

func TestAddItemFailureStaysPendingAndSurfacesError(t *testing.T) {
	f := newFakeAPI("l1")
	f.addErr = common.ErrUnauthorized

	var mu sync.Mutex
	var got error
	v := newTestView(f, WithErrorHandler(func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	}))
	defer v.Close()

	v.AddItem(context.Background(), "Eggs")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got != nil
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.ErrorIs(t, got, common.ErrUnauthorized)
	mu.Unlock()
	assert.True(t, v.Entries()[0].Pending)
}

func TestToggleOnPendingEntryStaysLocal(t *testing.T) {
	f := newFakeAPI("l1")
	f.addErr = common.ErrInternal // keep the entry pending
	v := newTestView(f)
	defer v.Close()

	key := v.AddItem(context.Background(), "Eggs")
	v.Toggle(key)

	assert.True(t, v.Entries()[0].Completed)

	time.Sleep(3 * testWindow)
	_, _, toggles, _ := f.counts()
	assert.Equal(t, 0, toggles)
}

func TestDeleteRemovesLocallyAndCallsServer(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)
	defer v.Close()

	v.Delete(context.Background(), "i1")
	assert.Empty(t, v.Entries())

	require.Eventually(t, func() bool {
		_, _, _, dels := f.counts()
		return dels == 1
	}, time.Second, time.Millisecond)
}

func TestRefreshOverwritesWithServerTruthKeepingPendingAdds(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)
	defer v.Close()

	f.addErr = common.ErrInternal
	v.AddItem(context.Background(), "Eggs")
	f.mu.Lock()
	f.items[0].Name = "Oat milk"
	f.items[0].Completed = true
	f.mu.Unlock()

	require.NoError(t, v.Refresh(context.Background()))

	entries := v.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "i1", entries[0].Key, "key for a known id is reused")
	assert.Equal(t, "Oat milk", entries[0].Name)
	assert.True(t, entries[0].Completed)
	assert.True(t, entries[1].Pending)
	assert.Equal(t, "Eggs", entries[1].Name)
}

func TestRefreshUnknownListReturnsNotFound(t *testing.T) {
	f := newFakeAPI("l1")
	v := NewListView(f, "other", nil, WithDebounceWindow(testWindow))
	defer v.Close()

	assert.ErrorIs(t, v.Refresh(context.Background()), common.ErrNotFound)
}

func TestRefreshDuringScheduledToggleKeepsRequestedState(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := NewListView(f, "l1", []api.Item{{ID: "i1", Name: "Milk"}},
		WithDebounceWindow(time.Minute)) // never fires during the test
	defer v.Close()

	v.Toggle("i1")
	require.NoError(t, v.Refresh(context.Background()))

	// the server still says false, but the user's flip is not lost
	assert.True(t, v.Entries()[0].Completed)
}

func TestMatches(t *testing.T) {
	v := NewListView(newFakeAPI("l1"), "l1", nil)
	defer v.Close()

	ev := func(event, listID string) api.Event {
		e := api.Event{Channel: common.BroadcastChannelName, Event: event}
		e.Payload.ListID = listID
		return e
	}

	tests := []struct {
		name string
		ev   api.Event
		want bool
	}{
		{"scoped to this list", ev(common.ListUpdatedEventName, "l1"), true},
		{"scoped to another list", ev(common.ListUpdatedEventName, "l2"), false},
		{"unscoped", ev(common.ListUpdatedEventName, ""), true},
		{"other event name", ev("something-else", "l1"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Matches(tt.ev))
		})
	}
}

func TestRunListenerRefetchesOnMatchingEvents(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)
	defer v.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan api.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		v.RunListener(ctx, events)
	}()

	matching := api.Event{Event: common.ListUpdatedEventName}
	matching.Payload.ListID = "l1"
	events <- matching

	require.Eventually(t, func() bool {
		gets, _, _, _ := f.counts()
		return gets == 1
	}, time.Second, time.Millisecond)

	other := api.Event{Event: common.ListUpdatedEventName}
	other.Payload.ListID = "l2"
	events <- other

	time.Sleep(20 * time.Millisecond)
	gets, _, _, _ := f.counts()
	assert.Equal(t, 1, gets)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener did not stop on cancel")
	}
}

func TestCloseStopsScheduledToggles(t *testing.T) {
	f := newFakeAPI("l1", api.Item{ID: "i1", Name: "Milk"})
	v := newTestView(f)

	v.Toggle("i1")
	v.Close()

	time.Sleep(3 * testWindow)
	_, _, toggles, _ := f.counts()
	assert.Equal(t, 0, toggles)
}
