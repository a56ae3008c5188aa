package sync

import (
	"context"
	"sync"
	"time"
)

type toggleState int

const (
	stateIdle toggleState = iota
	stateScheduled
	stateInFlight
)

// toggler is the per-item debounce state machine. Every local flip updates
// desired immediately; the server call fires only after a quiet window, and
// only when desired still differs from the last confirmed server state. A
// flip-back within the window therefore produces no request at all.
type toggler struct {
	view   *ListView
	itemID string

	mu        sync.Mutex
	state     toggleState
	timer     *time.Timer
	desired   bool
	confirmed bool
	closed    bool
}

func newToggler(view *ListView, itemID string, confirmed bool) *toggler {
	return &toggler{
		view:      view,
		itemID:    itemID,
		desired:   confirmed,
		confirmed: confirmed,
	}
}

func (d *toggler) request(desired bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.desired = desired

	switch d.state {
	case stateIdle:
		d.state = stateScheduled
		d.timer = time.AfterFunc(d.view.window, d.fire)
	case stateScheduled:
		d.timer.Reset(d.view.window)
	case stateInFlight:
		// picked up when the in-flight request settles
	}
}

func (d *toggler) fire() {
	d.mu.Lock()
	if d.closed || d.desired == d.confirmed {
		d.state = stateIdle
		d.mu.Unlock()
		return
	}
	d.state = stateInFlight
	d.mu.Unlock()

	// dispatched mutations run to completion even if the view is closed,
	// so the request carries a background context
	item, err := d.view.client.ToggleItem(context.Background(), d.itemID)

	d.mu.Lock()
	if err != nil {
		d.state = stateIdle
		d.mu.Unlock()
		d.view.onError(err)
		return
	}

	d.confirmed = item.Completed
	if !d.closed && d.desired != d.confirmed {
		// another flip arrived mid-flight, or a concurrent writer moved
		// the server state; go around again after a fresh quiet window
		d.state = stateScheduled
		d.timer = time.AfterFunc(d.view.window, d.fire)
	} else {
		d.state = stateIdle
	}
	d.mu.Unlock()
}

// reconcile folds a fetched server value into the state machine and returns
// the value the view should display: server truth when nothing is pending,
// the user's requested state while a flip is still scheduled or in flight.
func (d *toggler) reconcile(server bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.confirmed = server
	if d.state == stateIdle {
		d.desired = server
		return server
	}
	return d.desired
}

func (d *toggler) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.state == stateScheduled {
		d.state = stateIdle
	}
}
