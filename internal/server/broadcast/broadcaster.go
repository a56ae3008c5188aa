// Package broadcast fans out change notifications to connected clients over
// websockets. Events are best-effort cache invalidation hints: they carry
// only the affected list id, never list data, and delivery failures are
// logged, never propagated back to the originating mutation.
package broadcast

import (
	"context"

	"github.com/mbakke/listsync/internal/common"
)

// Payload names the affected list. Empty ListID means an unscoped
// invalidation: subscribers should re-fetch everything they are viewing.
type Payload struct {
	ListID string `json:"listId,omitempty"`
}

// Event is the wire frame pushed to every subscribed client.
type Event struct {
	Channel string  `json:"channel"`
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

// ListUpdated builds the standard event published after a successful
// mutation. Pass an empty listID for a global invalidation.
func ListUpdated(listID string) Event {
	return Event{
		Channel: common.BroadcastChannelName,
		Event:   common.ListUpdatedEventName,
		Payload: Payload{ListID: listID},
	}
}

// Broadcaster is consumed by the mutation service. Publish must never block
// the mutation and must never return an error to it.
type Broadcaster interface {
	Publish(ctx context.Context, event Event)
}

// Nop discards every event. Used in tests and as a safe default.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
