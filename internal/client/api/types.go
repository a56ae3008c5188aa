// Package api is the HTTP client for the listsync server. It mirrors the
// server's operation surface and JSON payloads.
package api

type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
}

type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

type List struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Owner      UserRef   `json:"owner"`
	SharedWith []UserRef `json:"sharedWith"`
	Items      []Item    `json:"items"`
}

// Event is a frame from the broadcast channel: a hint that server state for
// the named list (or, with an empty ListID, any list) has changed and should
// be re-fetched. The payload is never authoritative data.
type Event struct {
	Channel string `json:"channel"`
	Event   string `json:"event"`
	Payload struct {
		ListID string `json:"listId,omitempty"`
	} `json:"payload"`
}
