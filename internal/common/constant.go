package common

// AccessTokenHeaderName is the HTTP header used to carry the access token
// on authenticated requests.
const AccessTokenHeaderName = "Authorization"

// BroadcastChannelName is the single logical topic all list change events
// are published on.
const BroadcastChannelName = "list-updates"

// ListUpdatedEventName is the event published after every successful
// list-visible mutation. The payload names the affected list, if any.
const ListUpdatedEventName = "list-updated"
