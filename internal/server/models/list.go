package models

// List is a named collection of items. Owner is set at creation and never
// changes; SharedWith is mutable by the owner only.
type List struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Owner      UserRef   `json:"owner"`
	SharedWith []UserRef `json:"sharedWith"`
	Items      []Item    `json:"items"`
}

// Access is the owner/membership projection of a list, loaded fresh on
// every guarded operation.
type Access struct {
	ListID    string
	OwnerID   string
	MemberIDs []string
}
