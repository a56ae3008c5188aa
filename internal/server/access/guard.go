// Package access holds the authorization predicates applied before every
// list or item operation. The predicates are stateless and evaluate the
// owner/membership projection loaded fresh for the current request, so a
// share granted a moment ago takes effect on the member's next call.
package access

import "github.com/mbakke/listsync/internal/server/models"

// CanMutate reports whether the principal may read or mutate the list:
// the owner and shared members are allowed, everyone else is not.
func CanMutate(principalID string, a *models.Access) bool {
	if principalID == "" || a == nil {
		return false
	}
	if a.OwnerID == principalID {
		return true
	}
	for _, id := range a.MemberIDs {
		if id == principalID {
			return true
		}
	}
	return false
}

// IsOwner reports whether the principal owns the list. Rename, delete and
// share are owner-only operations.
func IsOwner(principalID string, a *models.Access) bool {
	return principalID != "" && a != nil && a.OwnerID == principalID
}
