package lists

import (
	"context"

	"github.com/mbakke/listsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, id, name, ownerID string) error
	// GetAccess loads the owner/membership projection of a list. It is
	// evaluated fresh on every guarded operation, never cached.
	GetAccess(ctx context.Context, listID string) (*models.Access, error)
	UpdateName(ctx context.Context, listID, name string) error
	Delete(ctx context.Context, listID string) error
	AddShare(ctx context.Context, listID, userID string) error
	// ListForUser returns every list the user owns or is a member of,
	// with items, owner projection and sharedWith projections.
	ListForUser(ctx context.Context, userID string) ([]models.List, error)
}
