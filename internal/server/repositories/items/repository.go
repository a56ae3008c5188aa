package items

import (
	"context"

	"github.com/mbakke/listsync/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, item *models.Item) error
	Get(ctx context.Context, id string) (*models.Item, error)
	SetCompleted(ctx context.Context, id string, completed bool) error
	Delete(ctx context.Context, id string) error
	CountForList(ctx context.Context, listID string) (int, error)
}
