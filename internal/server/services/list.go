package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mbakke/listsync/internal/common"
	"github.com/mbakke/listsync/internal/dbx"
	"github.com/mbakke/listsync/internal/logging"
	"github.com/mbakke/listsync/internal/server/access"
	"github.com/mbakke/listsync/internal/server/broadcast"
	"github.com/mbakke/listsync/internal/server/models"
	"github.com/mbakke/listsync/internal/server/repositories/repomanager"
)

// ListService implements the guarded mutation operations on lists and items.
//
// Every operation that reads authorization state and then writes based on it
// (share, toggle, delete) runs both steps inside one transaction, so a
// concurrent unshare or delete cannot slip between the check and the write.
// After a successful mutation the change is announced on the broadcast
// channel; publishing is best-effort and never fails the mutation.
type ListService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	broadcaster broadcast.Broadcaster
	logger      logging.Logger
}

func NewListService(db *sql.DB, m repomanager.RepositoryManager, b broadcast.Broadcaster, l logging.Logger) *ListService {
	return &ListService{
		db:          db,
		repomanager: m,
		broadcaster: b,
		logger:      l.With("module", "list_service"),
	}
}

// CreateList creates an empty list owned by the principal.
func (s *ListService) CreateList(ctx context.Context, principalID, name string) (*models.List, error) {
	if principalID == "" {
		return nil, common.ErrUnauthenticated
	}
	if name == "" {
		return nil, common.ErrValidation
	}

	owner, err := s.repomanager.Users(s.db).GetByID(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("error loading owner: %w", err)
	}

	list := &models.List{
		ID:         uuid.NewString(),
		Name:       name,
		Owner:      owner.Ref(),
		SharedWith: []models.UserRef{},
		Items:      []models.Item{},
	}

	if err := s.repomanager.Lists(s.db).Create(ctx, list.ID, list.Name, principalID); err != nil {
		return nil, fmt.Errorf("error creating list: %w", err)
	}

	s.publish(ctx, "")
	return list, nil
}

// UpdateListName renames a list and returns it with the owner projection.
// Owner only.
func (s *ListService) UpdateListName(ctx context.Context, principalID, listID, name string) (*models.List, error) {
	if principalID == "" {
		return nil, common.ErrUnauthenticated
	}
	if listID == "" || name == "" {
		return nil, common.ErrValidation
	}

	var list *models.List
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lists := s.repomanager.Lists(tx)

		a, err := lists.GetAccess(ctx, listID)
		if err != nil {
			return err
		}
		if !access.IsOwner(principalID, a) {
			return common.ErrUnauthorized
		}

		if err := lists.UpdateName(ctx, listID, name); err != nil {
			return err
		}

		owner, err := s.repomanager.Users(tx).GetByID(ctx, a.OwnerID)
		if err != nil {
			return err
		}

		list = &models.List{
			ID:         listID,
			Name:       name,
			Owner:      owner.Ref(),
			SharedWith: []models.UserRef{},
			Items:      []models.Item{},
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, listID)
	return list, nil
}

// DeleteList removes an empty list together with its share edges. Owner
// only; a list that still has items yields ErrListNotEmpty. The emptiness
// check and the delete share one transaction so a concurrent AddItem cannot
// slip in between.
func (s *ListService) DeleteList(ctx context.Context, principalID, listID string) error {
	if principalID == "" {
		return common.ErrUnauthenticated
	}
	if listID == "" {
		return common.ErrValidation
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lists := s.repomanager.Lists(tx)

		a, err := lists.GetAccess(ctx, listID)
		if err != nil {
			return err
		}
		if !access.IsOwner(principalID, a) {
			return common.ErrUnauthorized
		}

		n, err := s.repomanager.Items(tx).CountForList(ctx, listID)
		if err != nil {
			return err
		}
		if n > 0 {
			return common.ErrListNotEmpty
		}

		return lists.Delete(ctx, listID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, "")
	return nil
}

// ShareList grants a registered user membership of a list. Owner only. The
// ownership check, the email lookup and the membership write run in a single
// transaction, so a concurrent deletion of the list or the target user can
// never be observed as a half-applied share.
func (s *ListService) ShareList(ctx context.Context, principalID, listID, email string) error {
	if principalID == "" {
		return common.ErrUnauthenticated
	}
	if listID == "" || email == "" {
		return common.ErrValidation
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		lists := s.repomanager.Lists(tx)

		a, err := lists.GetAccess(ctx, listID)
		if err != nil {
			return err
		}
		if !access.IsOwner(principalID, a) {
			return common.ErrUnauthorized
		}

		target, err := s.repomanager.Users(tx).GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrUserNotFound
			}
			return err
		}

		return lists.AddShare(ctx, listID, target.ID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, "")
	return nil
}

// AddItem creates an item under a list the principal owns or is a member of.
func (s *ListService) AddItem(ctx context.Context, principalID, listID, name string) (*models.Item, error) {
	if principalID == "" {
		return nil, common.ErrUnauthenticated
	}
	if listID == "" || name == "" {
		return nil, common.ErrValidation
	}

	item := &models.Item{
		ID:     uuid.NewString(),
		ListID: listID,
		Name:   name,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := s.repomanager.Lists(tx).GetAccess(ctx, listID)
		if err != nil {
			return err
		}
		if !access.CanMutate(principalID, a) {
			return common.ErrUnauthorized
		}

		return s.repomanager.Items(tx).Create(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, listID)
	return item, nil
}

// ToggleItemCompletion flips the item's completed flag. The flip is relative
// to the value read inside the same transaction as the authorization check,
// never to a caller-supplied snapshot.
func (s *ListService) ToggleItemCompletion(ctx context.Context, principalID, itemID string) (*models.Item, error) {
	if principalID == "" {
		return nil, common.ErrUnauthenticated
	}
	if itemID == "" {
		return nil, common.ErrValidation
	}

	var item *models.Item
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		items := s.repomanager.Items(tx)

		found, err := items.Get(ctx, itemID)
		if err != nil {
			return err
		}

		a, err := s.repomanager.Lists(tx).GetAccess(ctx, found.ListID)
		if err != nil {
			return err
		}
		if !access.CanMutate(principalID, a) {
			return common.ErrUnauthorized
		}

		if err := items.SetCompleted(ctx, itemID, !found.Completed); err != nil {
			return err
		}
		found.Completed = !found.Completed
		item = found
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, item.ListID)
	return item, nil
}

// DeleteItem removes an item from a list the principal owns or is a member of.
func (s *ListService) DeleteItem(ctx context.Context, principalID, itemID string) error {
	if principalID == "" {
		return common.ErrUnauthenticated
	}
	if itemID == "" {
		return common.ErrValidation
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		items := s.repomanager.Items(tx)

		found, err := items.Get(ctx, itemID)
		if err != nil {
			return err
		}

		a, err := s.repomanager.Lists(tx).GetAccess(ctx, found.ListID)
		if err != nil {
			return err
		}
		if !access.CanMutate(principalID, a) {
			return common.ErrUnauthorized
		}

		return items.Delete(ctx, itemID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, "")
	return nil
}

// GetLists returns every list the principal owns or is a member of, with
// items and owner/sharedWith projections.
func (s *ListService) GetLists(ctx context.Context, principalID string) ([]models.List, error) {
	if principalID == "" {
		return nil, common.ErrUnauthenticated
	}
	return s.repomanager.Lists(s.db).ListForUser(ctx, principalID)
}

// publish announces a committed change. An empty listID is an unscoped
// invalidation. Failures stay inside the broadcaster; the mutation already
// committed and is the source of truth.
func (s *ListService) publish(ctx context.Context, listID string) {
	s.broadcaster.Publish(ctx, broadcast.ListUpdated(listID))
}
