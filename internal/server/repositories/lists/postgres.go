package lists

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mbakke/listsync/internal/common"
	"github.com/mbakke/listsync/internal/dbx"
	"github.com/mbakke/listsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, id, name, ownerID string) error {
	query :=
		`INSERT INTO lists (id, name, owner_id)
		 VALUES ($1, $2, $3)
		 `

	if _, err := r.db.ExecContext(ctx, query, id, name, ownerID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAccess(ctx context.Context, listID string) (*models.Access, error) {
	query :=
		`SELECT owner_id FROM lists
		 WHERE id = $1
		 `

	access := &models.Access{ListID: listID}
	err := r.db.QueryRowContext(ctx, query, listID).Scan(&access.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM list_shares
		 WHERE list_id = $1
		 `, listID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		access.MemberIDs = append(access.MemberIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return access, nil
}

func (r *PostgresRepository) UpdateName(ctx context.Context, listID, name string) error {
	query :=
		`UPDATE lists SET name = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, listID, name)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete removes the list row. Share edges go with it via ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, listID string) error {
	query :=
		`DELETE FROM lists
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, listID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) AddShare(ctx context.Context, listID, userID string) error {
	query :=
		`INSERT INTO list_shares (list_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, listID, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// visiblePredicate selects lists the user owns or is shared into. It is the
// SQL form of the access relation and appears in every ListForUser query so
// that all three result sets agree on the same set of lists.
const visiblePredicate = `(l.owner_id = $1 OR EXISTS (
    SELECT 1 FROM list_shares s WHERE s.list_id = l.id AND s.user_id = $1))`

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]models.List, error) {
	listQuery :=
		`SELECT l.id, l.name, u.id, u.name, u.email, u.image
		 FROM lists l JOIN users u ON u.id = l.owner_id
		 WHERE ` + visiblePredicate + `
		 ORDER BY l.name, l.id
		 `

	rows, err := r.db.QueryContext(ctx, listQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]models.List, 0)
	index := make(map[string]int)

	for rows.Next() {
		var l models.List
		if err := rows.Scan(&l.ID, &l.Name,
			&l.Owner.ID, &l.Owner.Name, &l.Owner.Email, &l.Owner.Image); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		l.Items = []models.Item{}
		l.SharedWith = []models.UserRef{}
		index[l.ID] = len(result)
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	itemQuery :=
		`SELECT i.id, i.list_id, i.name, i.completed
		 FROM items i JOIN lists l ON l.id = i.list_id
		 WHERE ` + visiblePredicate + `
		 ORDER BY i.id
		 `

	itemRows, err := r.db.QueryContext(ctx, itemQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it models.Item
		if err := itemRows.Scan(&it.ID, &it.ListID, &it.Name, &it.Completed); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if i, ok := index[it.ListID]; ok {
			result[i].Items = append(result[i].Items, it)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	shareQuery :=
		`SELECT s.list_id, u.id, u.name, u.email, u.image
		 FROM list_shares s
		 JOIN users u ON u.id = s.user_id
		 JOIN lists l ON l.id = s.list_id
		 WHERE ` + visiblePredicate + `
		 ORDER BY u.email
		 `

	shareRows, err := r.db.QueryContext(ctx, shareQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer shareRows.Close()

	for shareRows.Next() {
		var listID string
		var ref models.UserRef
		if err := shareRows.Scan(&listID, &ref.ID, &ref.Name, &ref.Email, &ref.Image); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if i, ok := index[listID]; ok {
			result[i].SharedWith = append(result[i].SharedWith, ref)
		}
	}
	if err := shareRows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
