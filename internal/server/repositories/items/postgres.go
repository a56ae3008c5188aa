package items

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

func (r *PostgresRepository) Create(ctx context.Context, item *models.Item) error {
	query :=
		`INSERT INTO items (id, list_id, name, completed)
		 VALUES ($1, $2, $3, $4)
		 `

	if _, err := r.db.ExecContext(ctx, query,
		item.ID, item.ListID, item.Name, item.Completed); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Item, error) {
	query :=
		`SELECT id, list_id, name, completed FROM items
		 WHERE id = $1
		 `

	item := &models.Item{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&item.ID, &item.ListID, &item.Name, &item.Completed)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return item, nil
}

func (r *PostgresRepository) SetCompleted(ctx context.Context, id string, completed bool) error {
	query :=
		`UPDATE items SET completed = $2
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, completed)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query :=
		`DELETE FROM items
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CountForList(ctx context.Context, listID string) (int, error) {
	query :=
		`SELECT COUNT(*) FROM items
		 WHERE list_id = $1
		 `

	var n int
	if err := r.db.QueryRowContext(ctx, query, listID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
