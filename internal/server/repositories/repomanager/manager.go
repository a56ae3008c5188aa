package repomanager

import (
	"context"
	"database/sql"

	"github.com/mbakke/listsync/internal/dbx"
	"github.com/mbakke/listsync/internal/server/repositories/items"
	"github.com/mbakke/listsync/internal/server/repositories/lists"
	"github.com/mbakke/listsync/internal/server/repositories/users"
)

// RepositoryManager hands out repositories bound to either the shared pool
// or a transaction, so services can run authorize-then-mutate sequences on
// one transactional handle.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Lists(db dbx.DBTX) lists.Repository
	Items(db dbx.DBTX) items.Repository
}
