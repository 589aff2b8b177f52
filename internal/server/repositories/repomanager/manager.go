// Package repomanager vends repositories bound to a dbx.DBTX, so services can
// use the same repositories inside and outside transactions.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/jorenvermeersch/budget-api/internal/dbx"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/lockouts"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/places"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/resettokens"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/transactions"
	"github.com/jorenvermeersch/budget-api/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Lockouts(db dbx.DBTX) lockouts.Repository
	ResetTokens(db dbx.DBTX) resettokens.Repository
	Places(db dbx.DBTX) places.Repository
	Transactions(db dbx.DBTX) transactions.Repository
}
