package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainagg "github.com/fundtracer/fundtracer-backend/internal/domain/aggregates"
	"github.com/fundtracer/fundtracer-backend/internal/platform/dbctx"
)

// CASGuard writes a row only if it is still in the state the caller read.
type CASGuard struct {
	db *gorm.DB
	// owned is nil for an unscoped guard.
	owned map[string]struct{}
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

// ForContract returns a guard that refuses tables outside c.OwnedTables.
func (g CASGuard) ForContract(c domainagg.Contract) CASGuard {
	owned := make(map[string]struct{}, len(c.OwnedTables))
	for _, t := range c.OwnedTables {
		owned[t] = struct{}{}
	}
	g.owned = owned
	return g
}

func (g CASGuard) handle(dbc dbctx.Context) (*gorm.DB, error) {
	switch {
	case dbc.Tx != nil:
		return dbc.Tx.WithContext(dbc.Ctx), nil
	case g.db != nil:
		return g.db.WithContext(dbc.Ctx), nil
	}
	return nil, ValidationError("cas guard has neither a transaction nor a db")
}

// UpdateByStatusVersion applies updates when id, status and version all still
// match. A false result with a nil error means another writer got there first.
// Callers bump version inside updates.
func (g CASGuard) UpdateByStatusVersion(dbc dbctx.Context, table string, id uuid.UUID, expectedStatus string, expectedVersion int, updates map[string]any) (bool, error) {
	table = strings.TrimSpace(table)
	switch {
	case table == "" || id == uuid.Nil:
		return false, ValidationError("cas update needs a table and an id")
	case strings.TrimSpace(expectedStatus) == "":
		return false, ValidationError("cas update needs the expected status")
	case expectedVersion < 0:
		return false, ValidationError(fmt.Sprintf("negative expected version %d", expectedVersion))
	case len(updates) == 0:
		return false, ValidationError("cas update has nothing to write")
	}
	if g.owned != nil {
		if _, ok := g.owned[table]; !ok {
			return false, ValidationError(fmt.Sprintf("table %q is not owned by this aggregate", table))
		}
	}
	db, err := g.handle(dbc)
	if err != nil {
		return false, err
	}
	res := db.Table(table).
		Where("id = ? AND status = ? AND version = ?", id, expectedStatus, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RequireCASSuccess turns a lost compare-and-set into a conflict error.
func RequireCASSuccess(ok bool, message string) error {
	if !ok {
		return ConflictError(strings.TrimSpace(message))
	}
	return nil
}
