package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Teamprojekt-Lagersystem/Lagersystem-Backend-sub000/internal/errors"
)

var (
	ErrNotFound               = errors.ErrNotFound
	ErrConcurrentModification = errors.ErrConcurrentModification
	ErrInvalidReference       = errors.ErrInvalidReference
	ErrDatabase               = errors.ErrDatabase
)

// mapSQLError folds driver errors into the sentinel set.
//
// DuckDB reports write-write conflicts between concurrent transactions as
// "Conflict on update" / "Transaction conflict" errors, either on the
// statement or on commit.
func mapSQLError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "conflict") {
		return fmt.Errorf("%v: %w", err, ErrConcurrentModification)
	}
	return err
}
