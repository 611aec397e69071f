package utils

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNoRowsAffected reports that an update or delete matched nothing.
// Repositories translate it into their domain not-found error.
var ErrNoRowsAffected = errors.New("no rows affected")

type ExecType int

const (
	ExecInsert ExecType = iota
	ExecUpdate
	ExecDelete
)

// ExecWithCheck executes a write statement and, for updates and deletes,
// fails with ErrNoRowsAffected when no row matched. Inserts report their
// outcome through RETURNING instead, so the check is skipped for them.
func ExecWithCheck(db *sqlx.DB, query string, execType ExecType, args ...any) error {
	result, err := db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	if execType == ExecInsert {
		return nil
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNoRowsAffected
	}

	return nil
}
