// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow the resolver to distinguish a
// missing row or a violated uniqueness constraint from a storage failure.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the addressed reservation or closure does
// not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique index: a second
// active reservation for the same (date, slot), a second closure for the
// same (date, slot), or a duplicate username.
var ErrDuplicate = errors.New("duplicate")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
