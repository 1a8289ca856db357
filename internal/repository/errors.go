package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres error codes we map to domain sentinels. The constraint
// violation itself is the authoritative duplicate signal: no repository
// pre-checks existence before an insert.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// uniqueViolation reports whether err is a uniqueness violation and, if
// so, on which constraint.
func uniqueViolation(err error) (constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// foreignKeyViolation reports whether err is a reference to a missing
// row and, if so, through which constraint.
func foreignKeyViolation(err error) (constraint string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pgForeignKeyViolation {
		return pqErr.Constraint, true
	}
	return "", false
}
