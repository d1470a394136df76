// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrStateConflict is returned when a conditional lifecycle update matched no
// row because the comment is no longer in the expected state.
var ErrStateConflict = errors.New("comment is not in the expected state")

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err came from a unique constraint, on
// postgres or on the sqlite test database.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
