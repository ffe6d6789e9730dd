package server

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErrorCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

// isPgInvalidInput recognizes cast and range failures from untrusted
// identifiers, e.g. a malformed uuid hitting an id::uuid cast.
func isPgInvalidInput(err error) bool {
	switch pgErrorCode(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}

func isPgUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}
