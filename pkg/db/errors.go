package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

// IsUniqueViolation reports a unique constraint failure on Postgres (SQLSTATE
// 23505) or SQLite. A non-empty constraint must match the violated index.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if diag, ok := pkgerrors.Postgres(err); ok {
		return diag.Code == "23505" && (constraint == "" || diag.Constraint == constraint)
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}

// IsPostgresDialect reports whether the named gorm dialect supports row locks.
func IsPostgresDialect(name string) bool {
	return name == DriverPostgres
}
