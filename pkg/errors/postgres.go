package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE codes the engine reacts to.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Constraints with a domain meaning of their own.
const (
	constraintActiveParticipation = "ux_pool_participations_active"
	constraintPoolCapacity        = "ck_pools_capacity"
)

// PGDiagnostics is the server-side detail of a Postgres error.
type PGDiagnostics struct {
	Code       string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// Postgres extracts diagnostics from either driver's error type.
func Postgres(err error) (PGDiagnostics, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGDiagnostics{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGDiagnostics{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}, true
	}
	return PGDiagnostics{}, false
}

// FromDatabase maps a storage failure onto the engine's codes. Contention
// becomes CONCURRENCY_CONFLICT so callers retry it; the participation and
// capacity constraints surface as their domain errors. Anything else is
// wrapped as INTERNAL_ERROR with msg.
func FromDatabase(err error, msg string) *Error {
	if err == nil {
		return nil
	}
	if typed := As(err); typed != nil {
		return typed
	}
	diag, ok := Postgres(err)
	if !ok {
		return Wrap(CodeInternal, err, msg)
	}
	switch {
	case diag.Code == pgSerializationFailure, diag.Code == pgDeadlockDetected, diag.Code == pgLockNotAvailable:
		return Wrap(CodeConcurrencyConflict, err, "concurrent update, retry")
	case diag.Code == pgUniqueViolation && diag.Constraint == constraintActiveParticipation:
		return Wrap(CodeDuplicateParticipant, err, "shop already has an active commitment")
	case diag.Code == pgCheckViolation && diag.Constraint == constraintPoolCapacity:
		return Wrap(CodeCapacityExceeded, err, "pool capacity exceeded")
	case diag.Code == pgUniqueViolation:
		return Wrap(CodeConflict, err, msg).WithDetails(map[string]any{"constraint": diag.Constraint})
	default:
		return Wrap(CodeInternal, err, msg)
	}
}

// LogFields flattens err for structured logs: code, unwrap chain and any
// Postgres diagnostics.
func LogFields(err error) map[string]any {
	if err == nil {
		return nil
	}
	fields := map[string]any{"error": err.Error()}
	if typed := As(err); typed != nil {
		fields["error_code"] = typed.Code()
	}
	var chain []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields["error_chain"] = chain

	if diag, ok := Postgres(err); ok {
		fields["pg_code"] = diag.Code
		fields["pg_constraint"] = diag.Constraint
		fields["pg_table"] = diag.Table
		fields["pg_column"] = diag.Column
		fields["pg_detail"] = diag.Detail
		fields["pg_message"] = diag.Message
	}
	return fields
}
