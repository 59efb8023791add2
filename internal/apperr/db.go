package apperr

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes the services care about.
const (
	PgErrUniqueViolation     = "23505"
	PgErrForeignKeyViolation = "23503"
	PgErrCheckViolation      = "23514"
	PgErrNotNullViolation    = "23502"
	PgErrClassDataException  = "22"
)

// FromDB classifies a storage error. Already classified errors pass through
// unchanged, and a nil error stays nil.
func FromDB(err error, op string) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Error{Kind: KindNotFound, Message: op + ": record not found", Err: err}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &Error{Kind: KindConflict, Message: op + ": duplicate key", Err: err}
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return &Error{Kind: KindConflict, Message: op + ": referenced row violation", Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == PgErrUniqueViolation:
			return &Error{Kind: KindConflict, Message: op + ": duplicate key", Details: detail(pgErr), Err: err}
		case pgErr.Code == PgErrForeignKeyViolation:
			return &Error{Kind: KindConflict, Message: op + ": referenced row violation", Details: detail(pgErr), Err: err}
		case pgErr.Code == PgErrCheckViolation, pgErr.Code == PgErrNotNullViolation,
			strings.HasPrefix(pgErr.Code, PgErrClassDataException):
			return &Error{Kind: KindValidation, Message: op + ": " + pgErr.Message, Details: detail(pgErr), Err: err}
		}
	}
	return Internal(err, "%s", op)
}

func detail(pgErr *pgconn.PgError) []string {
	if pgErr.Detail == "" {
		return nil
	}
	return []string{pgErr.Detail}
}
