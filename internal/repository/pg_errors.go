package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	pkgerrors "github.com/juanse07/nexa-sub001/pkg/errors"
)

// PostgreSQL SQLSTATE codes raised by the ledger constraints
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// isConstraintViolation reports whether err is one of the integrity errors the
// schema uses to reject a write that lost a race.
func isConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgUniqueViolation, pgForeignKeyViolation, pgCheckViolation:
		return true
	}
	return false
}

// isUniqueViolation reports a duplicate key error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.ErrNotFound
	case isConstraintViolation(err):
		return pkgerrors.ErrConditionFailed
	}
	return err
}
