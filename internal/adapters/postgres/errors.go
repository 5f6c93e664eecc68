package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation  = "23505"
	pgNotNullViolation = "23502"
)

// classifyWriteError wraps err in a *ports.PersistenceError carrying the
// constraint or column the database reported.
func classifyWriteError(err error) error {
	if err == nil {
		return nil
	}
	var existing *ports.PersistenceError
	if errors.As(err, &existing) {
		return err
	}
	perr := &ports.PersistenceError{Kind: ports.ViolationOther, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			perr.Kind = ports.ViolationUnique
		case pgNotNullViolation:
			perr.Kind = ports.ViolationNotNull
		}
		perr.Constraint = pgErr.ConstraintName
		perr.Column = pgErr.ColumnName
	}
	return perr
}

// updatedOrNotFound reports domain.ErrNotFound for an update that matched no row.
func updatedOrNotFound(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
