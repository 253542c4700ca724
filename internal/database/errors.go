package database

import (
	"errors"
	"strings"

	"courtbook/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes for integrity violations.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// ClassifyError maps a store error onto the application error taxonomy.
// AppErrors pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case IsUniqueViolation(err):
		return &models.AppError{Code: models.CodeConflict, Message: "Record conflicts with an existing one", Err: err}
	case IsForeignKeyViolation(err):
		return models.NewIntegrityError("Operation would break a reference between records", err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &models.AppError{Code: models.CodeNotFound, Message: "Record not found", Err: err}
	default:
		return models.NewInternalError(err)
	}
}

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// IsForeignKeyViolation reports whether err came from a foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgForeignKeyViolation
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "foreign key constraint") ||
		strings.Contains(msg, "violates foreign key")
}
