package utils

import (
	"context"
	"errors"
	"strings"

	"pulsewatch/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

const pgUniqueViolation = "23505"

// WrapRepoError maps driver and context errors onto apperror kinds.
func WrapRepoError(op string, err error, isNotFoundErrPossible bool, log *zerolog.Logger) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &apperror.Error{
			Kind:    apperror.RequestTimeout,
			Op:      op,
			Message: "request cancelled or timed out",
			Err:     err,
		}
	}

	if isNotFoundErrPossible && errors.Is(err, pgx.ErrNoRows) {
		return &apperror.Error{
			Kind:    apperror.NotFound,
			Op:      op,
			Message: "resource not found",
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return &apperror.Error{
				Kind:    apperror.Conflict,
				Op:      op,
				Message: "resource already exists",
				Err:     err,
			}
		}

		// classes 22 (data exception) and 23 (integrity constraint) reject the
		// row itself; sending it again cannot succeed
		if strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23") {
			log.Error().
				Str("op", op).
				Str("pg_code", pgErr.Code).
				Str("pg_constraint", pgErr.ConstraintName).
				Err(err).
				Msg("postgres rejected row")

			return &apperror.Error{
				Kind:    apperror.InvalidInput,
				Op:      op,
				Message: "rejected by database",
				Err:     err,
			}
		}

		log.Error().
			Str("op", op).
			Str("pg_code", pgErr.Code).
			Str("pg_constraint", pgErr.ConstraintName).
			Str("pg_table", pgErr.TableName).
			Str("pg_detail", pgErr.Detail).
			Err(err).
			Msg("postgres database error")

		return &apperror.Error{
			Kind:    apperror.DatabaseErr,
			Op:      op,
			Message: "internal server error",
			Err:     err,
		}
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return &apperror.Error{
			Kind:    apperror.Unavailable,
			Op:      op,
			Message: "database unavailable",
			Err:     err,
		}
	}

	return &apperror.Error{
		Kind:    apperror.Internal,
		Op:      op,
		Message: "internal server error",
		Err:     err,
	}
}
