package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pulsewatch/pkg/apperror"
	"pulsewatch/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestWrapRepoError(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		notFound  bool
		kind      apperror.Kind
		retryable bool
	}{
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), false, apperror.RequestTimeout, true},
		{"no rows", pgx.ErrNoRows, true, apperror.NotFound, false},
		{"unique", &pgconn.PgError{Code: "23505"}, false, apperror.Conflict, false},
		{"nul byte", &pgconn.PgError{Code: "22021"}, false, apperror.InvalidInput, false},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false, apperror.InvalidInput, false},
		{"serialization", &pgconn.PgError{Code: "40001"}, false, apperror.DatabaseErr, true},
		{"unknown", errors.New("boom"), false, apperror.Internal, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := WrapRepoError("repo.test", tc.err, tc.notFound, logger.Nop())
			assert.True(t, apperror.IsKind(err, tc.kind), "got %v", err)
			assert.Equal(t, tc.retryable, apperror.Retryable(err))
		})
	}
	assert.NoError(t, WrapRepoError("repo.test", nil, false, logger.Nop()))
}
