package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("boom")

	assert.Equal(t, "repo.alert.open: boom", New(DatabaseErr, "repo.alert.open", cause).Error())
	assert.Equal(t, "boom", (&Error{Err: cause}).Error())
	assert.Equal(t, "repo.alert.open: not here", (&Error{Op: "repo.alert.open", Message: "not here"}).Error())
	assert.Equal(t, "unknown error", (&Error{}).Error())
}

func TestKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("tick: %w", New(Unavailable, "store.append", errors.New("conn refused")))

	assert.True(t, IsKind(err, Unavailable))
	assert.Equal(t, Unavailable, KindOf(err))
	assert.True(t, Retryable(err))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(err))

	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.False(t, Retryable(New(NotFound, "x", nil)))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errors.New("connection refused")))
	assert.True(t, Retryable(New(DatabaseErr, "repo.result.append", nil)))
	assert.True(t, Retryable(New(RequestTimeout, "repo.result.append", nil)))
	assert.False(t, Retryable(fmt.Errorf("flush: %w", New(InvalidInput, "repo.result.append", nil))))
	assert.False(t, Retryable(New(Conflict, "repo.alert.create_alert", nil)))
	assert.False(t, Retryable(nil))
}

func TestStackCapture(t *testing.T) {
	assert.NotNil(t, New(Internal, "op", nil).Stack)
	assert.Nil(t, New(NotFound, "op", nil).Stack)

	e := (&Error{Kind: Dependency}).WithErr(errors.New("x"))
	assert.NotNil(t, e.Stack)
}
