package security

import (
	"testing"
	"time"

	"pulsewatch/config"
	"pulsewatch/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, issuer string) *TokenService {
	t.Helper()
	ts, err := NewTokenService(&config.AuthConfig{Secret: "0123456789abcdef0123", Issuer: issuer, TokenTTL: time.Minute})
	require.NoError(t, err)
	return ts
}

func TestTokenRoundTrip(t *testing.T) {
	ts := newService(t, "pulsewatch")
	owner := uuid.New()

	tok, err := ts.GenerateAccessToken(owner, ScopeStatusRead)
	require.NoError(t, err)

	claims, err := ts.ValidateAccessToken(tok)
	require.NoError(t, err)
	id, err := claims.OwnerID()
	require.NoError(t, err)
	assert.Equal(t, owner, id)
	assert.True(t, claims.HasScope(ScopeStatusRead))
	assert.False(t, claims.HasScope("status:write"))
}

func TestRejectedTokens(t *testing.T) {
	ts := newService(t, "pulsewatch")
	tok, err := ts.GenerateAccessToken(uuid.New())
	require.NoError(t, err)

	other := newService(t, "someone-else")
	_, err = other.ValidateAccessToken(tok)
	assert.True(t, apperror.IsKind(err, apperror.Unauthorised), "issuer mismatch")

	ts.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = ts.ValidateAccessToken(tok)
	assert.True(t, apperror.IsKind(err, apperror.Unauthorised), "expired")

	_, err = ts.ValidateAccessToken("not-a-jwt")
	assert.Error(t, err)

	_, err = NewTokenService(&config.AuthConfig{})
	assert.Error(t, err)
}
