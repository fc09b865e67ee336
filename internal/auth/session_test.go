package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsBadExpireTime(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "not-a-duration")
	require.Error(t, Init())

	t.Setenv("TOKEN_EXPIRE_TIME", "24h")
	require.NoError(t, Init())
	assert.Equal(t, 24*60*60, TokenExpireSec)

	t.Setenv("TOKEN_EXPIRE_TIME", "never")
	require.NoError(t, Init())
	assert.Zero(t, TokenExpireSec)
}

func TestJWTRoundTrip(t *testing.T) {
	t.Setenv("TOKEN_EXPIRE_TIME", "")
	require.NoError(t, Init())

	token, err := CreateJWT("user-123")
	require.NoError(t, err)

	sub, err := AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)

	_, err = AuthenticateJWT(token + "x")
	assert.Error(t, err)
}
