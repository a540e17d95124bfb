package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2!")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "hunter2!", hash)

	assert.True(t, CheckPassword(hash, "hunter2!"))
	assert.False(t, CheckPassword(hash, "hunter3!"))
	assert.False(t, CheckPassword("not-a-hash", "hunter2!"))
}

func TestNewToken(t *testing.T) {
	plain, digest, err := NewToken()
	require.NoError(t, err)

	assert.Len(t, plain, 64)
	assert.Equal(t, Digest(plain), digest)
	assert.NotEqual(t, plain, digest)

	plain2, digest2, err := NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, plain, plain2)
	assert.NotEqual(t, digest, digest2)
}
