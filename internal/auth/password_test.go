package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, VerifyPassword("correct horse battery staple", hash))
	assert.False(t, VerifyPassword("wrong password", hash))
}

func TestVerifyPasswordNeverErrors(t *testing.T) {
	// Any verifier failure, including garbage stored hashes, reads as a
	// mismatch rather than an error.
	assert.False(t, VerifyPassword("anything", ""))
	assert.False(t, VerifyPassword("anything", "not-a-bcrypt-hash"))
	assert.False(t, VerifyPassword("", ""))
}

func TestHashPasswordProducesUniqueSalts(t *testing.T) {
	first, err := HashPassword("same password")
	require.NoError(t, err)
	second, err := HashPassword("same password")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, VerifyPassword("same password", first))
	assert.True(t, VerifyPassword("same password", second))
}
