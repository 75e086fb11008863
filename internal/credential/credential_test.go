package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPlain(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)
	stored, err := v.Hash("s3cret")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", stored)
	assert.True(t, v.Match(stored, "s3cret"))
	assert.False(t, v.Match(stored, "s3cret "))
}

func TestBcrypt(t *testing.T) {
	v := Bcrypt{Cost: bcrypt.MinCost}
	stored, err := v.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", stored)
	assert.True(t, v.Match(stored, "s3cret"))
	assert.False(t, v.Match(stored, "wrong"))
}

func TestNewRejectsUnknownMode(t *testing.T) {
	_, err := New("md5")
	assert.ErrorIs(t, err, ErrUnknownMode)
}
