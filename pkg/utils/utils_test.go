package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret", h))
	assert.False(t, CheckPassword("wrong", h))
}

func TestHashPasswordRejectsOver72Bytes(t *testing.T) {
	// 40 个 "é"：40 个字符但 80 字节
	_, err := HashPassword(strings.Repeat("é", 40))
	assert.ErrorIs(t, err, bcrypt.ErrPasswordTooLong)

	h, err := HashPassword(strings.Repeat("é", 36))
	require.NoError(t, err)
	assert.True(t, CheckPassword(strings.Repeat("é", 36), h))
}

func TestUnusablePassword(t *testing.T) {
	a, b := UnusablePassword(), UnusablePassword()
	assert.True(t, strings.HasPrefix(a, "!"))
	assert.NotEqual(t, a, b)
	assert.False(t, CheckPassword("", a))
}

func TestNewID(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
	assert.NotEqual(t, id, NewID())
}
