package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashPasswordDeterministic(t *testing.T) {
	h := HashPassword("s3cret")
	assert.Len(t, h, 40)
	assert.Equal(t, h, HashPassword("s3cret"))
	assert.NotEqual(t, h, HashPassword("s3cret2"))
}

func TestCheckPassword(t *testing.T) {
	h := HashPassword("s3cret")
	assert.True(t, CheckPassword("s3cret", h))
	assert.False(t, CheckPassword("wrong", h))
	assert.False(t, CheckPassword("s3cret", ""))
}

func TestNewSessionIDUnique(t *testing.T) {
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}
