package core

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateKindName(t *testing.T) {
	assert.NoError(t, ValidateKindName("seo_writer"))
	assert.NoError(t, ValidateKindName("email-marketer.v2"))

	assert.ErrorIs(t, ValidateKindName(""), ErrInvalidKindName)
	assert.ErrorIs(t, ValidateKindName("9starts-with-digit"), ErrInvalidKindName)
	assert.ErrorIs(t, ValidateKindName("has space"), ErrInvalidKindName)
	assert.ErrorIs(t, ValidateKindName(strings.Repeat("a", 300)), ErrKindNameTooLong)
}

func TestValidatePriority(t *testing.T) {
	assert.NoError(t, ValidatePriority(1))
	assert.NoError(t, ValidatePriority(10))
	assert.ErrorIs(t, ValidatePriority(0), ErrInvalidPriority)
	assert.ErrorIs(t, ValidatePriority(11), ErrInvalidPriority)
	assert.ErrorIs(t, ValidatePriority(-3), ErrInvalidPriority)
}

func TestSanitizeErrorMessage(t *testing.T) {
	assert.Equal(t, "", SanitizeErrorMessage(""))
	assert.Equal(t, "plain message", SanitizeErrorMessage("plain message"))
	assert.Equal(t, "nonull", SanitizeErrorMessage("no\x00null"))

	long := strings.Repeat("x", MaxErrorMessageLength+100)
	got := SanitizeErrorMessage(long)
	assert.Len(t, got, MaxErrorMessageLength)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestNoRetry(t *testing.T) {
	base := errors.New("bad input")
	wrapped := NoRetry(base)

	assert.True(t, IsNoRetry(wrapped))
	assert.False(t, IsNoRetry(base))
	assert.ErrorIs(t, wrapped, base)
}

func TestClamps(t *testing.T) {
	assert.Equal(t, 0, ClampRetries(-5))
	assert.Equal(t, 7, ClampRetries(7))
	assert.Equal(t, MaxRetriesLimit, ClampRetries(10000))

	assert.Equal(t, 1, ClampConcurrency(0))
	assert.Equal(t, 16, ClampConcurrency(16))
	assert.Equal(t, MaxConcurrency, ClampConcurrency(99999))
}
