package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	s := NewSigner("secret", time.Hour)

	token, err := s.Sign("user-1", "a@example.com")
	require.NoError(t, err)

	claims, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Contact)
}

func TestVerifyRejectsExpired(t *testing.T) {
	s := NewSigner("secret", time.Minute)
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	token, err := s.Sign("user-1", "")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = s.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	token, err := NewSigner("one", time.Hour).Sign("user-1", "")
	require.NoError(t, err)

	_, err = NewSigner("two", time.Hour).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignRequiresUserID(t *testing.T) {
	_, err := NewSigner("", time.Hour).Sign(" ", "")
	assert.Error(t, err)
}
