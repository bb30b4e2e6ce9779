package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

func TestIssueAndVerify(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	token, err := issuer.Issue("AB12CD", "Player 3")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	roomCode, playerID, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "AB12CD", roomCode)
	assert.Equal(t, "Player 3", playerID)
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)
	other := NewTokenIssuer("another-secret-another-secret-yes", time.Hour)

	token, err := issuer.Issue("AB12CD", "Player 3")
	require.NoError(t, err)

	_, _, err = other.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Nanosecond)

	token, err := issuer.Issue("AB12CD", "Player 3")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, _, err = issuer.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, time.Hour)

	_, _, err := issuer.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
