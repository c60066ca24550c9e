package authenticator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	a := New("test-secret", "ferum-erp")
	require.True(t, a.Enabled())

	token, err := a.Sign("bot", time.Minute)
	require.NoError(t, err)

	subject, err := a.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "bot", subject)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := New("secret-a", "ferum-bot")
	verifier := New("secret-b", "ferum-erp")

	token, err := signer.Sign("bot", time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := New("test-secret", "ferum-erp")

	token, err := a.Sign("bot", -time.Minute)
	require.NoError(t, err)

	_, err = a.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	a := New("test-secret", "ferum-erp")

	_, err := a.Verify("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestEmptySecretDisablesAuth(t *testing.T) {
	a := New("", "ferum-erp")
	require.False(t, a.Enabled())
}
