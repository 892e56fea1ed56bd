package auth

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateSealSecret(t *testing.T) []byte {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return secret
}

func TestNewSealer_RequiresThirtyTwoBytes(t *testing.T) {
	_, err := NewSealer([]byte("too-short"))
	assert.Error(t, err)

	_, err = NewSealer(generateSealSecret(t))
	assert.NoError(t, err)
}

func TestSealer_RoundTrip(t *testing.T) {
	sealer, err := NewSealer(generateSealSecret(t))
	require.NoError(t, err)

	token, err := sealer.Seal("did:plc:alice123", "alice.example", 1*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	payload, err := sealer.Unseal(token)
	require.NoError(t, err)
	assert.Equal(t, "did:plc:alice123", payload.DID)
	assert.Equal(t, "alice.example", payload.Handle)
	assert.InDelta(t, time.Now().Add(1*time.Hour).Unix(), payload.ExpiresAt, 5)
}

func TestSealer_RequiresDID(t *testing.T) {
	sealer, err := NewSealer(generateSealSecret(t))
	require.NoError(t, err)

	_, err = sealer.Seal("", "alice.example", 1*time.Hour)
	assert.Error(t, err)
}

func TestSealer_RejectsExpiredToken(t *testing.T) {
	sealer, err := NewSealer(generateSealSecret(t))
	require.NoError(t, err)

	token, err := sealer.Seal("did:plc:alice123", "alice.example", -1*time.Minute)
	require.NoError(t, err)

	_, err = sealer.Unseal(token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestSealer_RejectsTamperedToken(t *testing.T) {
	sealer, err := NewSealer(generateSealSecret(t))
	require.NoError(t, err)

	token, err := sealer.Seal("did:plc:alice123", "alice.example", 1*time.Hour)
	require.NoError(t, err)

	// Flip a character in the middle of the ciphertext.
	tampered := []byte(token)
	mid := len(tampered) / 2
	if tampered[mid] == 'A' {
		tampered[mid] = 'B'
	} else {
		tampered[mid] = 'A'
	}

	_, err = sealer.Unseal(string(tampered))
	assert.Error(t, err)
}

func TestSealer_RejectsWrongSecret(t *testing.T) {
	sealer1, err := NewSealer(generateSealSecret(t))
	require.NoError(t, err)
	sealer2, err := NewSealer(generateSealSecret(t))
	require.NoError(t, err)

	token, err := sealer1.Seal("did:plc:alice123", "alice.example", 1*time.Hour)
	require.NoError(t, err)

	_, err = sealer2.Unseal(token)
	assert.Error(t, err)
}

func TestSealer_RejectsGarbage(t *testing.T) {
	sealer, err := NewSealer(generateSealSecret(t))
	require.NoError(t, err)

	for _, token := range []string{"", "not base64url!!", "dG9vc2hvcnQ"} {
		_, err := sealer.Unseal(token)
		assert.Error(t, err, "token %q must be rejected", token)
	}
}
