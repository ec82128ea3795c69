package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routewise/fieldsync/pkg/config"
	pkgerrors "github.com/routewise/fieldsync/pkg/errors"
)

func testCryptoConfig() config.CryptoConfig {
	// Low iteration count keeps the suite fast; production default is 310k.
	return config.CryptoConfig{
		KDFIterations: 1000,
		KDFSalt:       "test-salt",
		KeyLen:        32,
	}
}

func newInitializedSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(testCryptoConfig())
	require.NoError(t, s.Initialize("4821"))
	return s
}

type payload struct {
	TripID string  `json:"trip_id"`
	Qty    float64 `json:"qty"`
}

func TestSession_RoundTrip(t *testing.T) {
	s := newInitializedSession(t)

	in := payload{TripID: "trip-9", Qty: 12.5}
	ciphertext, nonce, err := s.EncryptJSON(in)
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)
	require.NotEmpty(t, nonce)

	var out payload
	require.NoError(t, s.DecryptJSON(ciphertext, nonce, &out))
	assert.Equal(t, in, out)
}

func TestSession_FreshNoncePerCall(t *testing.T) {
	s := newInitializedSession(t)

	_, nonce1, err := s.EncryptJSON(payload{TripID: "a"})
	require.NoError(t, err)
	_, nonce2, err := s.EncryptJSON(payload{TripID: "a"})
	require.NoError(t, err)

	assert.NotEqual(t, nonce1, nonce2)
}

func TestSession_BeforeInitialize(t *testing.T) {
	s := NewSession(testCryptoConfig())

	_, _, err := s.EncryptJSON(payload{})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotInitialized))

	err = s.DecryptJSON([]byte("x"), make([]byte, 12), &payload{})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotInitialized))
}

func TestSession_DoubleInitialize(t *testing.T) {
	s := newInitializedSession(t)
	assert.Error(t, s.Initialize("4821"))
}

func TestSession_TamperedCiphertext(t *testing.T) {
	s := newInitializedSession(t)

	ciphertext, nonce, err := s.EncryptJSON(payload{TripID: "trip-9"})
	require.NoError(t, err)

	ciphertext[0] ^= 0xff
	var out payload
	err = s.DecryptJSON(ciphertext, nonce, &out)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDecryptionFailed))
}

func TestSession_WrongKey(t *testing.T) {
	s := newInitializedSession(t)
	other := NewSession(testCryptoConfig())
	require.NoError(t, other.Initialize("9999"))

	ciphertext, nonce, err := s.EncryptJSON(payload{TripID: "trip-9"})
	require.NoError(t, err)

	var out payload
	err = other.DecryptJSON(ciphertext, nonce, &out)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDecryptionFailed))
}

func TestSession_WrongNonce(t *testing.T) {
	s := newInitializedSession(t)

	ciphertext, _, err := s.EncryptJSON(payload{TripID: "trip-9"})
	require.NoError(t, err)

	var out payload
	err = s.DecryptJSON(ciphertext, make([]byte, 12), &out)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDecryptionFailed))
}
