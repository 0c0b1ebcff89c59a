package services

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "github.com/techagentng/achat/errors"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc, err := NewEncryptionService("")
	require.NoError(t, err)

	ciphertext, nonce, senderPub, err := svc.EncryptMessage("meet at noon")
	require.NoError(t, err)
	assert.NotEqual(t, "meet at noon", ciphertext)
	assert.NotEmpty(t, senderPub)
	// The sender key is ephemeral, not the node key.
	assert.NotEqual(t, svc.PublicKey(), senderPub)

	plaintext, err := svc.DecryptMessage(ciphertext, nonce, senderPub)
	require.NoError(t, err)
	assert.Equal(t, "meet at noon", plaintext)
}

func TestEncryptUsesFreshSenderKeyPerMessage(t *testing.T) {
	svc, err := NewEncryptionService("")
	require.NoError(t, err)

	_, nonce1, pub1, err := svc.EncryptMessage("first")
	require.NoError(t, err)
	_, nonce2, pub2, err := svc.EncryptMessage("second")
	require.NoError(t, err)

	assert.NotEqual(t, pub1, pub2)
	assert.NotEqual(t, nonce1, nonce2)
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	svc, err := NewEncryptionService("")
	require.NoError(t, err)

	ciphertext, nonce, senderPub, err := svc.EncryptMessage("meet at noon")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[0] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = svc.DecryptMessage(tampered, nonce, senderPub)
	assert.ErrorIs(t, err, errs.ErrDecryptionFailed)
}

func TestDecryptWithWrongNodeKeyFails(t *testing.T) {
	svc, err := NewEncryptionService("")
	require.NoError(t, err)
	other, err := NewEncryptionService("")
	require.NoError(t, err)

	ciphertext, nonce, senderPub, err := svc.EncryptMessage("meet at noon")
	require.NoError(t, err)

	_, err = other.DecryptMessage(ciphertext, nonce, senderPub)
	assert.ErrorIs(t, err, errs.ErrDecryptionFailed)
}

func TestDecryptRejectsMalformedInputs(t *testing.T) {
	svc, err := NewEncryptionService("")
	require.NoError(t, err)

	_, err = svc.DecryptMessage("not base64!!", "also not", "nope")
	assert.ErrorIs(t, err, errs.ErrDecryptionFailed)

	_, err = svc.DecryptMessage("", "AAAA", svc.PublicKey())
	assert.ErrorIs(t, err, errs.ErrDecryptionFailed)
}

func TestNewEncryptionServiceFromStoredKey(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	svc, err := NewEncryptionService(priv)
	require.NoError(t, err)
	assert.Equal(t, pub, svc.PublicKey())

	// A restarted node must still open messages sealed before the restart.
	ciphertext, nonce, senderPub, err := svc.EncryptMessage("survives restart")
	require.NoError(t, err)

	restarted, err := NewEncryptionService(priv)
	require.NoError(t, err)
	plaintext, err := restarted.DecryptMessage(ciphertext, nonce, senderPub)
	require.NoError(t, err)
	assert.Equal(t, "survives restart", plaintext)
}

func TestNewEncryptionServiceRejectsBadKey(t *testing.T) {
	_, err := NewEncryptionService("dG9vc2hvcnQ=")
	assert.Error(t, err)
}
