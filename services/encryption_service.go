package services

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/pkg/errors"
	errs "github.com/techagentng/achat/errors"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

const (
	// Length of nacl nonce
	NonceBytes = 24

	// Length of curve25519 keys
	KeyBytes = 32
)

// EncryptionService seals and opens message bodies with NaCl box
// (curve25519). Every message is sealed with a fresh ephemeral sender key to
// this node's key; the ephemeral public key travels with the message so the
// node can open it for any session later. Keys and payloads cross the
// boundary as base64 strings.
type EncryptionService interface {
	EncryptMessage(plaintext string) (ciphertext, nonce, senderPublicKey string, err error)
	DecryptMessage(ciphertext, nonce, senderPublicKey string) (string, error)
	PublicKey() string
}

type encryptionService struct {
	publicKey  [KeyBytes]byte
	privateKey [KeyBytes]byte
}

// NewEncryptionService builds the service from a base64 curve25519 private
// key. An empty key generates an ephemeral pair, which is only useful for
// tests and anonymous sessions.
func NewEncryptionService(privateKeyB64 string) (EncryptionService, error) {
	s := &encryptionService{}

	if privateKeyB64 == "" {
		pub, priv, err := box.GenerateKey(rand.Reader)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate key pair")
		}
		s.publicKey, s.privateKey = *pub, *priv
		return s, nil
	}

	priv, err := decodeKey(privateKeyB64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid encryption private key")
	}
	s.privateKey = priv

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive public key")
	}
	copy(s.publicKey[:], pub)
	return s, nil
}

func (s *encryptionService) PublicKey() string {
	return base64.StdEncoding.EncodeToString(s.publicKey[:])
}

// EncryptMessage seals plaintext to this node's key with a one-off sender
// keypair. The returned sender public key must be stored with the message;
// DecryptMessage needs it to recompute the shared secret.
func (s *encryptionService) EncryptMessage(plaintext string) (string, string, string, error) {
	ephemeralPub, ephemeralPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", "", errors.Wrap(err, "failed to generate sender key pair")
	}

	var nonce [NonceBytes]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", "", "", errors.Wrap(err, "failed to generate nonce")
	}

	sealed := box.Seal(nil, []byte(plaintext), &nonce, &s.publicKey, ephemeralPriv)
	return base64.StdEncoding.EncodeToString(sealed),
		base64.StdEncoding.EncodeToString(nonce[:]),
		base64.StdEncoding.EncodeToString(ephemeralPub[:]), nil
}

func (s *encryptionService) DecryptMessage(ciphertext, nonce, senderPublicKey string) (string, error) {
	senderPub, err := decodeKey(senderPublicKey)
	if err != nil {
		return "", errs.ErrDecryptionFailed
	}

	rawNonce, err := base64.StdEncoding.DecodeString(nonce)
	if err != nil || len(rawNonce) != NonceBytes {
		return "", errs.ErrDecryptionFailed
	}
	var n [NonceBytes]byte
	copy(n[:], rawNonce)

	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errs.ErrDecryptionFailed
	}

	plaintext, ok := box.Open(nil, sealed, &n, &senderPub, &s.privateKey)
	if !ok {
		return "", errs.ErrDecryptionFailed
	}
	return string(plaintext), nil
}

func decodeKey(keyB64 string) ([KeyBytes]byte, error) {
	var key [KeyBytes]byte
	raw, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return key, err
	}
	if len(raw) != KeyBytes {
		return key, errors.New("key must be 32 bytes")
	}
	copy(key[:], raw)
	return key, nil
}

// GenerateKeyPair returns a fresh base64 (public, private) curve25519 pair.
func GenerateKeyPair() (string, string, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return "", "", errors.Wrap(err, "failed to generate key pair")
	}
	return base64.StdEncoding.EncodeToString(pub[:]),
		base64.StdEncoding.EncodeToString(priv[:]), nil
}
