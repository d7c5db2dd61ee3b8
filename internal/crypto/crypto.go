package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of keys accepted by New.
const KeySize = chacha20poly1305.KeySize

var ErrShortCiphertext = errors.New("ciphertext too short")

// AEAD seals short strings with XChaCha20-Poly1305. The random nonce is
// stored in front of the ciphertext.
type AEAD struct{ aead cipher.AEAD }

func New(key []byte) (*AEAD, error) {
	a, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	return &AEAD{aead: a}, nil
}

// EncryptToString seals plaintext bound to aad and returns it base64 encoded.
func (a *AEAD) EncryptToString(plaintext, aad string) (string, error) {
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(plaintext)+a.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	buf := a.aead.Seal(nonce, nonce, []byte(plaintext), []byte(aad))
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

func (a *AEAD) DecryptString(ciphertextB64, aad string) (string, error) {
	buf, err := base64.RawStdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("crypto: %w", err)
	}
	ns := a.aead.NonceSize()
	if len(buf) < ns+a.aead.Overhead() {
		return "", ErrShortCiphertext
	}
	pt, err := a.aead.Open(nil, buf[:ns], buf[ns:], []byte(aad))
	if err != nil {
		return "", fmt.Errorf("crypto: %w", err)
	}
	return string(pt), nil
}

// NewKey returns KeySize random bytes.
func NewKey() ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, err
	}
	return k, nil
}
