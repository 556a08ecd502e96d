package strata

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Built-in algorithm names accepted in secret markers.
const (
	AlgorithmAESGCM   = "aes-256-gcm"
	AlgorithmChaCha20 = "chacha20poly1305"

	// AlgorithmPlain passes the decoded ciphertext through unchanged.
	// Intended for fixtures and staging configs, not production secrets.
	AlgorithmPlain = "plain"
)

// Ciphertexts for the AEAD algorithms are nonce || sealed payload.

type aesGCMDecryptor struct{}

func (aesGCMDecryptor) Decrypt(ciphertext, key []byte) ([]byte, error) {
	aead, err := newAESGCM(key)
	if err != nil {
		return nil, err
	}
	return aeadOpen(aead, ciphertext)
}

type chachaDecryptor struct{}

func (chachaDecryptor) Decrypt(ciphertext, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("chacha20poly1305 key setup: %w", err)
	}
	return aeadOpen(aead, ciphertext)
}

type plainDecryptor struct{}

func (plainDecryptor) Decrypt(ciphertext, _ []byte) ([]byte, error) {
	return ciphertext, nil
}

// Seal encrypts plaintext for the named algorithm, producing the bytes
// a secret marker carries (base64 encoding is the caller's job). Used
// by the offline CLI and tests; the store itself only decrypts.
func Seal(algorithm string, key, plaintext []byte) ([]byte, error) {
	switch algorithm {
	case AlgorithmAESGCM:
		aead, err := newAESGCM(key)
		if err != nil {
			return nil, err
		}
		return aeadSeal(aead, plaintext)
	case AlgorithmChaCha20:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("chacha20poly1305 key setup: %w", err)
		}
		return aeadSeal(aead, plaintext)
	case AlgorithmPlain:
		return append([]byte(nil), plaintext...), nil
	default:
		return nil, fmt.Errorf("unknown algorithm %q", algorithm)
	}
}

// GenerateKey returns a fresh 32-byte key suitable for both AEAD
// algorithms.
func GenerateKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("key generation: %w", err)
	}
	return key, nil
}

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes key setup: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm setup: %w", err)
	}
	return aead, nil
}

func aeadSeal(aead cipher.AEAD, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func aeadOpen(aead cipher.AEAD, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce (%d < %d)",
			len(ciphertext), aead.NonceSize())
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("aead open: %w", err)
	}
	return plaintext, nil
}
