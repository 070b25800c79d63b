// Package sealedbox implements the Encrypted<T> envelope named in the
// specification's glossary: a single XChaCha20-Poly1305 seal over a
// non-streaming payload such as an Index blob, as opposed to the
// frame-at-a-time scheme in framecrypto used for file content.
package sealedbox

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"duet/application"
	"duet/domain/errkind"
)

// Box seals and opens whole payloads under a single key.
type Box struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
		Overhead() int
	}
}

var _ application.Envelope = (*Box)(nil)

// New builds a Box from a 32-byte key.
func New(key [32]byte) (*Box, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrEncryption, err)
	}
	return &Box{aead: aead}, nil
}

// Seal returns nonce‖ciphertext‖tag for plaintext.
func (b *Box) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", errkind.ErrEncryption, err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+b.aead.Overhead())
	out = append(out, nonce...)
	return b.aead.Seal(out, nonce, plaintext, nil), nil
}

// Open recovers the plaintext sealed by Seal.
func (b *Box) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < b.aead.NonceSize() {
		return nil, errkind.ErrFrameTooShort
	}
	nonce, ciphertext := sealed[:b.aead.NonceSize()], sealed[b.aead.NonceSize():]
	plaintext, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errkind.ErrDecryption
	}
	return plaintext, nil
}
