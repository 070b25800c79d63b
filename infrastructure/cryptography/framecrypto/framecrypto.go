// Package framecrypto implements the fixed-layout XChaCha20-Poly1305 frame
// encryption used for streamed file transfer (§4.3): each frame is
// nonce(24) ‖ ciphertext(≤65536) ‖ tag(16), encrypted/decrypted in place
// over a caller-supplied scratch buffer.
package framecrypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"duet/application"
	"duet/domain/errkind"
)

const (
	// FrameSize is the maximum plaintext bytes carried by a single frame.
	FrameSize = 65536

	nonceSize = chacha20poly1305.NonceSizeX
	tagSize   = chacha20poly1305.Overhead

	// EncryptedFrameSize is the full on-wire size of a maximum-length frame:
	// 24 (nonce) + 65536 (plaintext) + 16 (tag) = 65576.
	EncryptedFrameSize = nonceSize + FrameSize + tagSize

	// MinEncryptedFrameSize is the smallest a non-empty frame may be: a
	// nonce, one plaintext byte, and a tag.
	MinEncryptedFrameSize = nonceSize + 1 + tagSize
)

// ErrFrameTooShort is returned by Decrypt when the frame is smaller than
// MinEncryptedFrameSize.
var ErrFrameTooShort = errkind.ErrFrameTooShort

// ErrDecryption is returned by Decrypt on authentication tag mismatch.
var ErrDecryption = errkind.ErrDecryption

// Cipher is a FrameCipher keyed by a single 32-byte symmetric key. The key
// is the device's own and is never shared with the peer; deriving it from
// the local private key is left to the caller, not this package.
type Cipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
		Overhead() int
	}
}

var _ application.FrameCipher = (*Cipher)(nil)

// New builds a Cipher from a 32-byte key.
func New(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("build xchacha20-poly1305 aead: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

func (c *Cipher) FrameSize() int { return FrameSize }
func (c *Cipher) Overhead() int  { return nonceSize + tagSize }

// Encrypt seals plaintext into dst as nonce‖ciphertext‖tag. dst must be at
// least len(plaintext)+Overhead() bytes; plaintext must be at most
// FrameSize() bytes and non-empty.
func (c *Cipher) Encrypt(dst, plaintext []byte) (int, error) {
	if len(plaintext) == 0 || len(plaintext) > FrameSize {
		return 0, fmt.Errorf("plaintext length %d out of bounds (1..%d)", len(plaintext), FrameSize)
	}
	need := nonceSize + len(plaintext) + tagSize
	if len(dst) < need {
		return 0, fmt.Errorf("dst too small: need %d, have %d", need, len(dst))
	}

	nonce := dst[:nonceSize]
	if _, err := rand.Read(nonce); err != nil {
		return 0, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(dst[nonceSize:nonceSize], nonce, plaintext, nil)
	return nonceSize + len(sealed), nil
}

// Decrypt opens a nonce‖ciphertext‖tag frame into dst, returning the number
// of plaintext bytes written.
func (c *Cipher) Decrypt(dst, frame []byte) (int, error) {
	if len(frame) < MinEncryptedFrameSize {
		return 0, ErrFrameTooShort
	}

	nonce := frame[:nonceSize]
	ciphertext := frame[nonceSize:]

	plain, err := c.aead.Open(dst[:0], nonce, ciphertext, nil)
	if err != nil {
		return 0, ErrDecryption
	}
	return copy(dst, plain), nil
}
